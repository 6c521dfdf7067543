// Package risk scores authentication attempts and access requests from
// device, location, time, and behavioral signals.
package risk

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ztforge/ztforge/pkg/geo"
	"github.com/ztforge/ztforge/pkg/zterr"
)

// Risk factor names reported in assessments
const (
	FactorUnknownDevice      = "unknown_device"
	FactorForeignLocation    = "foreign_location"
	FactorUnusualTime        = "unusual_time"
	FactorBehavioralAnomaly  = "behavioral_anomaly"
	FactorLocationUnresolved = "location_unresolved"
)

// Weights are the additive contribution of each signal. They are
// configuration, not literals: operators retune them without a rebuild.
type Weights struct {
	UnknownDevice   float64
	ForeignLocation float64
	UnusualTime     float64
	Behavioral      float64
}

// DefaultWeights returns the default signal weights
func DefaultWeights() Weights {
	return Weights{
		UnknownDevice:   0.30,
		ForeignLocation: 0.20,
		UnusualTime:     0.10,
		Behavioral:      0.40,
	}
}

// ActiveHours is the expected activity window; timestamps outside it
// contribute the unusual-time weight.
type ActiveHours struct {
	Start int
	End   int
}

// Input carries the signals for one assessment. KnownFingerprint and
// ExpectedRegion come from the identity record; Deviation comes from
// the behavioral baseline tracker.
type Input struct {
	Fingerprint      string
	Location         string
	Timestamp        time.Time
	KnownFingerprint bool
	ExpectedRegion   string
	Deviation        float64
}

// Assessment is the outcome of a risk evaluation
type Assessment struct {
	Score   float64  `json:"score"`
	Factors []string `json:"factors"`
}

// Engine combines the configured signals into a single risk score.
type Engine struct {
	weights Weights
	hours   ActiveHours
	locator geo.Locator
	logger  *logrus.Logger
}

// NewEngine creates a risk engine. locator may resolve IPs to regions;
// a nil locator treats locations as region labels directly.
func NewEngine(weights Weights, hours ActiveHours, locator geo.Locator, logger *logrus.Logger) *Engine {
	if locator == nil {
		locator = &geo.StaticLocator{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{weights: weights, hours: hours, locator: locator, logger: logger}
}

// Assess computes the risk score for an authentication or access
// context. Missing required signals fail with a ValidationError rather
// than silently scoring zero: the engine is fail-closed.
func (e *Engine) Assess(ctx context.Context, in Input) (Assessment, error) {
	if in.Timestamp.IsZero() {
		return Assessment{}, zterr.Validation("timestamp", "required")
	}
	if in.Fingerprint == "" {
		return Assessment{}, zterr.Validation("fingerprint", "required")
	}
	if in.Deviation < 0 || in.Deviation > 1 {
		return Assessment{}, zterr.Validation("deviation", "must be in [0,1]")
	}

	score := 0.0
	factors := make([]string, 0, 4)

	if !in.KnownFingerprint {
		score += e.weights.UnknownDevice
		factors = append(factors, FactorUnknownDevice)
	}

	foreign, unresolved := e.locationIsForeign(ctx, in)
	if foreign {
		score += e.weights.ForeignLocation
		if unresolved {
			factors = append(factors, FactorLocationUnresolved)
		} else {
			factors = append(factors, FactorForeignLocation)
		}
	}

	hour := in.Timestamp.Hour()
	if hour < e.hours.Start || hour >= e.hours.End {
		score += e.weights.UnusualTime
		factors = append(factors, FactorUnusualTime)
	}

	if in.Deviation > 0 {
		score += in.Deviation * e.weights.Behavioral
		if in.Deviation >= 0.5 {
			factors = append(factors, FactorBehavioralAnomaly)
		}
	}

	return Assessment{
		Score:   math.Max(0, math.Min(1, score)),
		Factors: factors,
	}, nil
}

// locationIsForeign resolves the location signal and compares it to the
// identity's expected region. An unresolvable or timed-out lookup is
// treated as foreign: the conservative outcome, never a silent allow.
func (e *Engine) locationIsForeign(ctx context.Context, in Input) (foreign, unresolved bool) {
	if in.Location == "" {
		// No location declared at all counts as foreign.
		return true, true
	}

	region, err := e.locator.Locate(ctx, in.Location)
	if err != nil {
		e.logger.WithError(err).WithField("location", in.Location).
			Warn("location lookup failed, treating as foreign")
		return true, true
	}

	if in.ExpectedRegion == "" {
		return false, false
	}
	return region != in.ExpectedRegion, false
}
