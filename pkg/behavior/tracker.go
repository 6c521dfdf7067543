// Package behavior maintains per-identity behavioral baselines and
// computes deviation for new activity samples.
package behavior

import (
	"math"
	"sync"
	"time"

	"github.com/ztforge/ztforge/pkg/zterr"
)

// Sample is a single observed behavior event for an identity
type Sample struct {
	LoginTime  time.Time `json:"login_time"`
	Location   string    `json:"location"`
	ActionRate float64   `json:"action_rate"` // actions per minute
}

// Baseline is the expected behavior profile for an identity
type Baseline struct {
	ExpectedLoginHour float64   `json:"expected_login_hour"`
	ExpectedLocation  string    `json:"expected_location"`
	ExpectedRate      float64   `json:"expected_rate"`
	SampleCount       int       `json:"sample_count"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Tracker maintains baselines with an exponentially weighted update so
// legitimate drift is tolerated while sharp anomalies are still visible.
type Tracker struct {
	recencyWeight float64
	mu            sync.RWMutex
	baselines     map[string]*Baseline
}

// NewTracker creates a tracker with the given recency weight in (0,1]
func NewTracker(recencyWeight float64) *Tracker {
	if recencyWeight <= 0 || recencyWeight > 1 {
		recencyWeight = 0.3
	}
	return &Tracker{
		recencyWeight: recencyWeight,
		baselines:     make(map[string]*Baseline),
	}
}

// Deviation computes the normalized distance of a sample from the
// identity's baseline without updating it. An identity with no baseline
// yet deviates moderately rather than maximally.
func (t *Tracker) Deviation(identityID string, sample Sample) (float64, error) {
	if err := validateSample(sample); err != nil {
		return 0, err
	}

	t.mu.RLock()
	baseline, ok := t.baselines[identityID]
	t.mu.RUnlock()

	if !ok || baseline.SampleCount == 0 {
		return 0.3, nil
	}
	return deviationFrom(baseline, sample), nil
}

// Observe computes the deviation of a sample from the baseline, then
// folds the sample into the baseline. Returns the deviation measured
// against the baseline as it stood before the update.
func (t *Tracker) Observe(identityID string, sample Sample) (float64, Baseline, error) {
	if err := validateSample(sample); err != nil {
		return 0, Baseline{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	baseline, ok := t.baselines[identityID]
	if !ok {
		baseline = &Baseline{}
		t.baselines[identityID] = baseline
	}

	deviation := 0.3
	if baseline.SampleCount > 0 {
		deviation = deviationFrom(baseline, sample)
	}

	w := t.recencyWeight
	hour := hourOfDay(sample.LoginTime)
	if baseline.SampleCount == 0 {
		baseline.ExpectedLoginHour = hour
		baseline.ExpectedRate = sample.ActionRate
		baseline.ExpectedLocation = sample.Location
	} else {
		baseline.ExpectedLoginHour = circularBlend(baseline.ExpectedLoginHour, hour, w)
		baseline.ExpectedRate = (1-w)*baseline.ExpectedRate + w*sample.ActionRate
		// Location is categorical: it flips to the observed value once
		// the same location repeats, otherwise the baseline holds.
		if sample.Location == baseline.ExpectedLocation || w >= 0.5 {
			baseline.ExpectedLocation = sample.Location
		}
	}
	baseline.SampleCount++
	baseline.UpdatedAt = time.Now()

	return deviation, *baseline, nil
}

// BaselineFor returns a copy of the identity's baseline, if one exists
func (t *Tracker) BaselineFor(identityID string) (Baseline, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	baseline, ok := t.baselines[identityID]
	if !ok {
		return Baseline{}, false
	}
	return *baseline, true
}

func validateSample(sample Sample) error {
	if sample.LoginTime.IsZero() {
		return zterr.Validation("login_time", "required")
	}
	if sample.ActionRate < 0 {
		return zterr.Validation("action_rate", "must be non-negative")
	}
	return nil
}

// deviationFrom measures distance across the three baseline dimensions,
// each normalized to [0,1], then averages and clamps.
func deviationFrom(baseline *Baseline, sample Sample) float64 {
	// Hour distance wraps around midnight; 12h apart is maximal.
	hourDist := circularDistance(baseline.ExpectedLoginHour, hourOfDay(sample.LoginTime)) / 12.0

	locDist := 0.0
	if sample.Location != "" && sample.Location != baseline.ExpectedLocation {
		locDist = 1.0
	}

	rateDist := 0.0
	if baseline.ExpectedRate > 0 {
		rateDist = math.Abs(sample.ActionRate-baseline.ExpectedRate) / baseline.ExpectedRate
		rateDist = math.Min(1.0, rateDist)
	} else if sample.ActionRate > 0 {
		rateDist = 1.0
	}

	deviation := (hourDist + locDist + rateDist) / 3.0
	return math.Max(0, math.Min(1, deviation))
}

func hourOfDay(ts time.Time) float64 {
	return float64(ts.Hour()) + float64(ts.Minute())/60.0
}

func circularDistance(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > 12 {
		d = 24 - d
	}
	return d
}

func circularBlend(current, observed, w float64) float64 {
	// Blend along the shorter arc of the 24h circle.
	diff := observed - current
	if diff > 12 {
		diff -= 24
	} else if diff < -12 {
		diff += 24
	}
	blended := current + w*diff
	if blended < 0 {
		blended += 24
	} else if blended >= 24 {
		blended -= 24
	}
	return blended
}
