package authn

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ztforge/ztforge/pkg/behavior"
	"github.com/ztforge/ztforge/pkg/identity"
	"github.com/ztforge/ztforge/pkg/risk"
	"github.com/ztforge/ztforge/pkg/storage"
	"github.com/ztforge/ztforge/pkg/zterr"
)

// State tracks an authentication request through its lifecycle
type State string

const (
	StatePending           State = "pending"
	StateRiskAssessed      State = "risk_assessed"
	StateTrustComputed     State = "trust_computed"
	StateFactorsDetermined State = "factors_determined"
	StateDecided           State = "decided"
	StateCommitted         State = "committed"
	StateFailed            State = "failed"
)

// Context carries the signals presented with an authentication request
type Context struct {
	DeviceFingerprint string    `json:"device_fingerprint"`
	Location          string    `json:"location"`
	Timestamp         time.Time `json:"timestamp"`
	PresentedFactors  []Factor  `json:"presented_factors"`
	ActionRate        float64   `json:"action_rate"`
}

// Event is the immutable record of one authentication attempt
type Event struct {
	ID                string    `json:"id"`
	IdentityID        string    `json:"identity_id"`
	DeviceFingerprint string    `json:"device_fingerprint"`
	Location          string    `json:"location"`
	Timestamp         time.Time `json:"timestamp"`
	RiskScore         float64   `json:"risk_score"`
	TrustScore        float64   `json:"trust_score"`
	RiskFactors       []string  `json:"risk_factors"`
	RequiredFactors   []Factor  `json:"required_factors"`
	Allow             bool      `json:"allow"`
	Confidence        float64   `json:"confidence"`
	Reason            string    `json:"reason"`
	State             State     `json:"state"`
	Error             string    `json:"error,omitempty"`
}

// Authenticator runs the authentication pipeline: risk assessment,
// trust computation, factor determination, decision, commit. Any fault
// transitions straight to Failed with a forced deny; the core never
// fails open.
type Authenticator struct {
	policy     *Policy
	riskEngine *risk.Engine
	tracker    *behavior.Tracker
	identities storage.IdentityStore
	logger     *logrus.Logger
}

// NewAuthenticator wires the authentication pipeline
func NewAuthenticator(policy *Policy, riskEngine *risk.Engine, tracker *behavior.Tracker, identities storage.IdentityStore, logger *logrus.Logger) *Authenticator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Authenticator{
		policy:     policy,
		riskEngine: riskEngine,
		tracker:    tracker,
		identities: identities,
		logger:     logger,
	}
}

// Authenticate evaluates an authentication request for an identity.
// On allow, the device fingerprint and session history mutations commit
// atomically with the decision; a request abandoned before the decision
// leaves the identity untouched.
func (a *Authenticator) Authenticate(ctx context.Context, identityID string, authCtx Context) (*Event, error) {
	event := &Event{
		ID:                uuid.New().String(),
		IdentityID:        identityID,
		DeviceFingerprint: authCtx.DeviceFingerprint,
		Location:          authCtx.Location,
		Timestamp:         authCtx.Timestamp,
		State:             StatePending,
	}

	record, err := a.identities.GetIdentity(ctx, identityID)
	if err != nil {
		return a.fail(event, err)
	}

	if record.Status != identity.StatusActive {
		event.State = StateCommitted
		event.Allow = false
		event.Confidence = 1.0
		event.Reason = "Identity deactivated"
		return event, nil
	}

	deviation, err := a.tracker.Deviation(identityID, behavior.Sample{
		LoginTime:  authCtx.Timestamp,
		Location:   authCtx.Location,
		ActionRate: authCtx.ActionRate,
	})
	if err != nil {
		return a.fail(event, err)
	}

	assessment, err := a.riskEngine.Assess(ctx, risk.Input{
		Fingerprint:      authCtx.DeviceFingerprint,
		Location:         authCtx.Location,
		Timestamp:        authCtx.Timestamp,
		KnownFingerprint: record.KnowsFingerprint(authCtx.DeviceFingerprint),
		ExpectedRegion:   record.ExpectedRegion,
		Deviation:        deviation,
	})
	if err != nil {
		return a.fail(event, err)
	}
	event.RiskScore = assessment.Score
	event.RiskFactors = assessment.Factors
	event.State = StateRiskAssessed

	event.TrustScore = a.policy.ComputeTrust(record.BaselineTrust, authCtx.PresentedFactors)
	event.State = StateTrustComputed

	outcome := a.policy.Decide(event.RiskScore, event.TrustScore)
	event.RequiredFactors = outcome.RequiredFactors
	event.State = StateFactorsDetermined

	event.Allow = outcome.Allow
	event.Confidence = outcome.Confidence
	event.State = StateDecided
	if !event.Allow {
		event.Reason = denyReason(event.RiskScore, event.TrustScore)
		event.State = StateCommitted
		return event, nil
	}
	event.Reason = "Adaptive policy satisfied"

	// Commit: fingerprint learning and session history append happen
	// under the identity's exclusive section, atomically with the
	// decision. A cancelled context aborts before any mutation.
	_, err = a.identities.UpdateIdentity(ctx, identityID, func(record *identity.Identity) error {
		if !record.KnowsFingerprint(event.DeviceFingerprint) {
			record.KnownFingerprints = append(record.KnownFingerprints, event.DeviceFingerprint)
		}
		record.SessionHistory = append(record.SessionHistory, event.ID)
		return nil
	})
	if err != nil {
		return a.fail(event, err)
	}

	event.State = StateCommitted
	a.logger.WithFields(logrus.Fields{
		"identity": identityID,
		"event":    event.ID,
		"risk":     event.RiskScore,
		"trust":    event.TrustScore,
	}).Debug("authentication committed")

	return event, nil
}

// fail forces the event into the Failed state with a deny decision and
// surfaces the error to the caller.
func (a *Authenticator) fail(event *Event, err error) (*Event, error) {
	event.State = StateFailed
	event.Allow = false
	event.Confidence = 1.0
	event.RequiredFactors = []Factor{}
	event.Reason = "Authentication failed"
	event.Error = err.Error()

	if !zterr.IsNotFound(err) {
		a.logger.WithError(err).WithField("identity", event.IdentityID).
			Warn("authentication failed closed")
	}
	return event, err
}

func denyReason(riskScore, trustScore float64) string {
	return fmt.Sprintf("Risk/trust outside adaptive policy bands (risk=%.2f, trust=%.2f)", riskScore, trustScore)
}
