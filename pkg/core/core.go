// Package core exposes the zero-trust decision operations: device
// registration, identity management, authentication, authorization,
// network policy enforcement, and behavior analysis.
package core

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ztforge/ztforge/pkg/audit"
	"github.com/ztforge/ztforge/pkg/authn"
	"github.com/ztforge/ztforge/pkg/authz"
	"github.com/ztforge/ztforge/pkg/behavior"
	"github.com/ztforge/ztforge/pkg/device"
	"github.com/ztforge/ztforge/pkg/geo"
	"github.com/ztforge/ztforge/pkg/identity"
	"github.com/ztforge/ztforge/pkg/monitor"
	"github.com/ztforge/ztforge/pkg/netseg"
	"github.com/ztforge/ztforge/pkg/risk"
	"github.com/ztforge/ztforge/pkg/storage"
)

// Options configure a Core. Store is required; every other field has a
// working default. The tunables are pointers so an operator can set
// them to zero without the default taking over.
type Options struct {
	Store          storage.Store
	Locator        geo.Locator
	Sink           audit.Sink
	Counters       *monitor.Counters
	Logger         *logrus.Logger
	RiskWeights    *risk.Weights
	ActiveHours    *risk.ActiveHours
	AuthnParams    *authn.Params
	HighRiskLimit  *float64
	RecencyWeight  *float64
	ResourceScopes map[string]string
}

// Core wires the decision engines over a shared store
type Core struct {
	store         storage.Store
	policy        *authn.Policy
	riskEngine    *risk.Engine
	tracker       *behavior.Tracker
	authenticator *authn.Authenticator
	authzEngine   *authz.Engine
	counters      *monitor.Counters
	sink          audit.Sink
	logger        *logrus.Logger
}

// New builds a Core from its options
func New(opts Options) *Core {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Sink == nil {
		opts.Sink = audit.NopSink{}
	}
	if opts.Counters == nil {
		opts.Counters = &monitor.Counters{}
	}
	weights := risk.DefaultWeights()
	if opts.RiskWeights != nil {
		weights = *opts.RiskWeights
	}
	hours := risk.ActiveHours{Start: 6, End: 22}
	if opts.ActiveHours != nil {
		hours = *opts.ActiveHours
	}
	params := authn.DefaultParams()
	if opts.AuthnParams != nil {
		params = *opts.AuthnParams
	}
	highRiskLimit := 0.7
	if opts.HighRiskLimit != nil {
		highRiskLimit = *opts.HighRiskLimit
	}
	recencyWeight := 0.3
	if opts.RecencyWeight != nil {
		recencyWeight = *opts.RecencyWeight
	}

	policy := authn.NewPolicy(params)
	riskEngine := risk.NewEngine(weights, hours, opts.Locator, opts.Logger)
	tracker := behavior.NewTracker(recencyWeight)

	return &Core{
		store:         opts.Store,
		policy:        policy,
		riskEngine:    riskEngine,
		tracker:       tracker,
		authenticator: authn.NewAuthenticator(policy, riskEngine, tracker, opts.Store, opts.Logger),
		authzEngine:   authz.NewEngine(highRiskLimit, opts.ResourceScopes, opts.Logger),
		counters:      opts.Counters,
		sink:          opts.Sink,
		logger:        opts.Logger,
	}
}

// CreateIdentity registers a new identity
func (c *Core) CreateIdentity(ctx context.Context, cfg identity.Config) (*identity.Identity, error) {
	record, err := identity.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.store.PutIdentity(ctx, record); err != nil {
		return nil, err
	}
	c.logger.WithFields(logrus.Fields{"identity": record.ID, "role": record.Role}).
		Info("identity created")
	return record, nil
}

// RegisterDevice registers a device and indexes it on its owner
func (c *Core) RegisterDevice(ctx context.Context, attrs device.Attributes) (*device.Device, error) {
	record, err := device.New(attrs)
	if err != nil {
		return nil, err
	}
	if err := c.store.PutDevice(ctx, record); err != nil {
		return nil, err
	}
	_, err = c.store.UpdateIdentity(ctx, record.IdentityID, func(owner *identity.Identity) error {
		for _, id := range owner.DeviceIDs {
			if id == record.ID {
				return nil
			}
		}
		owner.DeviceIDs = append(owner.DeviceIDs, record.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Authenticate evaluates an authentication request and records the
// decision
func (c *Core) Authenticate(ctx context.Context, identityID string, authCtx authn.Context) (*authn.Event, error) {
	event, err := c.authenticator.Authenticate(ctx, identityID, authCtx)

	if event != nil {
		if event.Allow {
			c.counters.AuthAllowed.Add(1)
		} else {
			c.counters.AuthDenied.Add(1)
		}
		c.counters.ObserveRisk(event.RiskScore)
		c.sink.Submit(audit.Record{
			Component:  "authn",
			IdentityID: identityID,
			Subject:    event.ID,
			Allow:      event.Allow,
			Confidence: event.Confidence,
			Reason:     event.Reason,
			RiskScore:  event.RiskScore,
		})
	}
	return event, err
}

// Authorize evaluates a resource access request with a freshly
// computed risk score for the access context. Any scoring fault forces
// a deny with the error surfaced to the caller.
func (c *Core) Authorize(ctx context.Context, identityID, resource, action string, accessCtx authn.Context) (authz.Request, error) {
	denied := authz.Request{
		IdentityID: identityID,
		Resource:   resource,
		Action:     action,
		Allow:      false,
		Confidence: 1.0,
		Reasoning:  "Authorization failed",
	}

	record, err := c.store.GetIdentity(ctx, identityID)
	if err != nil {
		c.counters.AuthzDenied.Add(1)
		return denied, err
	}

	deviation, err := c.tracker.Deviation(identityID, behavior.Sample{
		LoginTime:  accessCtx.Timestamp,
		Location:   accessCtx.Location,
		ActionRate: accessCtx.ActionRate,
	})
	if err != nil {
		c.counters.AuthzDenied.Add(1)
		return denied, err
	}

	assessment, err := c.riskEngine.Assess(ctx, risk.Input{
		Fingerprint:      accessCtx.DeviceFingerprint,
		Location:         accessCtx.Location,
		Timestamp:        accessCtx.Timestamp,
		KnownFingerprint: record.KnowsFingerprint(accessCtx.DeviceFingerprint),
		ExpectedRegion:   record.ExpectedRegion,
		Deviation:        deviation,
	})
	if err != nil {
		c.counters.AuthzDenied.Add(1)
		return denied, err
	}

	request, err := c.authzEngine.Authorize(record, resource, action, assessment.Score)
	if err != nil {
		c.counters.AuthzDenied.Add(1)
		return denied, err
	}

	if request.Allow {
		c.counters.AuthzAllowed.Add(1)
	} else {
		c.counters.AuthzDenied.Add(1)
	}
	c.counters.ObserveRisk(assessment.Score)
	c.sink.Submit(audit.Record{
		Component:  "authz",
		IdentityID: identityID,
		Subject:    resource + ":" + action,
		Allow:      request.Allow,
		Confidence: request.Confidence,
		Reason:     request.Reasoning,
		RiskScore:  assessment.Score,
	})
	return request, nil
}

// EnforceNetworkPolicy evaluates a traffic descriptor against a
// segment's policy
func (c *Core) EnforceNetworkPolicy(ctx context.Context, segmentID string, traffic netseg.Traffic) (netseg.Decision, error) {
	segment, err := c.store.GetSegment(ctx, segmentID)
	if err != nil {
		c.counters.NetBlocked.Add(1)
		return netseg.Decision{SegmentID: segmentID, Traffic: traffic.Type, Allowed: false, Confidence: 1.0, Reason: "Segment lookup failed"}, err
	}

	decision, err := netseg.Enforce(segment, traffic)
	if err != nil {
		c.counters.NetBlocked.Add(1)
		return netseg.Decision{SegmentID: segmentID, Traffic: traffic.Type, Allowed: false, Confidence: 1.0, Reason: "Enforcement failed"}, err
	}

	if decision.Allowed {
		c.counters.NetAllowed.Add(1)
	} else {
		c.counters.NetBlocked.Add(1)
	}
	c.sink.Submit(audit.Record{
		Component:  "netseg",
		SegmentID:  segmentID,
		Subject:    traffic.Type,
		Allow:      decision.Allowed,
		Confidence: decision.Confidence,
		Reason:     decision.Reason,
	})
	return decision, nil
}

// AnalyzeBehavior folds a behavior sample into the identity's baseline
// and returns the observed deviation
func (c *Core) AnalyzeBehavior(ctx context.Context, identityID string, sample behavior.Sample) (float64, behavior.Baseline, error) {
	if _, err := c.store.GetIdentity(ctx, identityID); err != nil {
		return 0, behavior.Baseline{}, err
	}
	return c.tracker.Observe(identityID, sample)
}

// UpsertSegment creates or replaces a network segment configuration
func (c *Core) UpsertSegment(ctx context.Context, id string, level netseg.SecurityLevel, allowed, blocked []string) (*netseg.Segment, error) {
	segment, err := netseg.NewSegment(id, level, allowed, blocked)
	if err != nil {
		return nil, err
	}
	if err := c.store.PutSegment(ctx, segment); err != nil {
		return nil, err
	}
	return segment, nil
}

// UpdateRole changes an identity's role and re-derives its permissions
func (c *Core) UpdateRole(ctx context.Context, identityID, role string) (*identity.Identity, error) {
	return c.store.UpdateIdentity(ctx, identityID, func(record *identity.Identity) error {
		return record.SetRole(role)
	})
}

// Deactivate flags an identity as deactivated. Records are never
// deleted in-core.
func (c *Core) Deactivate(ctx context.Context, identityID string) error {
	_, err := c.store.UpdateIdentity(ctx, identityID, func(record *identity.Identity) error {
		record.Status = identity.StatusDeactivated
		return nil
	})
	return err
}

// DeclareResource registers a resource's minimum sufficient scope for
// least-privilege checks
func (c *Core) DeclareResource(resource, minimumScope string) error {
	return c.authzEngine.DeclareResource(resource, minimumScope)
}
