// Package netseg enforces traffic policy for network segments.
package netseg

import (
	"time"

	"github.com/ztforge/ztforge/pkg/zterr"
)

// SecurityLevel is a segment's default posture for traffic that matches
// neither its allow nor its block list.
type SecurityLevel string

const (
	LevelLow    SecurityLevel = "low"
	LevelMedium SecurityLevel = "medium"
	LevelHigh   SecurityLevel = "high"
)

// Segment is a logical traffic zone with its own allow/block policy.
// Segments are created and updated administratively and are read-only
// during enforcement.
type Segment struct {
	ID            string          `json:"id"`
	SecurityLevel SecurityLevel   `json:"security_level"`
	Allowed       map[string]bool `json:"allowed"`
	Blocked       map[string]bool `json:"blocked"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewSegment builds a segment from its traffic type lists
func NewSegment(id string, level SecurityLevel, allowed, blocked []string) (*Segment, error) {
	if id == "" {
		return nil, zterr.Validation("segment_id", "required")
	}
	switch level {
	case LevelLow, LevelMedium, LevelHigh:
	default:
		return nil, zterr.Validation("security_level", "must be low, medium, or high")
	}

	seg := &Segment{
		ID:            id,
		SecurityLevel: level,
		Allowed:       make(map[string]bool, len(allowed)),
		Blocked:       make(map[string]bool, len(blocked)),
		UpdatedAt:     time.Now(),
	}
	for _, t := range allowed {
		seg.Allowed[t] = true
	}
	for _, t := range blocked {
		seg.Blocked[t] = true
	}
	return seg, nil
}

// Traffic describes one traffic event to evaluate
type Traffic struct {
	Type string `json:"type"`
}

// Decision is the outcome of a policy evaluation
type Decision struct {
	SegmentID  string  `json:"segment_id"`
	Traffic    string  `json:"traffic"`
	Allowed    bool    `json:"allowed"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Enforce evaluates a traffic descriptor against the segment's policy.
// The block list always takes precedence over the allow list; traffic
// matching neither falls through to the security-level default.
// Stateless and deterministic given the segment configuration.
func Enforce(seg *Segment, traffic Traffic) (Decision, error) {
	if traffic.Type == "" {
		return Decision{}, zterr.Validation("traffic_type", "required")
	}

	decision := Decision{SegmentID: seg.ID, Traffic: traffic.Type}

	if seg.Blocked[traffic.Type] {
		decision.Allowed = false
		decision.Confidence = 1.0
		decision.Reason = "Traffic type explicitly blocked"
		return decision, nil
	}

	if seg.Allowed[traffic.Type] {
		decision.Allowed = true
		decision.Confidence = 1.0
		decision.Reason = "Traffic type explicitly allowed"
		return decision, nil
	}

	switch seg.SecurityLevel {
	case LevelHigh:
		decision.Allowed = false
		decision.Confidence = 0.9
		decision.Reason = "Unlisted traffic blocked by high security default"
	default:
		decision.Allowed = true
		decision.Confidence = 0.7
		decision.Reason = "Unlisted traffic allowed by segment default"
	}
	return decision, nil
}
