// Package identity models identities, roles, and their permission sets.
package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ztforge/ztforge/pkg/zterr"
)

// Status represents an identity lifecycle status. Identities are never
// deleted in-core; deactivation is a status flag.
type Status string

const (
	StatusActive      Status = "active"
	StatusDeactivated Status = "deactivated"
)

// RiskTier classifies an identity's standing risk
type RiskTier string

const (
	TierLow    RiskTier = "low"
	TierMedium RiskTier = "medium"
	TierHigh   RiskTier = "high"
)

// Identity represents a registered identity and its access profile
type Identity struct {
	ID             string    `json:"id"`
	Role           string    `json:"role"`
	Permissions    []string  `json:"permissions"`
	BaselineTrust  float64   `json:"baseline_trust"`
	RiskTier       RiskTier  `json:"risk_tier"`
	Status         Status    `json:"status"`
	ExpectedRegion string    `json:"expected_region"`
	CreatedAt      time.Time `json:"created_at"`

	// KnownFingerprints is append-only: it grows only when an
	// authentication for this identity is allowed and committed.
	KnownFingerprints []string `json:"known_fingerprints"`

	// SessionHistory holds ids of past committed authentication events.
	SessionHistory []string `json:"session_history"`

	// DeviceIDs indexes registered devices owned by this identity.
	// The reverse reference lives on the device record; there is no
	// cyclic pointer graph.
	DeviceIDs []string `json:"device_ids"`
}

// Config describes a new identity registration
type Config struct {
	Role           string  `json:"role"`
	BaselineTrust  float64 `json:"baseline_trust"`
	ExpectedRegion string  `json:"expected_region"`
}

// rolePermissions maps each recognized role to its effective permission set
var rolePermissions = map[string][]string{
	"admin":   {"read", "write", "delete", "admin"},
	"analyst": {"read", "write"},
	"user":    {"read"},
	"guest":   {},
}

// PermissionsForRole returns the effective permission set for a role
func PermissionsForRole(role string) ([]string, error) {
	perms, ok := rolePermissions[role]
	if !ok {
		return nil, zterr.Validation("role", "unknown role "+role)
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out, nil
}

// New creates an identity from a registration config
func New(cfg Config) (*Identity, error) {
	perms, err := PermissionsForRole(cfg.Role)
	if err != nil {
		return nil, err
	}

	trust := cfg.BaselineTrust
	if trust < 0 || trust > 1 {
		return nil, zterr.Validation("baseline_trust", "must be in [0,1]")
	}

	return &Identity{
		ID:                uuid.New().String(),
		Role:              cfg.Role,
		Permissions:       perms,
		BaselineTrust:     trust,
		RiskTier:          tierForTrust(trust),
		Status:            StatusActive,
		ExpectedRegion:    cfg.ExpectedRegion,
		CreatedAt:         time.Now(),
		KnownFingerprints: make([]string, 0),
		SessionHistory:    make([]string, 0),
		DeviceIDs:         make([]string, 0),
	}, nil
}

func tierForTrust(trust float64) RiskTier {
	switch {
	case trust >= 0.7:
		return TierLow
	case trust >= 0.4:
		return TierMedium
	default:
		return TierHigh
	}
}

// HasPermission reports whether the identity's effective permission set
// contains the given action
func (id *Identity) HasPermission(action string) bool {
	for _, p := range id.Permissions {
		if p == action {
			return true
		}
	}
	return false
}

// KnowsFingerprint reports whether the device fingerprint has been seen
// on a previously committed authentication
func (id *Identity) KnowsFingerprint(fp string) bool {
	for _, known := range id.KnownFingerprints {
		if known == fp {
			return true
		}
	}
	return false
}

// SetRole updates the identity's role and re-derives its permission set
func (id *Identity) SetRole(role string) error {
	perms, err := PermissionsForRole(role)
	if err != nil {
		return err
	}
	id.Role = role
	id.Permissions = perms
	return nil
}
