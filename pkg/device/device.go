// Package device models registered devices and evaluates their trust
// and compliance posture.
package device

import (
	"time"

	"github.com/google/uuid"

	"github.com/ztforge/ztforge/pkg/zterr"
)

// Posture classifies a device's overall security posture
type Posture string

const (
	PostureGood             Posture = "good"
	PostureNeedsImprovement Posture = "needs_improvement"
	PostureUnknown          Posture = "unknown"
)

// Class is the declared device class used as the trust baseline
type Class string

const (
	ClassCorporate Class = "corporate"
	ClassPersonal  Class = "personal"
	ClassUnknown   Class = "unknown"
)

// Attributes are the declared security attributes of a device
type Attributes struct {
	IdentityID        string `json:"identity_id"`
	Fingerprint       string `json:"fingerprint"`
	Class             Class  `json:"class"`
	OS                string `json:"os"`
	OSVersion         string `json:"os_version"`
	EncryptionOn      bool   `json:"encryption_on"`
	AntivirusOn       bool   `json:"antivirus_on"`
	FirewallOn        bool   `json:"firewall_on"`
	PatchLevelCurrent bool   `json:"patch_level_current"`
}

// Device represents a registered device. The owning identity reference
// is immutable after registration.
type Device struct {
	ID              string     `json:"id"`
	IdentityID      string     `json:"identity_id"`
	Fingerprint     string     `json:"fingerprint"`
	OS              string     `json:"os"`
	OSVersion       string     `json:"os_version"`
	Attributes      Attributes `json:"attributes"`
	TrustScore      float64    `json:"trust_score"`
	ComplianceScore float64    `json:"compliance_score"`
	Posture         Posture    `json:"posture"`
	Vulnerabilities []string   `json:"vulnerabilities"`
	RegisteredAt    time.Time  `json:"registered_at"`
	LastAssessedAt  time.Time  `json:"last_assessed_at"`
}

// New registers a device from its declared attributes and runs an
// initial trust assessment
func New(attrs Attributes) (*Device, error) {
	if attrs.IdentityID == "" {
		return nil, zterr.Validation("identity_id", "required")
	}
	if attrs.Fingerprint == "" {
		return nil, zterr.Validation("fingerprint", "required")
	}

	d := &Device{
		ID:           uuid.New().String(),
		IdentityID:   attrs.IdentityID,
		Fingerprint:  attrs.Fingerprint,
		OS:           attrs.OS,
		OSVersion:    attrs.OSVersion,
		Attributes:   attrs,
		RegisteredAt: time.Now(),
	}
	d.Assess()
	return d, nil
}

// Assess recomputes trust, compliance, posture, and vulnerabilities
// from the device's declared attributes
func (d *Device) Assess() Assessment {
	result := Evaluate(d.Attributes)
	d.TrustScore = result.TrustScore
	d.ComplianceScore = result.ComplianceScore
	d.Posture = result.Posture
	d.Vulnerabilities = result.RiskFactors
	d.LastAssessedAt = time.Now()
	return result
}
