package device

import "math"

// Assessment is the result of a device trust evaluation
type Assessment struct {
	TrustScore      float64  `json:"trust_score"`
	ComplianceScore float64  `json:"compliance_score"`
	Posture         Posture  `json:"posture"`
	RiskFactors     []string `json:"risk_factors"`
}

// Trust baselines per declared device class and the fixed penalty per
// missing required control. Evaluation is deterministic: identical
// attributes always yield identical scores.
const (
	baselineCorporate = 0.8
	baselinePersonal  = 0.6
	baselineUnknown   = 0.4

	controlPenalty = 0.1
)

// Evaluate computes trust and compliance scores from declared device
// attributes. Pure function: no device state is mutated.
func Evaluate(attrs Attributes) Assessment {
	trust := baselineForClass(attrs.Class)
	factors := make([]string, 0, 4)

	required := 4
	present := 0

	if attrs.EncryptionOn {
		present++
	} else {
		trust -= controlPenalty
		factors = append(factors, "no_encryption")
	}

	if attrs.AntivirusOn {
		present++
	} else {
		trust -= controlPenalty
		factors = append(factors, "no_antivirus")
	}

	if attrs.FirewallOn {
		present++
	} else {
		trust -= controlPenalty
		factors = append(factors, "no_firewall")
	}

	if attrs.PatchLevelCurrent {
		present++
	} else {
		trust -= controlPenalty
		factors = append(factors, "outdated_os")
	}

	trust = clamp(trust)
	compliance := float64(present) / float64(required)

	return Assessment{
		TrustScore:      trust,
		ComplianceScore: compliance,
		Posture:         postureFor(attrs.Class, compliance),
		RiskFactors:     factors,
	}
}

func baselineForClass(class Class) float64 {
	switch class {
	case ClassCorporate:
		return baselineCorporate
	case ClassPersonal:
		return baselinePersonal
	default:
		return baselineUnknown
	}
}

func postureFor(class Class, compliance float64) Posture {
	if class == ClassUnknown {
		return PostureUnknown
	}
	if compliance >= 1.0 {
		return PostureGood
	}
	return PostureNeedsImprovement
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
