// Package authn implements adaptive authentication: factor selection
// and allow/deny decisions driven by risk and trust.
package authn

import "math"

// Factor is a proof-of-identity factor type
type Factor string

const (
	FactorPassword  Factor = "password"
	FactorMFA       Factor = "mfa"
	FactorBiometric Factor = "biometric"
)

// Params are the tunable policy parameters. Thresholds are policy, not
// literals; operators retune them without a rebuild.
type Params struct {
	BiometricTrustBonus  float64
	PossessionTrustBonus float64
	LowRiskCeiling       float64
	MediumRiskCeiling    float64
	HighRiskCeiling      float64
	HighTrustFloor       float64
	MediumTrustFloor     float64
	LowTrustFloor        float64
}

// DefaultParams returns the default policy parameters
func DefaultParams() Params {
	return Params{
		BiometricTrustBonus:  0.20,
		PossessionTrustBonus: 0.10,
		LowRiskCeiling:       0.3,
		MediumRiskCeiling:    0.6,
		HighRiskCeiling:      0.8,
		HighTrustFloor:       0.8,
		MediumTrustFloor:     0.6,
		LowTrustFloor:        0.4,
	}
}

// band is one row of the decision table. Bands are evaluated top to
// bottom; the first match wins, which keeps the policy monotone in risk.
type band struct {
	riskBelow  float64
	trustAbove float64
	required   []Factor
	confidence float64
}

// Outcome is a policy decision
type Outcome struct {
	RequiredFactors []Factor `json:"required_factors"`
	Allow           bool     `json:"allow"`
	Confidence      float64  `json:"confidence"`
}

// Policy maps (risk, trust) to a required factor set and a decision.
type Policy struct {
	params Params
	bands  []band
}

// NewPolicy builds the decision table from its parameters
func NewPolicy(params Params) *Policy {
	return &Policy{
		params: params,
		bands: []band{
			{params.LowRiskCeiling, params.HighTrustFloor, []Factor{FactorPassword}, 0.9},
			{params.MediumRiskCeiling, params.MediumTrustFloor, []Factor{FactorPassword, FactorMFA}, 0.8},
			{params.HighRiskCeiling, params.LowTrustFloor, []Factor{FactorPassword, FactorMFA, FactorBiometric}, 0.7},
		},
	}
}

// Decide evaluates the decision table. Holding trust fixed, increasing
// risk never shrinks the required-factor set or relaxes the decision.
func (p *Policy) Decide(riskScore, trustScore float64) Outcome {
	for _, b := range p.bands {
		if riskScore < b.riskBelow && trustScore > b.trustAbove {
			required := make([]Factor, len(b.required))
			copy(required, b.required)
			return Outcome{RequiredFactors: required, Allow: true, Confidence: b.confidence}
		}
	}
	return Outcome{RequiredFactors: []Factor{}, Allow: false, Confidence: 0.9}
}

// ComputeTrust derives the effective trust score from the identity's
// baseline and the presented factors: biometric and possession factors
// raise trust by their configured bonus, capped at 1.0.
func (p *Policy) ComputeTrust(baseline float64, presented []Factor) float64 {
	trust := baseline
	for _, f := range presented {
		switch f {
		case FactorBiometric:
			trust += p.params.BiometricTrustBonus
		case FactorMFA:
			trust += p.params.PossessionTrustBonus
		}
	}
	return math.Max(0, math.Min(1, trust))
}
