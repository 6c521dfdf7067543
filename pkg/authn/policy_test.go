package authn

import (
	"reflect"
	"testing"
)

func TestDecideLowRiskHighTrust(t *testing.T) {
	policy := NewPolicy(DefaultParams())

	outcome := policy.Decide(0.1, 0.9)
	if !outcome.Allow {
		t.Fatal("expected allow")
	}
	if !reflect.DeepEqual(outcome.RequiredFactors, []Factor{FactorPassword}) {
		t.Errorf("expected [password], got %v", outcome.RequiredFactors)
	}
	if outcome.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %v", outcome.Confidence)
	}
}

func TestDecideMediumBand(t *testing.T) {
	policy := NewPolicy(DefaultParams())

	// Trust 0.55 misses the trust>0.6 band and steps up to the full
	// factor set instead of the two-factor outcome.
	outcome := policy.Decide(0.5, 0.55)
	if !outcome.Allow {
		t.Fatal("expected step-up allow for risk 0.5, trust 0.55")
	}
	stepUp := []Factor{FactorPassword, FactorMFA, FactorBiometric}
	if !reflect.DeepEqual(outcome.RequiredFactors, stepUp) {
		t.Errorf("expected %v, got %v", stepUp, outcome.RequiredFactors)
	}
	if outcome.Confidence != 0.7 {
		t.Errorf("expected confidence 0.7, got %v", outcome.Confidence)
	}

	outcome = policy.Decide(0.5, 0.65)
	if !outcome.Allow {
		t.Fatal("expected allow for risk 0.5, trust 0.65")
	}
	if !reflect.DeepEqual(outcome.RequiredFactors, []Factor{FactorPassword, FactorMFA}) {
		t.Errorf("expected [password mfa], got %v", outcome.RequiredFactors)
	}
	if outcome.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %v", outcome.Confidence)
	}
}

func TestDecideHighBandStepUp(t *testing.T) {
	policy := NewPolicy(DefaultParams())

	// Risk 0.5 with trust 0.5: fails the trust>0.6 band, lands in the
	// trust>0.4 band with the full factor set.
	outcome := policy.Decide(0.5, 0.5)
	if !outcome.Allow {
		t.Fatal("expected allow")
	}
	want := []Factor{FactorPassword, FactorMFA, FactorBiometric}
	if !reflect.DeepEqual(outcome.RequiredFactors, want) {
		t.Errorf("expected %v, got %v", want, outcome.RequiredFactors)
	}
	if outcome.Confidence != 0.7 {
		t.Errorf("expected confidence 0.7, got %v", outcome.Confidence)
	}
}

func TestDecideDefaultDeny(t *testing.T) {
	policy := NewPolicy(DefaultParams())

	outcome := policy.Decide(0.9, 0.9)
	if outcome.Allow {
		t.Fatal("expected deny at risk 0.9")
	}
	if len(outcome.RequiredFactors) != 0 {
		t.Errorf("expected empty factor set on deny, got %v", outcome.RequiredFactors)
	}
	if outcome.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %v", outcome.Confidence)
	}
}

// TestDecideMonotoneInRisk sweeps risk upward at fixed trust levels and
// checks the required-factor set never shrinks and an allow never
// reappears after a deny.
func TestDecideMonotoneInRisk(t *testing.T) {
	policy := NewPolicy(DefaultParams())

	for _, trust := range []float64{0.45, 0.65, 0.85, 1.0} {
		prevFactors := 0
		denied := false
		for riskStep := 0; riskStep <= 100; riskStep++ {
			outcome := policy.Decide(float64(riskStep)/100.0, trust)
			if denied && outcome.Allow {
				t.Fatalf("allow reappeared after deny at trust=%v risk=%v", trust, float64(riskStep)/100.0)
			}
			if outcome.Allow {
				if len(outcome.RequiredFactors) < prevFactors {
					t.Fatalf("factor set shrank with rising risk at trust=%v risk=%v", trust, float64(riskStep)/100.0)
				}
				prevFactors = len(outcome.RequiredFactors)
			} else {
				denied = true
			}
		}
	}
}

func TestComputeTrustBonuses(t *testing.T) {
	policy := NewPolicy(DefaultParams())

	tests := []struct {
		name      string
		baseline  float64
		presented []Factor
		want      float64
	}{
		{"no factors", 0.5, nil, 0.5},
		{"biometric", 0.5, []Factor{FactorBiometric}, 0.7},
		{"possession", 0.5, []Factor{FactorMFA}, 0.6},
		{"both", 0.5, []Factor{FactorBiometric, FactorMFA}, 0.8},
		{"capped", 0.95, []Factor{FactorBiometric, FactorMFA}, 1.0},
		{"password is not a bonus", 0.5, []Factor{FactorPassword}, 0.5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := policy.ComputeTrust(tc.baseline, tc.presented)
			if got < tc.want-1e-9 || got > tc.want+1e-9 {
				t.Errorf("expected trust %v, got %v", tc.want, got)
			}
		})
	}
}
