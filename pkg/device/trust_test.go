package device

import (
	"reflect"
	"testing"
)

func TestEvaluateFullyCompliantCorporate(t *testing.T) {
	attrs := Attributes{
		IdentityID:        "id-1",
		Fingerprint:       "fp-1",
		Class:             ClassCorporate,
		OS:                "linux",
		EncryptionOn:      true,
		AntivirusOn:       true,
		FirewallOn:        true,
		PatchLevelCurrent: true,
	}

	result := Evaluate(attrs)

	if result.TrustScore != 0.8 {
		t.Errorf("expected trust 0.8, got %v", result.TrustScore)
	}
	if result.ComplianceScore != 1.0 {
		t.Errorf("expected compliance 1.0, got %v", result.ComplianceScore)
	}
	if result.Posture != PostureGood {
		t.Errorf("expected posture good, got %s", result.Posture)
	}
	if len(result.RiskFactors) != 0 {
		t.Errorf("expected no risk factors, got %v", result.RiskFactors)
	}
}

func TestEvaluateMissingControls(t *testing.T) {
	attrs := Attributes{
		Class:       ClassPersonal,
		AntivirusOn: true,
		FirewallOn:  true,
	}

	result := Evaluate(attrs)

	// 0.6 baseline minus two control penalties
	if result.TrustScore < 0.399 || result.TrustScore > 0.401 {
		t.Errorf("expected trust ~0.4, got %v", result.TrustScore)
	}
	if result.ComplianceScore != 0.5 {
		t.Errorf("expected compliance 0.5, got %v", result.ComplianceScore)
	}
	if result.Posture != PostureNeedsImprovement {
		t.Errorf("expected needs_improvement, got %s", result.Posture)
	}

	want := []string{"no_encryption", "outdated_os"}
	for _, factor := range want {
		found := false
		for _, got := range result.RiskFactors {
			if got == factor {
				found = true
			}
		}
		if !found {
			t.Errorf("expected risk factor %q in %v", factor, result.RiskFactors)
		}
	}
}

func TestEvaluateClampsAtZero(t *testing.T) {
	result := Evaluate(Attributes{Class: ClassUnknown})
	if result.TrustScore < 0 || result.TrustScore > 1 {
		t.Errorf("trust score out of range: %v", result.TrustScore)
	}
	if result.Posture != PostureUnknown {
		t.Errorf("expected posture unknown, got %s", result.Posture)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	attrs := Attributes{
		Class:        ClassCorporate,
		EncryptionOn: true,
		FirewallOn:   true,
	}

	first := Evaluate(attrs)
	second := Evaluate(attrs)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("evaluation not deterministic: %+v vs %+v", first, second)
	}
}

func TestNewRequiresOwnerAndFingerprint(t *testing.T) {
	if _, err := New(Attributes{Fingerprint: "fp"}); err == nil {
		t.Error("expected error for missing identity_id")
	}
	if _, err := New(Attributes{IdentityID: "id"}); err == nil {
		t.Error("expected error for missing fingerprint")
	}

	d, err := New(Attributes{IdentityID: "id", Fingerprint: "fp", Class: ClassCorporate})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.IdentityID != "id" || d.Fingerprint != "fp" {
		t.Errorf("device fields not set: %+v", d)
	}
	if d.TrustScore < 0 || d.TrustScore > 1 {
		t.Errorf("trust score out of range: %v", d.TrustScore)
	}
}
