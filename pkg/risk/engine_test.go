package risk

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/ztforge/ztforge/pkg/geo"
	"github.com/ztforge/ztforge/pkg/zterr"
)

type failingLocator struct{ err error }

func (l *failingLocator) Locate(context.Context, string) (string, error) {
	return "", l.err
}

func testEngine(locator geo.Locator) *Engine {
	return NewEngine(DefaultWeights(), ActiveHours{Start: 6, End: 22}, locator, nil)
}

func businessHours() time.Time {
	return time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
}

func TestAssessKnownDeviceHomeRegion(t *testing.T) {
	engine := testEngine(nil)

	result, err := engine.Assess(context.Background(), Input{
		Fingerprint:      "fp-1",
		Location:         "US",
		Timestamp:        businessHours(),
		KnownFingerprint: true,
		ExpectedRegion:   "US",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Score != 0 {
		t.Errorf("expected zero risk, got %v", result.Score)
	}
	if len(result.Factors) != 0 {
		t.Errorf("expected no factors, got %v", result.Factors)
	}
}

func TestAssessUnknownDeviceForeignLocation(t *testing.T) {
	engine := testEngine(nil)

	result, err := engine.Assess(context.Background(), Input{
		Fingerprint:    "fp-new",
		Location:       "RU",
		Timestamp:      businessHours(),
		ExpectedRegion: "US",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(result.Score-0.50) > 1e-9 {
		t.Errorf("expected risk 0.50, got %v", result.Score)
	}

	want := map[string]bool{FactorUnknownDevice: false, FactorForeignLocation: false}
	for _, f := range result.Factors {
		if _, ok := want[f]; ok {
			want[f] = true
		}
	}
	for f, seen := range want {
		if !seen {
			t.Errorf("expected factor %q, got %v", f, result.Factors)
		}
	}
}

func TestAssessUnusualTimeAndDeviation(t *testing.T) {
	engine := testEngine(nil)

	result, err := engine.Assess(context.Background(), Input{
		Fingerprint:      "fp-1",
		Location:         "US",
		Timestamp:        time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC),
		KnownFingerprint: true,
		ExpectedRegion:   "US",
		Deviation:        0.5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 0.10 unusual time + 0.5 * 0.40 behavioral
	if math.Abs(result.Score-0.30) > 1e-9 {
		t.Errorf("expected risk 0.30, got %v", result.Score)
	}
}

func TestAssessScoreClampedAtOne(t *testing.T) {
	engine := testEngine(nil)

	result, err := engine.Assess(context.Background(), Input{
		Fingerprint:    "fp-new",
		Location:       "RU",
		Timestamp:      time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC),
		ExpectedRegion: "US",
		Deviation:      1.0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Score != 1.0 {
		t.Errorf("expected risk clamped to 1.0, got %v", result.Score)
	}
}

func TestAssessMissingSignalsFailClosed(t *testing.T) {
	engine := testEngine(nil)

	_, err := engine.Assess(context.Background(), Input{
		Fingerprint: "fp-1",
		Location:    "US",
	})
	if !zterr.IsValidation(err) {
		t.Errorf("expected ValidationError for missing timestamp, got %v", err)
	}

	_, err = engine.Assess(context.Background(), Input{
		Location:  "US",
		Timestamp: businessHours(),
	})
	if !zterr.IsValidation(err) {
		t.Errorf("expected ValidationError for missing fingerprint, got %v", err)
	}
}

func TestAssessLocatorFailureTreatedAsForeign(t *testing.T) {
	engine := testEngine(&failingLocator{err: zterr.Timeout("geolocation", time.Second)})

	result, err := engine.Assess(context.Background(), Input{
		Fingerprint:      "fp-1",
		Location:         "203.0.113.9",
		Timestamp:        businessHours(),
		KnownFingerprint: true,
		ExpectedRegion:   "US",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(result.Score-0.20) > 1e-9 {
		t.Errorf("expected foreign-location weight on lookup failure, got %v", result.Score)
	}

	found := false
	for _, f := range result.Factors {
		if f == FactorLocationUnresolved {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %q factor, got %v", FactorLocationUnresolved, result.Factors)
	}
}

func TestStaticLocatorMapsIPs(t *testing.T) {
	locator := &geo.StaticLocator{Regions: map[string]string{"198.51.100.4": "DE"}}
	engine := testEngine(locator)

	result, err := engine.Assess(context.Background(), Input{
		Fingerprint:      "fp-1",
		Location:         "198.51.100.4",
		Timestamp:        businessHours(),
		KnownFingerprint: true,
		ExpectedRegion:   "DE",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Score != 0 {
		t.Errorf("expected mapped region to match expected region, got risk %v", result.Score)
	}
}
