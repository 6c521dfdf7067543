package authz

import (
	"testing"

	"github.com/ztforge/ztforge/pkg/identity"
	"github.com/ztforge/ztforge/pkg/zterr"
)

func analyst() *identity.Identity {
	return &identity.Identity{
		ID:          "ana",
		Role:        "analyst",
		Permissions: []string{"read", "write"},
		Status:      identity.StatusActive,
	}
}

func TestAuthorizeInsufficientPermissions(t *testing.T) {
	engine := NewEngine(0.7, nil, nil)

	// Permission check short-circuits before risk is consulted:
	// even a trivially low-risk context cannot rescue a missing grant.
	request, err := engine.Authorize(analyst(), "reports", "delete", 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if request.Allow {
		t.Fatal("expected deny")
	}
	if request.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %v", request.Confidence)
	}
	if request.Reasoning != "Insufficient permissions" {
		t.Errorf("unexpected reasoning: %s", request.Reasoning)
	}
}

func TestAuthorizeHighRiskOverride(t *testing.T) {
	engine := NewEngine(0.7, nil, nil)

	request, err := engine.Authorize(analyst(), "reports", "read", 0.8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if request.Allow {
		t.Fatal("expected deny for risk above threshold")
	}
	if request.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %v", request.Confidence)
	}
	if request.Reasoning != "High risk access attempt" {
		t.Errorf("unexpected reasoning: %s", request.Reasoning)
	}
}

func TestAuthorizeLeastPrivilege(t *testing.T) {
	engine := NewEngine(0.7, map[string]string{"reports": "read"}, nil)

	request, err := engine.Authorize(analyst(), "reports", "write", 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if request.Allow {
		t.Fatal("expected deny: write exceeds the resource minimum of read")
	}
	if request.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %v", request.Confidence)
	}
}

func TestAuthorizeAllow(t *testing.T) {
	engine := NewEngine(0.7, map[string]string{"reports": "write"}, nil)

	request, err := engine.Authorize(analyst(), "reports", "read", 0.2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !request.Allow {
		t.Fatalf("expected allow, got deny: %s", request.Reasoning)
	}
	if request.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %v", request.Confidence)
	}
}

func TestAuthorizeDeactivatedIdentity(t *testing.T) {
	engine := NewEngine(0.7, nil, nil)

	record := analyst()
	record.Status = identity.StatusDeactivated

	request, err := engine.Authorize(record, "reports", "read", 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if request.Allow {
		t.Fatal("expected deny for deactivated identity")
	}
}

func TestAuthorizeUnknownAction(t *testing.T) {
	engine := NewEngine(0.7, nil, nil)

	request, err := engine.Authorize(analyst(), "reports", "transmogrify", 0.1)
	if !zterr.IsValidation(err) {
		t.Errorf("expected ValidationError, got %v", err)
	}
	if request.Allow {
		t.Error("validation failure must not allow")
	}
}

func TestDeclareResourceRejectsUnknownScope(t *testing.T) {
	engine := NewEngine(0.7, nil, nil)
	if err := engine.DeclareResource("reports", "fly"); err == nil {
		t.Error("expected error for unknown scope")
	}
	if err := engine.DeclareResource("reports", "read"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
