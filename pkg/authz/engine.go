// Package authz decides resource access from permissions, least
// privilege, and the current risk context.
package authz

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ztforge/ztforge/pkg/identity"
	"github.com/ztforge/ztforge/pkg/zterr"
)

// Request is the outcome of an authorization evaluation. Requests are
// created and discarded per call; the audit sink keeps the record.
type Request struct {
	IdentityID string    `json:"identity_id"`
	Resource   string    `json:"resource"`
	Action     string    `json:"action"`
	Allow      bool      `json:"allow"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
	RiskScore  float64   `json:"risk_score"`
	Timestamp  time.Time `json:"timestamp"`
}

// actionScope ranks actions by the breadth of access they request
var actionScope = map[string]int{
	"read":   1,
	"write":  2,
	"delete": 3,
	"admin":  4,
}

// Engine evaluates authorization requests. highRiskThreshold is the
// risk score above which access is denied regardless of permissions.
type Engine struct {
	highRiskThreshold float64

	// resourceScopes declares each resource's minimum sufficient scope.
	// Requesting a broader action than the declared minimum violates
	// least privilege.
	resourceScopes map[string]string

	logger *logrus.Logger
}

// NewEngine creates an authorization engine
func NewEngine(highRiskThreshold float64, resourceScopes map[string]string, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	if resourceScopes == nil {
		resourceScopes = make(map[string]string)
	}
	return &Engine{
		highRiskThreshold: highRiskThreshold,
		resourceScopes:    resourceScopes,
		logger:            logger,
	}
}

// DeclareResource registers a resource's minimum sufficient scope
func (e *Engine) DeclareResource(resource, minimumScope string) error {
	if _, ok := actionScope[minimumScope]; !ok {
		return zterr.Validation("minimum_scope", fmt.Sprintf("unknown action %q", minimumScope))
	}
	e.resourceScopes[resource] = minimumScope
	return nil
}

// Authorize evaluates a (resource, action) request. The permission
// check short-circuits before risk is consulted; risk always overrides
// a bare permission grant.
func (e *Engine) Authorize(record *identity.Identity, resource, action string, riskScore float64) (Request, error) {
	request := Request{
		IdentityID: record.ID,
		Resource:   resource,
		Action:     action,
		RiskScore:  riskScore,
		Timestamp:  time.Now(),
	}

	if _, ok := actionScope[action]; !ok {
		return request, zterr.Validation("action", fmt.Sprintf("unknown action %q", action))
	}

	if record.Status != identity.StatusActive {
		request.Allow = false
		request.Confidence = 1.0
		request.Reasoning = "Identity deactivated"
		return request, nil
	}

	if !record.HasPermission(action) {
		request.Allow = false
		request.Confidence = 1.0
		request.Reasoning = "Insufficient permissions"
		return request, nil
	}

	if minimum, ok := e.resourceScopes[resource]; ok {
		if actionScope[action] > actionScope[minimum] {
			request.Allow = false
			request.Confidence = 1.0
			request.Reasoning = fmt.Sprintf("Least privilege violation: %s exceeds resource minimum %s", action, minimum)
			return request, nil
		}
	}

	if riskScore > e.highRiskThreshold {
		request.Allow = false
		request.Confidence = 0.9
		request.Reasoning = "High risk access attempt"
		return request, nil
	}

	request.Allow = true
	request.Confidence = 0.8
	request.Reasoning = "Permitted under least privilege at acceptable risk"
	return request, nil
}
