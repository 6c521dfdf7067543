package core

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ztforge/ztforge/pkg/authn"
	"github.com/ztforge/ztforge/pkg/behavior"
	"github.com/ztforge/ztforge/pkg/device"
	"github.com/ztforge/ztforge/pkg/identity"
	"github.com/ztforge/ztforge/pkg/netseg"
	"github.com/ztforge/ztforge/pkg/zterr"
)

// RegisterRoutes attaches the decision API to a router
func (c *Core) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/v1/identities", c.handleCreateIdentity).Methods(http.MethodPost)
	router.HandleFunc("/v1/identities/{id}/role", c.handleUpdateRole).Methods(http.MethodPut)
	router.HandleFunc("/v1/identities/{id}/deactivate", c.handleDeactivate).Methods(http.MethodPost)
	router.HandleFunc("/v1/identities/{id}/authenticate", c.handleAuthenticate).Methods(http.MethodPost)
	router.HandleFunc("/v1/identities/{id}/authorize", c.handleAuthorize).Methods(http.MethodPost)
	router.HandleFunc("/v1/identities/{id}/behavior", c.handleAnalyzeBehavior).Methods(http.MethodPost)
	router.HandleFunc("/v1/devices", c.handleRegisterDevice).Methods(http.MethodPost)
	router.HandleFunc("/v1/segments", c.handleUpsertSegment).Methods(http.MethodPost)
	router.HandleFunc("/v1/segments/{id}/enforce", c.handleEnforce).Methods(http.MethodPost)
	router.HandleFunc("/healthz", c.handleHealth).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// statusFor maps error kinds to HTTP status codes
func statusFor(err error) int {
	switch {
	case zterr.IsNotFound(err):
		return http.StatusNotFound
	case zterr.IsValidation(err):
		return http.StatusBadRequest
	case zterr.IsTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error    string      `json:"error"`
	Decision interface{} `json:"decision,omitempty"`
}

func writeError(w http.ResponseWriter, err error, decision interface{}) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error(), Decision: decision})
}

func (c *Core) handleCreateIdentity(w http.ResponseWriter, r *http.Request) {
	var cfg identity.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, zterr.Validation("body", err.Error()), nil)
		return
	}

	record, err := c.CreateIdentity(r.Context(), cfg)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (c *Core) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var attrs device.Attributes
	if err := json.NewDecoder(r.Body).Decode(&attrs); err != nil {
		writeError(w, zterr.Validation("body", err.Error()), nil)
		return
	}

	record, err := c.RegisterDevice(r.Context(), attrs)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (c *Core) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	identityID := mux.Vars(r)["id"]

	var authCtx authn.Context
	if err := json.NewDecoder(r.Body).Decode(&authCtx); err != nil {
		writeError(w, zterr.Validation("body", err.Error()), nil)
		return
	}

	event, err := c.Authenticate(r.Context(), identityID, authCtx)
	if err != nil {
		writeError(w, err, event)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

type authorizeRequest struct {
	Resource string        `json:"resource"`
	Action   string        `json:"action"`
	Context  authn.Context `json:"context"`
}

func (c *Core) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	identityID := mux.Vars(r)["id"]

	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, zterr.Validation("body", err.Error()), nil)
		return
	}

	request, err := c.Authorize(r.Context(), identityID, req.Resource, req.Action, req.Context)
	if err != nil {
		writeError(w, err, request)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

type segmentRequest struct {
	ID            string               `json:"id"`
	SecurityLevel netseg.SecurityLevel `json:"security_level"`
	Allowed       []string             `json:"allowed"`
	Blocked       []string             `json:"blocked"`
}

func (c *Core) handleUpsertSegment(w http.ResponseWriter, r *http.Request) {
	var req segmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, zterr.Validation("body", err.Error()), nil)
		return
	}

	segment, err := c.UpsertSegment(r.Context(), req.ID, req.SecurityLevel, req.Allowed, req.Blocked)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, segment)
}

func (c *Core) handleEnforce(w http.ResponseWriter, r *http.Request) {
	segmentID := mux.Vars(r)["id"]

	var traffic netseg.Traffic
	if err := json.NewDecoder(r.Body).Decode(&traffic); err != nil {
		writeError(w, zterr.Validation("body", err.Error()), nil)
		return
	}

	decision, err := c.EnforceNetworkPolicy(r.Context(), segmentID, traffic)
	if err != nil {
		writeError(w, err, decision)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

type behaviorResponse struct {
	Deviation float64           `json:"deviation"`
	Baseline  behavior.Baseline `json:"baseline"`
}

func (c *Core) handleAnalyzeBehavior(w http.ResponseWriter, r *http.Request) {
	identityID := mux.Vars(r)["id"]

	var sample behavior.Sample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		writeError(w, zterr.Validation("body", err.Error()), nil)
		return
	}

	deviation, baseline, err := c.AnalyzeBehavior(r.Context(), identityID, sample)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, behaviorResponse{Deviation: deviation, Baseline: baseline})
}

type roleRequest struct {
	Role string `json:"role"`
}

func (c *Core) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	identityID := mux.Vars(r)["id"]

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, zterr.Validation("body", err.Error()), nil)
		return
	}

	record, err := c.UpdateRole(r.Context(), identityID, req.Role)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (c *Core) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	identityID := mux.Vars(r)["id"]

	if err := c.Deactivate(r.Context(), identityID); err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(identity.StatusDeactivated)})
}

func (c *Core) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
