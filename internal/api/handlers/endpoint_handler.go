package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "antigravity/internal/api/context"
	"antigravity/internal/api/middleware"
	"antigravity/internal/pkg/errors"
	"antigravity/internal/pkg/secrets"
	"antigravity/internal/platform/models"
	"antigravity/internal/platform/repositories"
)

type EndpointHandler struct {
	endpointRepo *repositories.EndpointRepository
	eventRepo    *repositories.InboundEventRepository
}

func NewEndpointHandler(endpointRepo *repositories.EndpointRepository, eventRepo *repositories.InboundEventRepository) *EndpointHandler {
	return &EndpointHandler{
		endpointRepo: endpointRepo,
		eventRepo:    eventRepo,
	}
}

func (h *EndpointHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantCtx := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)

	var req struct {
		Name          string `json:"name"`
		MappingConfig string `json:"mapping_config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Name == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Name is required", nil)
		return
	}

	key, err := secrets.NewEndpointKey()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate endpoint key", nil)
		return
	}

	endpoint := &models.InboundEndpoint{
		TenantID:      tenantCtx.TenantID,
		Name:          req.Name,
		EndpointKey:   key,
		AuthType:      models.AuthTypeNone,
		MappingConfig: req.MappingConfig,
		IsActive:      true,
	}
	if err := h.endpointRepo.Create(endpoint); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create endpoint", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(endpoint)
}

func (h *EndpointHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantCtx := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)

	endpoints, err := h.endpointRepo.ListByTenant(tenantCtx.TenantID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list endpoints", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(endpoints)
}

// RotateSecret generates a fresh signing secret and switches the endpoint to
// HMAC auth. The new secret is returned exactly once, in this response;
// rotation invalidates old signatures immediately.
func (h *EndpointHandler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	tenantCtx := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	id := params.ByName("endpoint_id")

	secret, err := secrets.NewSigningSecret()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate secret", nil)
		return
	}

	if err := h.endpointRepo.RotateSecret(tenantCtx.TenantID, id, secret); err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Endpoint not found", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"secret":  secret,
	})
}

func (h *EndpointHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	tenantCtx := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	id := params.ByName("endpoint_id")

	var req struct {
		IsActive bool `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if err := h.endpointRepo.SetActive(tenantCtx.TenantID, id, req.IsActive); err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Endpoint not found", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// ListEvents exposes the audit trail for one endpoint, newest first. This is
// the answer to "why didn't my webhook work".
func (h *EndpointHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	tenantCtx := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	id := params.ByName("endpoint_id")

	endpoint, err := h.endpointRepo.GetByID(tenantCtx.TenantID, id)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load endpoint", nil)
		return
	}
	if endpoint == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Endpoint not found", nil)
		return
	}

	events, err := h.eventRepo.ListByEndpoint(tenantCtx.TenantID, endpoint.ID, 50)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list events", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}
