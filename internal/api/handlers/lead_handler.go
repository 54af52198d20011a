package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	apiContext "antigravity/internal/api/context"
	"antigravity/internal/api/middleware"
	"antigravity/internal/engine/webhooks"
	"antigravity/internal/pkg/errors"
	"antigravity/internal/platform/auth"
	"antigravity/internal/platform/models"
	"antigravity/internal/platform/repositories"
)

type LeadHandler struct {
	leadRepo    *repositories.LeadRepository
	contactRepo *repositories.ContactRepository
	publisher   *webhooks.Publisher
}

func NewLeadHandler(leadRepo *repositories.LeadRepository, contactRepo *repositories.ContactRepository, publisher *webhooks.Publisher) *LeadHandler {
	return &LeadHandler{
		leadRepo:    leadRepo,
		contactRepo: contactRepo,
		publisher:   publisher,
	}
}

func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantCtx := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	var req struct {
		Email       string `json:"email"`
		Name        string `json:"name"`
		Company     string `json:"company"`
		Source      string `json:"source"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Email == "" || req.Name == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "email and name are required", nil)
		return
	}

	lead := &models.Lead{
		TenantID:    tenantCtx.TenantID,
		Email:       req.Email,
		Name:        req.Name,
		Company:     req.Company,
		Source:      req.Source,
		Status:      models.LeadStatusNew,
		Description: req.Description,
		CreatedByID: claims.UserID,
	}
	if err := h.leadRepo.Create(lead); err != nil {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Lead with this email already exists", nil)
		return
	}

	h.publish(tenantCtx.TenantID, "lead.created", lead)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(lead)
}

func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantCtx := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit := 50

	leads, err := h.leadRepo.List(tenantCtx.TenantID, limit, (page-1)*limit)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list leads", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(leads)
}

func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantCtx := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)

	lead, err := h.leadRepo.GetByID(tenantCtx.TenantID, params.ByName("lead_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load lead", nil)
		return
	}
	if lead == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Lead not found", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lead)
}

func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantCtx := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)

	lead, err := h.leadRepo.GetByID(tenantCtx.TenantID, params.ByName("lead_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load lead", nil)
		return
	}
	if lead == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Lead not found", nil)
		return
	}

	var req struct {
		Name        string `json:"name"`
		Company     string `json:"company"`
		Status      string `json:"status"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if req.Name != "" {
		lead.Name = req.Name
	}
	if req.Company != "" {
		lead.Company = req.Company
	}
	if req.Status != "" {
		lead.Status = req.Status
	}
	if req.Description != "" {
		lead.Description = req.Description
	}

	if err := h.leadRepo.Update(lead); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to update lead", nil)
		return
	}

	h.publish(tenantCtx.TenantID, "lead.updated", lead)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lead)
}

// Convert promotes a lead to a contact: creates the contact, marks the lead
// CONVERTED, publishes both domain events.
func (h *LeadHandler) Convert(w http.ResponseWriter, r *http.Request) {
	tenantCtx := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)

	lead, err := h.leadRepo.GetByID(tenantCtx.TenantID, params.ByName("lead_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load lead", nil)
		return
	}
	if lead == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Lead not found", nil)
		return
	}
	if lead.Status == models.LeadStatusConverted {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Lead already converted", nil)
		return
	}

	contact := &models.Contact{
		TenantID:    tenantCtx.TenantID,
		Email:       lead.Email,
		Name:        lead.Name,
		Company:     lead.Company,
		CreatedByID: claims.UserID,
	}
	if err := h.contactRepo.Create(contact); err != nil {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Contact with this email already exists", nil)
		return
	}

	if err := h.leadRepo.UpdateStatus(tenantCtx.TenantID, lead.ID, models.LeadStatusConverted); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to update lead status", nil)
		return
	}

	h.publish(tenantCtx.TenantID, "lead.converted", lead)
	h.publish(tenantCtx.TenantID, "contact.created", contact)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(contact)
}

// publish is fire-and-forget: a CRM mutation never fails because its webhook
// fan-out did.
func (h *LeadHandler) publish(tenantID, eventType string, data interface{}) {
	if err := h.publisher.Publish(tenantID, eventType, data); err != nil {
		log.Warn().Err(err).Str("event", eventType).Msg("failed to publish domain event")
	}
}
