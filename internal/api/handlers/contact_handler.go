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

type ContactHandler struct {
	contactRepo  *repositories.ContactRepository
	activityRepo *repositories.ActivityRepository
	publisher    *webhooks.Publisher
}

func NewContactHandler(contactRepo *repositories.ContactRepository, activityRepo *repositories.ActivityRepository, publisher *webhooks.Publisher) *ContactHandler {
	return &ContactHandler{
		contactRepo:  contactRepo,
		activityRepo: activityRepo,
		publisher:    publisher,
	}
}

func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantCtx := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	var req struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Company string `json:"company"`
		Phone   string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Email == "" || req.Name == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "email and name are required", nil)
		return
	}

	contact := &models.Contact{
		TenantID:    tenantCtx.TenantID,
		Email:       req.Email,
		Name:        req.Name,
		Company:     req.Company,
		Phone:       req.Phone,
		CreatedByID: claims.UserID,
	}
	if err := h.contactRepo.Create(contact); err != nil {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Contact with this email already exists", nil)
		return
	}

	if err := h.publisher.Publish(tenantCtx.TenantID, "contact.created", contact); err != nil {
		log.Warn().Err(err).Msg("failed to publish contact.created")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(contact)
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantCtx := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit := 50

	contacts, err := h.contactRepo.List(tenantCtx.TenantID, limit, (page-1)*limit)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list contacts", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(contacts)
}

func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantCtx := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)

	contact, err := h.contactRepo.GetByID(tenantCtx.TenantID, params.ByName("contact_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load contact", nil)
		return
	}
	if contact == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Contact not found", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(contact)
}

// Timeline returns the activity entries recorded against one contact,
// including inbound webhook receipts.
func (h *ContactHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	tenantCtx := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)

	entries, err := h.activityRepo.ListByEntity(tenantCtx.TenantID, "Contact", params.ByName("contact_id"), 50)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list activity", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}
