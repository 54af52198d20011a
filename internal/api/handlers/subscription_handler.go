package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	apiContext "antigravity/internal/api/context"
	"antigravity/internal/api/middleware"
	"antigravity/internal/engine/webhooks"
	"antigravity/internal/pkg/errors"
	"antigravity/internal/pkg/secrets"
	"antigravity/internal/platform/auth"
	"antigravity/internal/platform/models"
	"antigravity/internal/platform/repositories"
)

type SubscriptionHandler struct {
	subRepo      *repositories.SubscriptionRepository
	deliveryRepo *repositories.DeliveryRepository
	publisher    *webhooks.Publisher
}

func NewSubscriptionHandler(subRepo *repositories.SubscriptionRepository, deliveryRepo *repositories.DeliveryRepository, publisher *webhooks.Publisher) *SubscriptionHandler {
	return &SubscriptionHandler{
		subRepo:      subRepo,
		deliveryRepo: deliveryRepo,
		publisher:    publisher,
	}
}

func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantCtx := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)

	var req struct {
		Name       string   `json:"name"`
		URL        string   `json:"url"`
		EventTypes []string `json:"event_types"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Name == "" || req.URL == "" || len(req.EventTypes) == 0 {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "name, url and event_types are required", nil)
		return
	}

	secret, err := secrets.NewSigningSecret()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate secret", nil)
		return
	}

	sub := &models.OutboundSubscription{
		TenantID:   tenantCtx.TenantID,
		Name:       req.Name,
		URL:        req.URL,
		EventTypes: req.EventTypes,
		Secret:     secret,
		Enabled:    true,
	}
	if err := h.subRepo.Create(sub); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create subscription", nil)
		return
	}

	// The signing secret is surfaced once, on creation.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"subscription": sub,
		"secret":       secret,
	})
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantCtx := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)

	subs, err := h.subRepo.ListByTenant(tenantCtx.TenantID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list subscriptions", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(subs)
}

// Delete removes a subscription outright. Changing the event-type set is
// delete and recreate; there is no update-in-place.
func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantCtx := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	id := params.ByName("subscription_id")

	if err := h.subRepo.Delete(tenantCtx.TenantID, id); err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Subscription not found", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

func (h *SubscriptionHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	tenantCtx := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	id := params.ByName("subscription_id")

	sub, err := h.subRepo.GetByID(tenantCtx.TenantID, id)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load subscription", nil)
		return
	}
	if sub == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Subscription not found", nil)
		return
	}

	deliveries, err := h.deliveryRepo.ListBySubscription(tenantCtx.TenantID, sub.ID, 50)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list deliveries", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(deliveries)
}

// TriggerTest publishes a synthetic test.event so a subscriber can confirm
// its receiving end works.
func (h *SubscriptionHandler) TriggerTest(w http.ResponseWriter, r *http.Request) {
	tenantCtx := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	err := h.publisher.Publish(tenantCtx.TenantID, "test.event", map[string]interface{}{
		"message":   "This is a test webhook from AntiGravity CRM",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"user":      claims.Email,
	})
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to publish test event", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// TriggerRetries runs one retry batch on demand. The recurring path is the
// worker binary; this route exists for operators poking at stuck deliveries.
func (h *SubscriptionHandler) TriggerRetries(w http.ResponseWriter, r *http.Request) {
	summary, err := h.publisher.RetryPending()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Retry run failed", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}
