package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	apiContext "antigravity/internal/api/context"
	"antigravity/internal/engine/inbound"
	"antigravity/internal/pkg/errors"
	"antigravity/internal/platform/repositories"
)

// maxInboundBodySize caps raw inbound payloads at 1 MiB.
const maxInboundBodySize = 1 << 20

// InboundHandler is the public ingestion surface:
// POST /inbound/:tenant_slug/:endpoint_key. It resolves the endpoint and
// hands the raw bytes to the inbound processor; everything after resolution
// is the processor's state machine.
type InboundHandler struct {
	endpointRepo *repositories.EndpointRepository
	processor    *inbound.Processor
}

func NewInboundHandler(endpointRepo *repositories.EndpointRepository, processor *inbound.Processor) *InboundHandler {
	return &InboundHandler{
		endpointRepo: endpointRepo,
		processor:    processor,
	}
}

func (h *InboundHandler) Receive(w http.ResponseWriter, r *http.Request) {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	tenantSlug := params.ByName("tenant_slug")
	endpointKey := params.ByName("endpoint_key")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxInboundBodySize))
	if err != nil {
		errors.WriteInboundError(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	// Resolve. An unknown or inactive endpoint produces no audit row: there
	// is nothing to attribute it to.
	endpoint, err := h.endpointRepo.GetActiveByKey(tenantSlug, endpointKey)
	if err != nil {
		log.Error().Err(err).Str("tenant_slug", tenantSlug).Msg("failed to resolve inbound endpoint")
		errors.WriteInboundError(w, http.StatusInternalServerError, "Processing failed")
		return
	}
	if endpoint == nil {
		errors.WriteInboundError(w, http.StatusNotFound, "Endpoint not found or inactive")
		return
	}

	result := h.processor.Process(&inbound.Request{
		Endpoint:  endpoint,
		Body:      body,
		Signature: r.Header.Get("x-webhook-signature"),
		Headers:   captureHeaders(r),
		SourceIP:  sourceIP(r),
	})

	if !result.OK() {
		errors.WriteInboundError(w, result.HTTPStatus, result.ErrMessage)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"id":      result.EntityID,
		"type":    result.EntityType,
	})
}

func captureHeaders(r *http.Request) map[string]string {
	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[strings.ToLower(name)] = values[0]
		}
	}
	return headers
}

func sourceIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return "unknown"
}
