package inbound

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"antigravity/internal/engine/webhooks"
	"antigravity/internal/platform/models"
	"antigravity/internal/platform/repositories"
)

// Entity reference actions reported back to the caller.
const (
	resultContactUpdated = "Contact (Updated)"
	resultLeadUpdated    = "Lead (Updated)"
	resultLeadCreated    = "Lead (Created)"
)

// InboundSource tags records created from the ingestion channel.
const InboundSource = "n8n Inbound"

// Request is one received callback after endpoint resolution. Body holds the
// exact raw bytes; signature verification runs over them untouched.
type Request struct {
	Endpoint  *models.InboundEndpoint
	Body      []byte
	Signature string
	Headers   map[string]string
	SourceIP  string
}

// Result is the terminal state of processing one callback. Exactly one
// InboundEvent row exists for it by the time the processor returns.
type Result struct {
	HTTPStatus int
	EntityID   string
	EntityType string
	ErrMessage string
}

func (r *Result) OK() bool {
	return r.HTTPStatus == http.StatusOK
}

// Processor runs the inbound pipeline: authenticate, validate, deduplicate,
// persist, log. Every early exit still writes its audit row.
type Processor struct {
	contacts   *repositories.ContactRepository
	leads      *repositories.LeadRepository
	activities *repositories.ActivityRepository
	events     *repositories.InboundEventRepository
	publisher  *webhooks.Publisher
}

func NewProcessor(
	contacts *repositories.ContactRepository,
	leads *repositories.LeadRepository,
	activities *repositories.ActivityRepository,
	events *repositories.InboundEventRepository,
	publisher *webhooks.Publisher,
) *Processor {
	return &Processor{
		contacts:   contacts,
		leads:      leads,
		activities: activities,
		events:     events,
		publisher:  publisher,
	}
}

func (p *Processor) Process(req *Request) *Result {
	endpoint := req.Endpoint

	// Authenticate. HMAC runs over the raw body bytes exactly as received.
	if endpoint.AuthType == models.AuthTypeHMAC && endpoint.Secret != "" {
		if req.Signature == "" {
			p.logEvent(req, models.InboundStatusFailed, "Missing signature", nil)
			return &Result{HTTPStatus: http.StatusUnauthorized, ErrMessage: "Missing signature"}
		}
		if !webhooks.Verify(endpoint.Secret, req.Body, req.Signature) {
			p.logEvent(req, models.InboundStatusFailed, "Invalid signature", nil)
			return &Result{HTTPStatus: http.StatusUnauthorized, ErrMessage: "Invalid signature"}
		}
	}

	// Validate.
	var payload map[string]interface{}
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		p.logEvent(req, models.InboundStatusRejected, "Invalid JSON", nil)
		return &Result{HTTPStatus: http.StatusBadRequest, ErrMessage: "Invalid JSON"}
	}

	fields := ExtractFields(payload)
	if fields.Email == "" {
		p.logEvent(req, models.InboundStatusRejected, "Missing email field", nil)
		return &Result{HTTPStatus: http.StatusBadRequest, ErrMessage: "Missing email"}
	}

	// Deduplicate and upsert. Contact match beats Lead match beats creating
	// a new Lead.
	ref, err := p.upsert(endpoint.TenantID, fields, payload, req.Body)
	if err != nil {
		log.Error().Err(err).Str("endpoint_id", endpoint.ID).Msg("inbound processing error")
		p.logEvent(req, models.InboundStatusFailed, "Internal Server Error", nil)
		return &Result{HTTPStatus: http.StatusInternalServerError, ErrMessage: "Processing failed"}
	}

	p.logEvent(req, models.InboundStatusProcessed, "", ref)
	return &Result{HTTPStatus: http.StatusOK, EntityID: ref.EntityID, EntityType: ref.Action}
}

func (p *Processor) upsert(tenantID string, fields Fields, payload map[string]interface{}, rawBody []byte) (*models.EntityRef, error) {
	// Existing contacts hold curated data; an untrusted inbound payload must
	// not overwrite them. Record the callback as an activity entry instead.
	contact, err := p.contacts.GetByEmail(tenantID, fields.Email)
	if err != nil {
		return nil, err
	}
	if contact != nil {
		entry := &models.ActivityLog{
			TenantID:   tenantID,
			UserID:     contact.CreatedByID,
			Action:     "inbound.webhook_received",
			EntityType: "Contact",
			EntityID:   contact.ID,
			Metadata:   map[string]interface{}{"source": InboundSource, "payload": payload},
		}
		if err := p.activities.Create(entry); err != nil {
			return nil, err
		}
		return &models.EntityRef{EntityID: contact.ID, Action: resultContactUpdated}, nil
	}

	lead, err := p.leads.GetByEmail(tenantID, fields.Email)
	if err != nil {
		return nil, err
	}
	if lead != nil {
		if err := p.leads.UpdateFromInbound(tenantID, lead.ID, fields.Name, fields.Message); err != nil {
			return nil, err
		}
		return &models.EntityRef{EntityID: lead.ID, Action: resultLeadUpdated}, nil
	}

	name := fields.Name
	if name == "" {
		name = "Unknown Inbound"
	}
	description := fields.Message
	if description == "" {
		description = string(rawBody)
	}

	newLead := &models.Lead{
		TenantID:    tenantID,
		Email:       fields.Email,
		Name:        name,
		Company:     fields.Company,
		Source:      InboundSource,
		Status:      models.LeadStatusNew,
		Description: description,
	}
	stored, created, err := p.leads.Upsert(newLead)
	if err != nil {
		return nil, err
	}
	if !created {
		// Lost the race to a concurrent request for the same email; the
		// unique constraint collapsed both into one row.
		return &models.EntityRef{EntityID: stored.ID, Action: resultLeadUpdated}, nil
	}

	if p.publisher != nil {
		if err := p.publisher.Publish(tenantID, "lead.created", stored); err != nil {
			log.Warn().Err(err).Str("lead_id", stored.ID).Msg("failed to publish lead.created")
		}
	}

	return &models.EntityRef{EntityID: stored.ID, Action: resultLeadCreated}, nil
}

// logEvent writes the audit row for one callback attempt. Failures here are
// logged but never surfaced: losing an audit write must not change the
// caller-visible outcome.
func (p *Processor) logEvent(req *Request, status, errMessage string, ref *models.EntityRef) {
	event := &models.InboundEvent{
		TenantID:          req.Endpoint.TenantID,
		InboundEndpointID: req.Endpoint.ID,
		Payload:           string(req.Body),
		Status:            status,
		Error:             errMessage,
		SourceIP:          req.SourceIP,
		Headers:           req.Headers,
		CreatedEntityRef:  ref,
	}
	if err := p.events.Create(event); err != nil {
		log.Error().Err(err).Str("endpoint_id", req.Endpoint.ID).Msg("failed to write inbound event audit row")
	}
}
