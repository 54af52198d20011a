package models

// Inbound endpoint auth modes.
const (
	AuthTypeNone   = "NONE"
	AuthTypeHMAC   = "HMAC"
	AuthTypeAPIKey = "API_KEY"
)

// InboundEvent processing statuses.
const (
	InboundStatusProcessed = "processed"
	InboundStatusRejected  = "rejected"
	InboundStatusFailed    = "failed"
)

// OutboundDelivery statuses. "sent" is terminal; a delivery never leaves it.
const (
	DeliveryStatusPending = "pending"
	DeliveryStatusSent    = "sent"
	DeliveryStatusFailed  = "failed"
)

// InboundEndpoint is a tenant-scoped ingestion URL. EndpointKey doubles as a
// bearer credential and is the only addressing mechanism for inbound calls.
type InboundEndpoint struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenant_id"`
	Name          string `json:"name"`
	EndpointKey   string `json:"endpoint_key"`
	AuthType      string `json:"auth_type"`
	Secret        string `json:"-"`
	MappingConfig string `json:"mapping_config,omitempty"` // reserved for field mapping, unused
	IsActive      bool   `json:"is_active"`
	CreatedAt     int64  `json:"created_at"`
}

// InboundEvent is the append-only audit row written once per received
// callback, whatever the outcome.
type InboundEvent struct {
	ID                string            `json:"id"`
	TenantID          string            `json:"tenant_id"`
	InboundEndpointID string            `json:"inbound_endpoint_id"`
	Payload           string            `json:"payload"`
	Status            string            `json:"status"`
	Error             string            `json:"error,omitempty"`
	SourceIP          string            `json:"source_ip"`
	Headers           map[string]string `json:"headers,omitempty"`
	CreatedEntityRef  *EntityRef        `json:"created_entity_ref,omitempty"`
	ProcessedAt       int64             `json:"processed_at"`
}

// EntityRef points at whatever record an inbound call created or touched.
type EntityRef struct {
	EntityID string `json:"entity_id"`
	Action   string `json:"action"`
}

type OutboundSubscription struct {
	ID         string   `json:"id"`
	TenantID   string   `json:"tenant_id"`
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	EventTypes []string `json:"event_types"` // JSON array in DB; "*" matches everything
	Secret     string   `json:"-"`
	Enabled    bool     `json:"enabled"`
	CreatedAt  int64    `json:"created_at"`
}

// OutboundDelivery records one event bound for one subscription. AttemptCount
// only ever increments.
type OutboundDelivery struct {
	ID               string `json:"id"`
	TenantID         string `json:"tenant_id"`
	SubscriptionID   string `json:"subscription_id"`
	EventType        string `json:"event_type"`
	Payload          string `json:"payload"`
	Status           string `json:"status"`
	LastResponseCode int    `json:"last_response_code,omitempty"`
	LastError        string `json:"last_error,omitempty"`
	AttemptCount     int    `json:"attempt_count"`
	LastAttemptAt    *int64 `json:"last_attempt_at,omitempty"`
	CreatedAt        int64  `json:"created_at"`

	Subscription *OutboundSubscription `json:"subscription,omitempty"`
}

// WebhookEvent is the envelope POSTed to subscriber URLs.
type WebhookEvent struct {
	ID        string      `json:"id"`
	Event     string      `json:"event"`
	Timestamp int64       `json:"timestamp"`
	TenantID  string      `json:"tenant_id"`
	Data      interface{} `json:"data"`
}
