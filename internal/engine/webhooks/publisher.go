package webhooks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"antigravity/internal/platform/models"
	"antigravity/internal/platform/repositories"
)

// Publisher fans domain events out to a tenant's outbound subscriptions.
// Publish returns before any network I/O happens; each delivery runs on its
// own goroutine and records its own outcome.
type Publisher struct {
	subs       *repositories.SubscriptionRepository
	deliveries *repositories.DeliveryRepository
	transport  *Transport
}

func NewPublisher(subs *repositories.SubscriptionRepository, deliveries *repositories.DeliveryRepository, transport *Transport) *Publisher {
	return &Publisher{
		subs:       subs,
		deliveries: deliveries,
		transport:  transport,
	}
}

// Publish creates one pending delivery row per matching subscription, then
// hands the network calls off. Zero matching subscriptions is a no-op, not an
// error. The returned error covers only the synchronous part (loading
// subscriptions, writing rows); delivery failures land on the rows.
func (p *Publisher) Publish(tenantID, eventType string, data interface{}) error {
	subs, err := p.subs.ListEnabledByTenant(tenantID)
	if err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}

	var matched []*models.OutboundSubscription
	for _, sub := range subs {
		if Matches(sub.EventTypes, eventType) {
			matched = append(matched, sub)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	log.Debug().Str("tenant_id", tenantID).Str("event", eventType).Int("subscribers", len(matched)).Msg("publishing event")

	for _, sub := range matched {
		envelope := &models.WebhookEvent{
			ID:        fmt.Sprintf("evt_%d", time.Now().UnixNano()),
			Event:     eventType,
			Timestamp: time.Now().Unix(),
			TenantID:  tenantID,
			Data:      data,
		}
		payload, err := json.Marshal(envelope)
		if err != nil {
			return fmt.Errorf("marshal event envelope: %w", err)
		}

		delivery := &models.OutboundDelivery{
			TenantID:       tenantID,
			SubscriptionID: sub.ID,
			EventType:      eventType,
			Payload:        string(payload),
		}
		if err := p.deliveries.Create(delivery); err != nil {
			return fmt.Errorf("create delivery record: %w", err)
		}

		go p.deliverDetached(delivery.ID, sub.URL, sub.Secret, payload)
	}

	return nil
}

// Matches implements the subscription filter: a literal event type hit or the
// wildcard entry.
func Matches(eventTypes []string, eventType string) bool {
	for _, t := range eventTypes {
		if t == eventType || t == "*" {
			return true
		}
	}
	return false
}

// deliverDetached runs one delivery attempt off the publishing request's
// path. It must not let anything escape: a panic or persistence error here
// is logged and swallowed.
func (p *Publisher) deliverDetached(deliveryID, url, secret string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("delivery_id", deliveryID).Interface("panic", r).Msg("delivery goroutine panicked")
		}
	}()

	p.Attempt(deliveryID, url, secret, payload)
}

// Attempt performs one delivery attempt and persists its outcome. Shared by
// the detached publish path and the retry scheduler.
func (p *Publisher) Attempt(deliveryID, url, secret string, payload []byte) DeliveryResult {
	result := p.transport.Deliver(url, payload, secret)

	status := models.DeliveryStatusSent
	if !result.Success {
		status = models.DeliveryStatusFailed
	}

	if err := p.deliveries.RecordAttempt(deliveryID, status, result.Status, result.Err); err != nil {
		log.Error().Err(err).Str("delivery_id", deliveryID).Msg("failed to record delivery attempt")
		return result
	}

	if result.Success {
		log.Info().Str("delivery_id", deliveryID).Int("status", result.Status).Msg("webhook delivered")
	} else {
		log.Warn().Str("delivery_id", deliveryID).Int("status", result.Status).Str("error", result.Err).Msg("webhook delivery failed")
	}
	return result
}
