package webhooks

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Retry policy. Deliveries past the attempt cap or older than the window are
// left in their last state as a permanent audit record.
const (
	MaxAttempts    = 3
	RetryWindow    = 24 * time.Hour
	RetryBatchSize = 10
)

type RetryOutcome struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type RetrySummary struct {
	Count   int            `json:"count"`
	Details []RetryOutcome `json:"details,omitempty"`
	Message string         `json:"message,omitempty"`
}

// RetryPending rescans undelivered attempts inside the retry window and
// re-runs them, one bounded batch per call. Each delivery is retried
// independently: a failure is recorded on its row and never aborts the rest
// of the batch.
func (p *Publisher) RetryPending() (*RetrySummary, error) {
	deliveries, err := p.deliveries.ListRetryable(MaxAttempts, RetryWindow, RetryBatchSize)
	if err != nil {
		return nil, err
	}

	if len(deliveries) == 0 {
		return &RetrySummary{Count: 0, Message: "No pending retries found"}, nil
	}

	log.Info().Int("count", len(deliveries)).Msg("retrying pending webhook deliveries")

	summary := &RetrySummary{Count: len(deliveries)}
	for _, delivery := range deliveries {
		outcome := RetryOutcome{ID: delivery.ID, Status: "processed"}

		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Str("delivery_id", delivery.ID).Interface("panic", r).Msg("retry attempt panicked")
					outcome.Status = "error"
				}
			}()

			if delivery.Subscription == nil {
				outcome.Status = "error"
				return
			}
			p.Attempt(delivery.ID, delivery.Subscription.URL, delivery.Subscription.Secret, []byte(delivery.Payload))
		}()

		summary.Details = append(summary.Details, outcome)
	}

	return summary, nil
}
