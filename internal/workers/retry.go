package workers

import (
	"github.com/rs/zerolog/log"

	"antigravity/internal/engine/webhooks"
)

// RetryWorker drains the retryable delivery backlog on a schedule.
type RetryWorker struct {
	publisher *webhooks.Publisher
}

func NewRetryWorker(publisher *webhooks.Publisher) *RetryWorker {
	return &RetryWorker{publisher: publisher}
}

// Run executes one retry sweep. Safe to call concurrently with live
// publishes; each delivery row is its own unit of work.
func (w *RetryWorker) Run() {
	summary, err := w.publisher.RetryPending()
	if err != nil {
		log.Error().Err(err).Msg("Retry sweep failed")
		return
	}

	if summary.Count == 0 {
		log.Debug().Msg("Retry sweep: nothing pending")
		return
	}

	errored := 0
	for _, outcome := range summary.Details {
		if outcome.Status == "error" {
			errored++
		}
	}
	log.Info().
		Int("attempted", summary.Count).
		Int("errored", errored).
		Msg("Retry sweep finished")
}
