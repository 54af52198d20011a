package webhooks

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"time"
)

const userAgent = "AntiGravity-CRM/1.0"

// DeliveryResult is the structured outcome of one outbound POST. Transport
// never returns a Go error: every network or HTTP failure is folded in here
// so callers can persist it on the delivery row.
type DeliveryResult struct {
	Success bool
	Status  int
	Err     string
}

type Transport struct {
	client *http.Client
}

// NewTransport builds a transport with a hard per-request timeout. A zero
// timeout falls back to 10 seconds.
func NewTransport(timeout time.Duration) *Transport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Transport{
		client: &http.Client{Timeout: timeout},
	}
}

// Deliver POSTs payload to url. The payload bytes are sent exactly as given
// and, when secret is non-empty, the same bytes are signed into the
// x-webhook-signature header so the receiver verifies what it parses.
func (t *Transport) Deliver(url string, payload []byte, secret string) DeliveryResult {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return DeliveryResult{Success: false, Status: 0, Err: err.Error()}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if secret != "" {
		req.Header.Set("x-webhook-signature", Sign(secret, payload))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return DeliveryResult{Success: false, Status: 0, Err: "timeout"}
		}
		return DeliveryResult{Success: false, Status: 0, Err: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DeliveryResult{Success: false, Status: resp.StatusCode, Err: http.StatusText(resp.StatusCode)}
	}

	return DeliveryResult{Success: true, Status: resp.StatusCode}
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}
