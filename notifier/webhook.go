package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gatewaydemo/logger"
)

type WebhookMessage struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Severity  string    `json:"severity"`
	Command   string    `json:"command,omitempty"`
}

// Webhook posts gateway alerts as JSON. A Webhook with no URL drops alerts.
type Webhook struct {
	URL    string
	Client *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{URL: url, Client: &http.Client{Timeout: 5 * time.Second}}
}

// BreakerOpened matches breaker.TripFunc.
func (n *Webhook) BreakerOpened(command string, failures int64) {
	n.Send(WebhookMessage{
		Text:     fmt.Sprintf("[gateway] breaker %s opened after %d failures; serving fallback", command, failures),
		Severity: "warning",
		Command:  command,
	})
}

// Send posts msg in the background so the request path never waits on it.
func (n *Webhook) Send(msg WebhookMessage) <-chan error {
	done := make(chan error, 1)
	if n.URL == "" {
		done <- nil
		return done
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		done <- err
		return done
	}

	go func() {
		resp, err := n.Client.Post(n.URL, "application/json", bytes.NewReader(data))
		if err != nil {
			logger.Error("Failed to send webhook alert", "err", err)
			done <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			logger.Warn("Webhook returned non-OK status", "status", resp.Status)
			done <- fmt.Errorf("webhook: unexpected status %s", resp.Status)
			return
		}
		done <- nil
	}()
	return done
}
