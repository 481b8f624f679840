// Package website forwards assignment events to the public website.
package website

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lalith-99/leaddesk/internal/models"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// AssignmentEvent is the body POSTed to the website webhook.
type AssignmentEvent struct {
	Type       string `json:"type"`
	AssignedTo string `json:"assignedTo"`
	AssignedBy string `json:"assignedBy"`
	MessageID  string `json:"messageId"`
	Channel    string `json:"channel"`
	Timestamp  string `json:"timestamp"`
}

// forwardTimeout bounds one delivery, independent of the request that
// triggered it.
const forwardTimeout = 10 * time.Second

// Forwarder posts events to the website. Delivery is fire-and-forget:
// each event is sent on its own goroutine, failures are logged and never
// retried. After repeated failures the
// breaker opens and events are dropped without a request until it
// half-opens again.
type Forwarder struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewForwarder returns a forwarder for webhookURL. An empty URL disables
// forwarding.
func NewForwarder(webhookURL string, logger *zap.Logger) *Forwarder {
	settings := gobreaker.Settings{
		Name:        "website",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &Forwarder{
		url:     webhookURL,
		client:  &http.Client{Timeout: forwardTimeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

func (f *Forwarder) Enabled() bool {
	return f != nil && f.url != ""
}

// ForwardAssignment queues the assignment event and returns at once. The
// delivery outlives ctx's cancellation; its outcome is only logged.
func (f *Forwarder) ForwardAssignment(ctx context.Context, a models.Assignment) {
	if !f.Enabled() {
		return
	}
	ctx = context.WithoutCancel(ctx)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, forwardTimeout)
		defer cancel()
		f.deliver(ctx, a)
	}()
}

// Wait blocks until every queued delivery has finished.
func (f *Forwarder) Wait() {
	if f == nil {
		return
	}
	f.wg.Wait()
}

func (f *Forwarder) deliver(ctx context.Context, a models.Assignment) {
	event := AssignmentEvent{
		Type:       "assignment",
		AssignedTo: a.AssignedTo,
		AssignedBy: a.AssignedBy,
		MessageID:  a.MessageTS,
		Channel:    a.Channel,
		Timestamp:  a.AssignedAt.UTC().Format(time.RFC3339),
	}

	_, err := f.breaker.Execute(func() (interface{}, error) {
		return nil, f.post(ctx, event)
	})
	if err != nil {
		f.logger.Warn("website forward failed",
			zap.String("channel", a.Channel),
			zap.String("message_ts", a.MessageTS),
			zap.Error(err),
		)
		return
	}
	f.logger.Info("assignment forwarded to website", zap.String("message_ts", a.MessageTS))
}

func (f *Forwarder) post(ctx context.Context, event AssignmentEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("website returned %s", resp.Status)
	}
	return nil
}
