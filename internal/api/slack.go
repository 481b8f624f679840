package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/leaddesk/internal/interaction"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"go.uber.org/zap"
)

// Deduper recognises Slack redeliveries.
type Deduper interface {
	FirstSeen(ctx context.Context, id string) (bool, error)
}

// InteractionHandler is the interaction router as the HTTP layer sees it.
type InteractionHandler interface {
	Handle(ctx context.Context, ev interaction.Event) interaction.Ack
}

// HomePublisher publishes a user's App Home tab.
type HomePublisher interface {
	Publish(ctx context.Context, userID string) error
}

// SlackHandler serves the endpoints Slack calls. Every request that gets
// past signature verification is acknowledged with 200; failures are
// logged, never surfaced to Slack.
type SlackHandler struct {
	router InteractionHandler
	dedup  Deduper
	home   HomePublisher
	logger *zap.Logger
}

// NewSlackHandler wires the Slack endpoints. dedup may be nil.
func NewSlackHandler(router InteractionHandler, dedup Deduper, home HomePublisher, logger *zap.Logger) *SlackHandler {
	return &SlackHandler{router: router, dedup: dedup, home: home, logger: logger}
}

// firstDelivery reports whether id has not been handled yet. Redis trouble
// lets the event through.
func (h *SlackHandler) firstDelivery(ctx context.Context, id string) bool {
	if h.dedup == nil {
		return true
	}
	first, err := h.dedup.FirstSeen(ctx, id)
	if err != nil {
		h.logger.Warn("dedup unavailable, processing delivery", zap.String("delivery", id), zap.Error(err))
		return true
	}
	return first
}

// Interactive handles POST /slack/interactive
//
// The body is a form with a single "payload" field holding the callback
// JSON. View submissions may answer with field errors in the response
// body; everything else gets an empty 200.
func (h *SlackHandler) Interactive(c *gin.Context) {
	raw := c.PostForm("payload")
	if raw == "" {
		h.logger.Warn("interactive request without payload")
		c.Status(http.StatusOK)
		return
	}

	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(raw), &cb); err != nil {
		h.logger.Warn("undecodable interaction payload", zap.Error(err))
		c.Status(http.StatusOK)
		return
	}

	ev, err := interaction.EventFromCallback(cb)
	if err != nil {
		h.logger.Debug("ignoring interaction", zap.String("type", string(cb.Type)), zap.Error(err))
		c.Status(http.StatusOK)
		return
	}

	if !h.firstDelivery(c.Request.Context(), "interaction:"+ev.DeliveryID()) {
		h.logger.Info("duplicate interaction delivery", zap.String("id", string(ev.ID)))
		c.Status(http.StatusOK)
		return
	}

	ack := h.router.Handle(c.Request.Context(), ev)
	if ack.Response != nil {
		c.JSON(http.StatusOK, ack.Response)
		return
	}
	c.Status(http.StatusOK)
}

// Events handles POST /slack/events (Events API).
func (h *SlackHandler) Events(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
		return
	}

	// The request signature was already checked; the legacy verification
	// token is not used.
	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		h.logger.Warn("unparseable slack event", zap.Error(err))
		c.Status(http.StatusOK)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		challenge, ok := event.Data.(*slackevents.EventsAPIURLVerificationEvent)
		if !ok {
			c.Status(http.StatusBadRequest)
			return
		}
		c.String(http.StatusOK, challenge.Challenge)
		return

	case slackevents.CallbackEvent:
		if outer, ok := event.Data.(*slackevents.EventsAPICallbackEvent); ok {
			if !h.firstDelivery(c.Request.Context(), "event:"+outer.EventID) {
				h.logger.Info("duplicate event delivery", zap.String("event_id", outer.EventID))
				c.Status(http.StatusOK)
				return
			}
		}
		h.callbackEvent(c.Request.Context(), event.InnerEvent)
	}
	c.Status(http.StatusOK)
}

func (h *SlackHandler) callbackEvent(ctx context.Context, inner slackevents.EventsAPIInnerEvent) {
	switch ev := inner.Data.(type) {
	case *slackevents.AppHomeOpenedEvent:
		if ev.Tab != "home" {
			return
		}
		if err := h.home.Publish(ctx, ev.User); err != nil {
			h.logger.Error("failed to publish home", zap.String("user", ev.User), zap.Error(err))
		}
	default:
		h.logger.Debug("unhandled slack event", zap.String("type", inner.Type))
	}
}
