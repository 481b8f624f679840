package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/leaddesk/internal/models"
	"github.com/lalith-99/leaddesk/internal/repository"
	"github.com/lalith-99/leaddesk/internal/view"
	"github.com/lalith-99/leaddesk/internal/workflow"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// Authorizer answers the admin question for the acting user.
type Authorizer interface {
	IsAdmin(ctx context.Context, actorID string) (bool, error)
}

// ChannelSlack is the Slack surface the assignment endpoints use.
type ChannelSlack interface {
	ChannelMembers(ctx context.Context, channel string) ([]string, error)
	ThreadReply(ctx context.Context, ref models.MessageRef, text string) error
	FetchLead(ctx context.Context, ref models.MessageRef) (slack.Message, error)
	UpdateLead(ctx context.Context, state models.MessageState) error
}

// AssignmentHandler serves /api/assignment. All operations work on the
// lead channel.
type AssignmentHandler struct {
	repo    repository.AssignmentRepository
	guard   Authorizer
	slack   ChannelSlack
	channel string
	logger  *zap.Logger
	now     func() time.Time
}

func NewAssignmentHandler(repo repository.AssignmentRepository, guard Authorizer, slackAPI ChannelSlack,
	leadChannel string, logger *zap.Logger) *AssignmentHandler {
	return &AssignmentHandler{repo: repo, guard: guard, slack: slackAPI, channel: leadChannel, logger: logger, now: time.Now}
}

type assignRequest struct {
	SlackTS    string `json:"slackTs" binding:"required"`
	AssignedTo string `json:"assignedTo" binding:"required"`
	AssignedBy string `json:"assignedBy" binding:"required"`
	Type       string `json:"type" binding:"required"`
}

// Assign handles POST /api/assignment/assign
//
// Only the admin may assign. Idempotent: a message that already has an
// assignment keeps it, and the response carries the stored record with
// created=false. A new assignment is also drawn on the Slack message.
func (h *AssignmentHandler) Assign(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	category := models.Category(req.Type)
	if !category.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown lead type"})
		return
	}

	ctx := c.Request.Context()
	admin, err := h.guard.IsAdmin(ctx, req.AssignedBy)
	if err != nil {
		h.logger.Error("failed to check role", zap.String("assigned_by", req.AssignedBy), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check role"})
		return
	}
	if !admin {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the admin can assign messages"})
		return
	}

	a := models.Assignment{
		Channel:    h.channel,
		MessageTS:  req.SlackTS,
		Category:   category,
		AssignedTo: req.AssignedTo,
		AssignedBy: req.AssignedBy,
		AssignedAt: h.now().UTC(),
	}
	created, err := h.repo.CreateAssignment(ctx, a)
	if err != nil {
		h.logger.Error("failed to create assignment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create assignment"})
		return
	}

	stored, err := h.repo.FindAssignmentByMessage(ctx, models.MessageRef{Channel: h.channel, TS: req.SlackTS})
	if err != nil || stored == nil {
		h.logger.Error("failed to load assignment", zap.String("slack_ts", req.SlackTS), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load assignment"})
		return
	}
	if created {
		h.annotate(ctx, *stored)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "created": created, "assignment": stored})
}

// annotate re-renders the lead message with the assignment. The record is
// already saved, so failures here are only logged.
func (h *AssignmentHandler) annotate(ctx context.Context, a models.Assignment) {
	ref := models.MessageRef{Channel: a.Channel, TS: a.MessageTS}
	log := h.logger.With(zap.String("channel", ref.Channel), zap.String("slack_ts", ref.TS))

	msg, err := h.slack.FetchLead(ctx, ref)
	if err != nil {
		log.Warn("failed to load lead for assignment annotation", zap.Error(err))
		return
	}
	parsed := view.ParseMessage(ref.Channel, msg)
	if !parsed.Category.Found {
		log.Warn("lead message unreadable, assignment not drawn")
		return
	}
	state := parsed.State("")
	state.Ref = ref

	tr, err := workflow.Assign(state, a.AssignedTo, a.AssignedBy, a.AssignedAt)
	if err != nil {
		log.Info("assignment not drawn on message", zap.Error(err))
		return
	}
	if err := h.slack.UpdateLead(ctx, tr.State); err != nil {
		log.Warn("failed to draw assignment on message", zap.Error(err))
	}
}

// ChannelUsers handles GET /api/assignment/channel-users
func (h *AssignmentHandler) ChannelUsers(c *gin.Context) {
	members, err := h.slack.ChannelMembers(c.Request.Context(), h.channel)
	if err != nil {
		h.logger.Error("failed to list channel members", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to list channel members"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

type replyRequest struct {
	ThreadTS string `json:"thread_ts" binding:"required"`
	Text     string `json:"text" binding:"required"`
}

// Reply handles POST /api/assignment/reply
func (h *AssignmentHandler) Reply(c *gin.Context) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ref := models.MessageRef{Channel: h.channel, TS: req.ThreadTS}
	if err := h.slack.ThreadReply(c.Request.Context(), ref, req.Text); err != nil {
		h.logger.Error("failed to post reply", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to post reply"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
