package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/leaddesk/internal/errs"
	"github.com/lalith-99/leaddesk/internal/models"
	"github.com/lalith-99/leaddesk/internal/repository"
	"go.uber.org/zap"
)

// AdminResolver finds the single admin whose preferences gate new leads.
type AdminResolver interface {
	GetAdmin(ctx context.Context) (*models.UserProfile, error)
}

// LeadPoster posts leads and replies to Slack.
type LeadPoster interface {
	PostLead(ctx context.Context, channel string, state models.MessageState) (string, error)
	ThreadReply(ctx context.Context, ref models.MessageRef, text string) error
}

// LeadHandler serves the website's lead and preference endpoints.
type LeadHandler struct {
	users   repository.UserRepository
	leads   repository.LeadRepository
	admins  AdminResolver
	slack   LeadPoster
	home    HomePublisher
	channel string
	logger  *zap.Logger
}

func NewLeadHandler(users repository.UserRepository, leads repository.LeadRepository, admins AdminResolver,
	slackAPI LeadPoster, home HomePublisher, leadChannel string, logger *zap.Logger) *LeadHandler {
	return &LeadHandler{
		users:   users,
		leads:   leads,
		admins:  admins,
		slack:   slackAPI,
		home:    home,
		channel: leadChannel,
		logger:  logger,
	}
}

type sendLeadRequest struct {
	Name      string `json:"name" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" binding:"required"`
	Message   string `json:"message" binding:"required"`
	Type      string `json:"type" binding:"required"`
	Phone     string `json:"phone"`
	Place     string `json:"place"`

	// ThreadTS and Channel turn the request into a reply on an existing
	// lead thread.
	ThreadTS string `json:"thread_ts"`
	Channel  string `json:"channel"`
}

// Send handles POST /api/slack/send
//
// A category the admin has switched off is not posted and the response
// reports success=false.
func (h *LeadHandler) Send(c *gin.Context) {
	var req sendLeadRequest
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
	admin, err := h.admins.GetAdmin(ctx)
	switch {
	case errors.Is(err, errs.ErrNoAdmin):
		h.logger.Warn("no admin configured, lead not posted", zap.String("type", req.Type))
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	case err != nil:
		h.logger.Error("failed to resolve admin", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve admin"})
		return
	}
	if !admin.Preferences.Enabled(category) {
		h.logger.Info("admin has disabled lead type, not posting", zap.String("type", req.Type))
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	lead := models.Lead{
		Category: category,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Place:    req.Place,
		Body:     req.Message,
	}

	if req.ThreadTS != "" && req.Channel != "" {
		ref := models.MessageRef{Channel: req.Channel, TS: req.ThreadTS}
		text := fmt.Sprintf("%s (%s) replied: %s", req.Name, req.Email, req.Message)
		if err := h.slack.ThreadReply(ctx, ref, text); err != nil {
			h.logger.Error("failed to post thread reply", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to post to slack"})
			return
		}
		lead.Channel, lead.SlackTS = ref.Channel, ref.TS
	} else {
		state := models.MessageState{
			Category: category,
			Contact: models.Contact{
				Name:      req.Name,
				FirstName: req.FirstName,
				LastName:  req.LastName,
				Email:     req.Email,
				Phone:     req.Phone,
				Place:     req.Place,
			},
			Body: req.Message,
		}
		ts, err := h.slack.PostLead(ctx, h.channel, state)
		if err != nil {
			h.logger.Error("failed to post lead", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to post to slack"})
			return
		}
		lead.Channel, lead.SlackTS = h.channel, ts
	}

	saved, err := h.leads.CreateLead(ctx, lead)
	if err != nil {
		// The Slack message exists; the log entry is what is missing.
		h.logger.Error("failed to record lead", zap.String("slack_ts", lead.SlackTS), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record lead"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"ts":      saved.SlackTS,
		"channel": saved.Channel,
		"lead":    saved,
	})
}

// Messages handles GET /api/slack/messages/:slackId?limit=100
//
// Returns the leads in the categories the user has enabled, newest first.
func (h *LeadHandler) Messages(c *gin.Context) {
	limit := 100
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
		limit = min(n, 500)
	}

	user, ok := h.findUser(c)
	if !ok {
		return
	}

	leads, err := h.leads.ListLeadsByCategories(c.Request.Context(), user.Preferences.EnabledCategories(), limit)
	if err != nil {
		h.logger.Error("failed to list leads", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": leads})
}

// GetPreferences handles GET /api/slack/preferences/:slackId
func (h *LeadHandler) GetPreferences(c *gin.Context) {
	user, ok := h.findUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": user.Preferences})
}

type updatePreferencesRequest struct {
	Preferences *models.Preferences `json:"preferences" binding:"required"`
}

// UpdatePreferences handles POST /api/slack/preferences/:slackId
//
// Creates the profile when needed and refreshes the user's home tab.
func (h *LeadHandler) UpdatePreferences(c *gin.Context) {
	var req updatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slackID := c.Param("slackId")
	user, err := h.users.UpsertUserPreferences(c.Request.Context(), slackID, *req.Preferences)
	if err != nil {
		h.logger.Error("failed to update preferences", zap.String("slack_id", slackID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update preferences"})
		return
	}

	if h.home != nil {
		if err := h.home.Publish(c.Request.Context(), slackID); err != nil {
			h.logger.Warn("failed to refresh home after preference update", zap.String("slack_id", slackID), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"preferences": user.Preferences})
}

// findUser loads :slackId and writes the error response itself when it
// cannot.
func (h *LeadHandler) findUser(c *gin.Context) (*models.UserProfile, bool) {
	slackID := c.Param("slackId")
	user, err := h.users.FindUser(c.Request.Context(), slackID)
	if err != nil {
		h.logger.Error("failed to get user", zap.String("slack_id", slackID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return nil, false
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return nil, false
	}
	return user, true
}
