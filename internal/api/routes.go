package api

import (
	"github.com/gin-gonic/gin"
	"github.com/lalith-99/leaddesk/internal/middleware"
	"go.uber.org/zap"
)

type Handlers struct {
	Slack       *SlackHandler
	Leads       *LeadHandler
	Assignments *AssignmentHandler
	Health      *HealthHandler
}

type RouterConfig struct {
	SlackSigningSecret string
	JWTSecret          string
}

// NewRouter registers every route.
//
//	/v1/health        public
//	/slack/*          Slack request signature
//	/api/*            website client JWT
func NewRouter(h Handlers, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	srv := gin.New()
	srv.Use(middleware.RequestLogger(logger), gin.Recovery())

	srv.GET("/v1/health", h.Health.Health)

	slackGroup := srv.Group("/slack")
	slackGroup.Use(middleware.SlackSignature(cfg.SlackSigningSecret, logger))
	slackGroup.POST("/interactive", h.Slack.Interactive)
	slackGroup.POST("/events", h.Slack.Events)

	apiGroup := srv.Group("/api")
	apiGroup.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	leads := apiGroup.Group("/slack")
	leads.POST("/send", h.Leads.Send)
	leads.GET("/messages/:slackId", h.Leads.Messages)
	leads.GET("/preferences/:slackId", h.Leads.GetPreferences)
	leads.POST("/preferences/:slackId", h.Leads.UpdatePreferences)

	assignments := apiGroup.Group("/assignment")
	assignments.POST("/assign", h.Assignments.Assign)
	assignments.GET("/channel-users", h.Assignments.ChannelUsers)
	assignments.POST("/reply", h.Assignments.Reply)

	return srv
}
