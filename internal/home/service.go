// Package home builds and publishes the App Home tab.
package home

import (
	"context"
	"fmt"

	"github.com/lalith-99/leaddesk/internal/models"
	"github.com/lalith-99/leaddesk/internal/view"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type UserStore interface {
	EnsureUser(ctx context.Context, slackID, name string) (*models.UserProfile, error)
}

type AssignmentStore interface {
	FindAssignmentsByAssignee(ctx context.Context, slackID string) ([]models.Assignment, error)
}

type Authorizer interface {
	IsAdmin(ctx context.Context, actorID string) (bool, error)
}

// Slack is the part of the notification dispatcher the home tab needs.
type Slack interface {
	UserName(ctx context.Context, userID string) (string, error)
	PublishHome(ctx context.Context, userID string, home slack.HomeTabViewRequest) error
}

type Service struct {
	users       UserStore
	assignments AssignmentStore
	guard       Authorizer
	slack       Slack
	logger      *zap.Logger
}

func NewService(users UserStore, assignments AssignmentStore, guard Authorizer, slackAPI Slack, logger *zap.Logger) *Service {
	return &Service{
		users:       users,
		assignments: assignments,
		guard:       guard,
		slack:       slackAPI,
		logger:      logger,
	}
}

// Data loads everything the home tab shows for userID. The profile is
// created with default preferences on first sight.
func (s *Service) Data(ctx context.Context, userID string) (view.HomeData, error) {
	var (
		profile     *models.UserProfile
		assignments []models.Assignment
		isAdmin     bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The name is cosmetic; a failed lookup still creates the profile.
		name, err := s.slack.UserName(gctx, userID)
		if err != nil {
			s.logger.Warn("user name lookup failed", zap.String("user", userID), zap.Error(err))
		}
		p, err := s.users.EnsureUser(gctx, userID, name)
		if err != nil {
			return fmt.Errorf("ensure user: %w", err)
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		list, err := s.assignments.FindAssignmentsByAssignee(gctx, userID)
		if err != nil {
			return fmt.Errorf("load assignments: %w", err)
		}
		assignments = list
		return nil
	})
	g.Go(func() error {
		ok, err := s.guard.IsAdmin(gctx, userID)
		if err != nil {
			return fmt.Errorf("role check: %w", err)
		}
		isAdmin = ok
		return nil
	})
	if err := g.Wait(); err != nil {
		return view.HomeData{}, err
	}

	visible := make([]models.Assignment, 0, len(assignments))
	for _, a := range assignments {
		if profile.Preferences.Enabled(a.Category) {
			visible = append(visible, a)
		}
	}
	return view.HomeData{
		IsAdmin:     isAdmin,
		Preferences: profile.Preferences,
		Assignments: visible,
	}, nil
}

// Build renders the home tab for userID.
func (s *Service) Build(ctx context.Context, userID string) (slack.HomeTabViewRequest, error) {
	data, err := s.Data(ctx, userID)
	if err != nil {
		return slack.HomeTabViewRequest{}, err
	}
	return view.RenderHome(data), nil
}

// Publish builds and publishes the home tab for userID.
func (s *Service) Publish(ctx context.Context, userID string) error {
	home, err := s.Build(ctx, userID)
	if err != nil {
		return fmt.Errorf("build home for %s: %w", userID, err)
	}
	if err := s.slack.PublishHome(ctx, userID, home); err != nil {
		return err
	}
	s.logger.Debug("home published", zap.String("user", userID))
	return nil
}
