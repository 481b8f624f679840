package repository

import (
	"context"

	"github.com/lalith-99/leaddesk/internal/models"
)

// Every method takes ctx first: a Slack callback that times out cancels the
// query it triggered.
//
// Lookups return nil, nil when the row does not exist. Callers decide whether
// a missing row is an error (see errs.ErrNotFound).

// UserRepository stores Slack user profiles and their category preferences.
type UserRepository interface {
	// FindUser returns the profile for a Slack user, or nil, nil.
	FindUser(ctx context.Context, slackID string) (*models.UserProfile, error)

	// EnsureUser returns the existing profile or creates one with default
	// preferences. name is only used on creation.
	EnsureUser(ctx context.Context, slackID, name string) (*models.UserProfile, error)

	// UpsertUserPreferences writes prefs, creating the profile if needed.
	UpsertUserPreferences(ctx context.Context, slackID string, prefs models.Preferences) (*models.UserProfile, error)

	// FindUsersByEnabledCategory lists users with the category switched on,
	// ordered by name. Returns an empty slice, not nil.
	FindUsersByEnabledCategory(ctx context.Context, category models.Category) ([]models.UserProfile, error)

	// FindAdmins lists every profile flagged admin. More than one row means
	// the deployment is misconfigured; the caller decides what to do.
	FindAdmins(ctx context.Context) ([]models.UserProfile, error)
}

// AssignmentRepository stores the one-per-message assignment records.
type AssignmentRepository interface {
	// CreateAssignment inserts the record unless the message already has
	// one. created is false when an earlier record won; the earlier record
	// is left untouched.
	CreateAssignment(ctx context.Context, a models.Assignment) (created bool, err error)

	// FindAssignmentByMessage returns the record for a message, or nil, nil.
	FindAssignmentByMessage(ctx context.Context, ref models.MessageRef) (*models.Assignment, error)

	// FindAssignmentsByAssignee lists a user's assignments, newest first.
	FindAssignmentsByAssignee(ctx context.Context, slackID string) ([]models.Assignment, error)
}

// LeadRepository keeps the log of leads posted through the website API.
type LeadRepository interface {
	// CreateLead persists a lead and returns it with ID and CreatedAt set.
	CreateLead(ctx context.Context, lead models.Lead) (*models.Lead, error)

	// ListLeadsByCategories returns leads in any of the categories, newest
	// first, at most limit rows.
	ListLeadsByCategories(ctx context.Context, categories []models.Category, limit int) ([]models.Lead, error)
}
