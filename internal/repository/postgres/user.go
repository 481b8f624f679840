package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/leaddesk/internal/models"
)

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `slack_id, name, is_admin, chat_leads, schedule_tour, applications, created_at, updated_at`

func scanUser(row pgx.Row) (*models.UserProfile, error) {
	var u models.UserProfile
	err := row.Scan(
		&u.SlackID,
		&u.Name,
		&u.IsAdmin,
		&u.Preferences.ChatLeads,
		&u.Preferences.ScheduleTour,
		&u.Preferences.Applications,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) FindUser(ctx context.Context, slackID string) (*models.UserProfile, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE slack_id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, slackID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// EnsureUser creates the profile on first sight. The no-op DO UPDATE makes
// RETURNING yield the existing row on conflict, so this is one round trip
// either way and safe under concurrent home-tab opens.
func (s *UserStore) EnsureUser(ctx context.Context, slackID, name string) (*models.UserProfile, error) {
	defaults := models.DefaultPreferences()
	query := `
		INSERT INTO users (slack_id, name, chat_leads, schedule_tour, applications, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (slack_id) DO UPDATE SET slack_id = EXCLUDED.slack_id
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, query, slackID, name,
		defaults.ChatLeads, defaults.ScheduleTour, defaults.Applications))
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return u, nil
}

func (s *UserStore) UpsertUserPreferences(ctx context.Context, slackID string, prefs models.Preferences) (*models.UserProfile, error) {
	query := `
		INSERT INTO users (slack_id, chat_leads, schedule_tour, applications, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (slack_id) DO UPDATE SET
			chat_leads    = EXCLUDED.chat_leads,
			schedule_tour = EXCLUDED.schedule_tour,
			applications  = EXCLUDED.applications,
			updated_at    = now()
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, query, slackID, prefs.ChatLeads, prefs.ScheduleTour, prefs.Applications))
	if err != nil {
		return nil, fmt.Errorf("upsert preferences: %w", err)
	}
	return u, nil
}

// categoryColumn maps a category to its preference column. The result is
// spliced into SQL, so only the fixed names below may ever be returned.
func categoryColumn(c models.Category) (string, error) {
	switch c {
	case models.CategoryChatLeads:
		return "chat_leads", nil
	case models.CategoryScheduleTour:
		return "schedule_tour", nil
	case models.CategoryApplications:
		return "applications", nil
	}
	return "", fmt.Errorf("unknown category %q", c)
}

func (s *UserStore) FindUsersByEnabledCategory(ctx context.Context, category models.Category) ([]models.UserProfile, error) {
	column, err := categoryColumn(category)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` ORDER BY name, slack_id`
	return s.list(ctx, "list users by category", query)
}

func (s *UserStore) FindAdmins(ctx context.Context) ([]models.UserProfile, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE is_admin ORDER BY slack_id`
	return s.list(ctx, "list admins", query)
}

func (s *UserStore) list(ctx context.Context, op, query string, args ...any) ([]models.UserProfile, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	users := make([]models.UserProfile, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}
