package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/leaddesk/internal/models"
)

type LeadStore struct {
	pool *pgxpool.Pool
}

func NewLeadStore(pool *pgxpool.Pool) *LeadStore {
	return &LeadStore{pool: pool}
}

func (s *LeadStore) CreateLead(ctx context.Context, lead models.Lead) (*models.Lead, error) {
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	query := `
		INSERT INTO leads (id, channel, slack_ts, category, name, email, phone, place, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING created_at`

	err := s.pool.QueryRow(ctx, query,
		lead.ID,
		lead.Channel,
		lead.SlackTS,
		string(lead.Category),
		lead.Name,
		lead.Email,
		lead.Phone,
		lead.Place,
		lead.Body,
	).Scan(&lead.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert lead: %w", err)
	}
	return &lead, nil
}

func (s *LeadStore) ListLeadsByCategories(ctx context.Context, categories []models.Category, limit int) ([]models.Lead, error) {
	leads := make([]models.Lead, 0)
	if len(categories) == 0 {
		return leads, nil
	}

	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, string(c))
	}

	query := `
		SELECT id, channel, slack_ts, category, name, email, phone, place, body, created_at
		FROM leads
		WHERE category = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, names, limit)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l models.Lead
		var category string
		if err := rows.Scan(
			&l.ID,
			&l.Channel,
			&l.SlackTS,
			&category,
			&l.Name,
			&l.Email,
			&l.Phone,
			&l.Place,
			&l.Body,
			&l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		l.Category = models.Category(category)
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return leads, nil
}
