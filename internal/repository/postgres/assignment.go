package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/leaddesk/internal/models"
)

type AssignmentStore struct {
	pool *pgxpool.Pool
}

func NewAssignmentStore(pool *pgxpool.Pool) *AssignmentStore {
	return &AssignmentStore{pool: pool}
}

// CreateAssignment relies on the (channel, message_ts) unique constraint.
// ON CONFLICT DO NOTHING turns a lost race into zero affected rows instead
// of an error; the first writer's record stays.
func (s *AssignmentStore) CreateAssignment(ctx context.Context, a models.Assignment) (bool, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO assignments (id, channel, message_ts, category, assigned_to, assigned_by, assigned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (channel, message_ts) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query, a.ID, a.Channel, a.MessageTS, string(a.Category), a.AssignedTo, a.AssignedBy, a.AssignedAt)
	if err != nil {
		return false, fmt.Errorf("insert assignment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const assignmentColumns = `id, channel, message_ts, category, assigned_to, assigned_by, assigned_at`

func scanAssignment(row pgx.Row) (*models.Assignment, error) {
	var a models.Assignment
	var category string
	if err := row.Scan(&a.ID, &a.Channel, &a.MessageTS, &category, &a.AssignedTo, &a.AssignedBy, &a.AssignedAt); err != nil {
		return nil, err
	}
	a.Category = models.Category(category)
	return &a, nil
}

func (s *AssignmentStore) FindAssignmentByMessage(ctx context.Context, ref models.MessageRef) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE channel = $1 AND message_ts = $2`

	a, err := scanAssignment(s.pool.QueryRow(ctx, query, ref.Channel, ref.TS))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

func (s *AssignmentStore) FindAssignmentsByAssignee(ctx context.Context, slackID string) ([]models.Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE assigned_to = $1
		ORDER BY assigned_at DESC`

	rows, err := s.pool.Query(ctx, query, slackID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	assignments := make([]models.Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return assignments, nil
}
