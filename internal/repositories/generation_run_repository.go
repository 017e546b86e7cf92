package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flicket/backend/internal/models"
)

// generationRunRepository implements generation run repository operations
type generationRunRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewGenerationRunRepository creates a new generation run repository
func NewGenerationRunRepository(db *sql.DB) *generationRunRepository {
	return &generationRunRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// Create inserts a queued run. The run ID is the id returned by the workflow trigger.
func (r *generationRunRepository) Create(ctx context.Context, run *models.GenerationRun) error {
	if run.Status == "" {
		run.Status = models.GenerationRunStatusQueued
	}
	now := r.now()
	run.CreatedAt = now
	run.UpdatedAt = now

	query := `
		INSERT INTO generation_runs (id, workflow, video_id, user_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.Workflow,
		run.VideoID,
		run.UserID,
		run.Status,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create generation run: %w", err)
	}

	return nil
}

// GetByIDAndUser retrieves a run started by userID
func (r *generationRunRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*models.GenerationRun, error) {
	query := `
		SELECT id, workflow, video_id, user_id, status, error, created_at, updated_at
		FROM generation_runs
		WHERE id = ? AND user_id = ?
		LIMIT 1
	`

	run := &models.GenerationRun{}
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&run.ID,
		&run.Workflow,
		&run.VideoID,
		&run.UserID,
		&run.Status,
		&run.Error,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("generation run %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation run: %w", err)
	}

	return run, nil
}

// UpdateStatus records the outcome of a run
func (r *generationRunRepository) UpdateStatus(ctx context.Context, id string, status models.GenerationRunStatus, runErr *string) error {
	query := `UPDATE generation_runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, status, runErr, r.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update generation run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("generation run %w", models.ErrNotFound)
	}

	return nil
}
