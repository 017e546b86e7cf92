package services

import (
	"context"
	"fmt"

	"github.com/flicket/backend/internal/models"
	"go.uber.org/zap"
)

const (
	// DefaultStudioPageSize is the page size of the studio listing when none is given
	DefaultStudioPageSize = 5
	// MaxStudioPageSize is the largest accepted page size
	MaxStudioPageSize = 100
)

// StudioVideoRepository is the interface that wraps the studio reads of the Videos table
type StudioVideoRepository interface {
	// ListByUser returns up to limit videos of userID ordered by (updated_at, id) descending,
	// starting strictly after cursor when it is set.
	ListByUser(ctx context.Context, userID string, cursor *models.StudioCursor, limit int) ([]models.Video, error)
	// GetByIDAndUser retrieves a video owned by userID.
	GetByIDAndUser(ctx context.Context, id, userID string) (*models.Video, error)
}

type studioService struct {
	repo   StudioVideoRepository
	runs   GenerationRunRepository
	logger *zap.Logger
}

// NewStudioService creates a new studio service
func NewStudioService(repo StudioVideoRepository, runs GenerationRunRepository, logger *zap.Logger) *studioService {
	return &studioService{
		repo:   repo,
		runs:   runs,
		logger: logger,
	}
}

// GetMany returns one page of the caller's videos.
// A zero limit selects DefaultStudioPageSize; NextCursor is nil on the last page.
func (s *studioService) GetMany(ctx context.Context, userID string, cursor *models.StudioCursor, limit int) (*models.VideoPage, error) {
	if limit == 0 {
		limit = DefaultStudioPageSize
	}
	if limit < 1 || limit > MaxStudioPageSize {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", models.ErrBadRequest, MaxStudioPageSize)
	}

	videos, err := s.repo.ListByUser(ctx, userID, cursor, limit+1)
	if err != nil {
		s.logger.Error("failed to list studio videos", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}

	page := &models.VideoPage{Items: videos}
	if len(videos) > limit {
		page.Items = videos[:limit]
		last := page.Items[limit-1]
		page.NextCursor = &models.StudioCursor{ID: last.ID, UpdatedAt: last.UpdatedAt}
	}
	if page.Items == nil {
		page.Items = []models.Video{}
	}

	return page, nil
}

// GetOne retrieves one video owned by userID
func (s *studioService) GetOne(ctx context.Context, userID, id string) (*models.Video, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: video id is required", models.ErrBadRequest)
	}
	return s.repo.GetByIDAndUser(ctx, id, userID)
}

// GetRun retrieves a generation run started by userID
func (s *studioService) GetRun(ctx context.Context, userID, runID string) (*models.GenerationRun, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: run id is required", models.ErrBadRequest)
	}
	return s.runs.GetByIDAndUser(ctx, runID, userID)
}
