package services

import (
	"context"
	"fmt"

	"github.com/flicket/backend/internal/models"
	"go.uber.org/zap"
)

// CategoryRepository is the interface that wraps methods for Categories table data access
type CategoryRepository interface {
	// GetAll retrieves all categories ordered by name.
	GetAll(ctx context.Context) ([]models.Category, error)
}

type categoryService struct {
	repo   CategoryRepository
	logger *zap.Logger
}

// NewCategoryService creates a new category service
func NewCategoryService(repo CategoryRepository, logger *zap.Logger) *categoryService {
	return &categoryService{
		repo:   repo,
		logger: logger,
	}
}

// GetAll retrieves all categories
func (s *categoryService) GetAll(ctx context.Context) ([]models.Category, error) {
	categories, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.Error("failed to get categories", zap.Error(err))
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	return categories, nil
}
