package services

import (
	"context"
	"errors"
	"testing"

	"github.com/flicket/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// mockCategoryRepository is a mock implementation of CategoryRepository
type mockCategoryRepository struct {
	categories []models.Category
	err        error
}

func (m *mockCategoryRepository) GetAll(ctx context.Context) ([]models.Category, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.categories, nil
}

func TestCategoryService_GetAll(t *testing.T) {
	tests := []struct {
		name          string
		repo          *mockCategoryRepository
		expectedError bool
		expectedCount int
	}{
		{
			name: "success",
			repo: &mockCategoryRepository{categories: []models.Category{
				{ID: "c-1", Name: "Cars"},
				{ID: "c-2", Name: "Music"},
			}},
			expectedCount: 2,
		},
		{
			name:          "repository error",
			repo:          &mockCategoryRepository{err: errors.New("database error")},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewCategoryService(tt.repo, zap.NewNop())

			categories, err := svc.GetAll(context.Background())

			if tt.expectedError {
				assert.Error(t, err)
				assert.Nil(t, categories)
			} else {
				assert.NoError(t, err)
				assert.Len(t, categories, tt.expectedCount)
			}
		})
	}
}
