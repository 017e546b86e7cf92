package handlers

import (
	"context"
	"net/http"

	"github.com/flicket/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CategoryService is the interface that wraps the category listing
type CategoryService interface {
	GetAll(ctx context.Context) ([]models.Category, error)
}

// CategoryHandler handles HTTP requests for categories
type CategoryHandler struct {
	BaseHandler
	service CategoryService
}

// NewCategoryHandler creates a new category handler
func NewCategoryHandler(svc CategoryService, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{
		BaseHandler: newBaseHandler(logger),
		service:     svc,
	}
}

// RegisterRoutes registers all category handler routes
func (h *CategoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/v1/categories", h.GetAll)
}

// GetAll handles GET /api/v1/categories
// @Summary List categories
// @Tags categories
// @Produce json
// @Success 200 {array} models.Category
// @Failure 500 {object} map[string]string
// @Router /api/v1/categories [get]
func (h *CategoryHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.GetAll(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "list categories")
		return
	}

	h.RespondJSON(w, http.StatusOK, categories)
}
