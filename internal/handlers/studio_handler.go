package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/flicket/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// StudioService is the interface that wraps the creator-facing read procedures
type StudioService interface {
	GetMany(ctx context.Context, userID string, cursor *models.StudioCursor, limit int) (*models.VideoPage, error)
	GetOne(ctx context.Context, userID, id string) (*models.Video, error)
	GetRun(ctx context.Context, userID, runID string) (*models.GenerationRun, error)
}

// StudioHandler handles HTTP requests for the creator studio
type StudioHandler struct {
	BaseHandler
	service StudioService
	authMw  func(http.Handler) http.Handler
}

// NewStudioHandler creates a new studio handler
func NewStudioHandler(svc StudioService, logger *zap.Logger, authMw func(http.Handler) http.Handler) *StudioHandler {
	return &StudioHandler{
		BaseHandler: newBaseHandler(logger),
		service:     svc,
		authMw:      authMw,
	}
}

// RegisterRoutes registers all studio handler routes
func (h *StudioHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/studio", func(r chi.Router) {
		r.Use(h.authMw)
		r.Get("/videos", h.GetMany)
		r.Get("/videos/{id}", h.GetOne)
		r.Get("/runs/{runId}", h.GetRun)
	})
}

// GetMany handles GET /api/v1/studio/videos
// @Summary List the caller's videos
// @Description Keyset-paginated listing ordered by last update, newest first
// @Tags studio
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (1-100, default 5)"
// @Param cursorId query string false "ID of the last item of the previous page"
// @Param cursorUpdatedAt query string false "updatedAt of the last item of the previous page (RFC3339)"
// @Success 200 {object} models.VideoPage
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/studio/videos [get]
func (h *StudioHandler) GetMany(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.RespondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	var cursor *models.StudioCursor
	cursorID, rawUpdatedAt := query.Get("cursorId"), query.Get("cursorUpdatedAt")
	if cursorID != "" || rawUpdatedAt != "" {
		if cursorID == "" || rawUpdatedAt == "" {
			h.RespondError(w, http.StatusBadRequest, "cursorId and cursorUpdatedAt must be set together")
			return
		}
		updatedAt, err := time.Parse(time.RFC3339Nano, rawUpdatedAt)
		if err != nil {
			h.RespondError(w, http.StatusBadRequest, "invalid cursorUpdatedAt")
			return
		}
		cursor = &models.StudioCursor{ID: cursorID, UpdatedAt: updatedAt}
	}

	page, err := h.service.GetMany(r.Context(), userID, cursor, limit)
	if err != nil {
		h.respondServiceError(w, r, err, "list videos")
		return
	}

	h.RespondJSON(w, http.StatusOK, page)
}

// GetOne handles GET /api/v1/studio/videos/{id}
// @Summary Get one of the caller's videos
// @Tags studio
// @Produce json
// @Security BearerAuth
// @Param id path string true "Video ID"
// @Success 200 {object} models.Video
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/studio/videos/{id} [get]
func (h *StudioHandler) GetOne(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	video, err := h.service.GetOne(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "get video")
		return
	}

	h.RespondJSON(w, http.StatusOK, video)
}

// GetRun handles GET /api/v1/studio/runs/{runId}
// @Summary Get a generation run
// @Description Poll the status of a run started by one of the generate endpoints
// @Tags studio
// @Produce json
// @Security BearerAuth
// @Param runId path string true "Workflow run ID"
// @Success 200 {object} models.GenerationRun
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/studio/runs/{runId} [get]
func (h *StudioHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	run, err := h.service.GetRun(r.Context(), userID, chi.URLParam(r, "runId"))
	if err != nil {
		h.respondServiceError(w, r, err, "get run")
		return
	}

	h.RespondJSON(w, http.StatusOK, run)
}
