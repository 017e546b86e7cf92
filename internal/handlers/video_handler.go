package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/flicket/backend/internal/models"
	"github.com/flicket/backend/internal/storage"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// VideoService is the interface that wraps the video procedures.
type VideoService interface {
	// Method Create opens an upload session for the caller and inserts a waiting video.
	//
	// The returned response carries the created row and the URL the client pushes the file to.
	Create(ctx context.Context, userID string) (*models.CreateVideoResponse, error)
	// Method Update edits the metadata of a video owned by the caller.
	//
	// Nil fields of "req" are left unchanged. A missing id or an invalid field yields models.ErrBadRequest,
	// an absent or foreign video yields models.ErrNotFound.
	Update(ctx context.Context, userID string, req *models.UpdateVideoRequest) (*models.Video, error)
	// Method Remove deletes a video owned by the caller and returns the deleted row.
	Remove(ctx context.Context, userID, id string) (*models.Video, error)
	// Method RestoreThumbnail replaces the thumbnail with an owned copy of the provider default.
	//
	// A video without a playback id yields models.ErrBadRequest.
	RestoreThumbnail(ctx context.Context, userID, id string) (*models.Video, error)
	// Method UploadThumbnail stores a custom thumbnail read from "file".
	UploadThumbnail(ctx context.Context, userID, id string, file io.Reader) (*models.Video, error)
	// Method GenerateThumbnail triggers the thumbnail workflow and returns its run id.
	//
	// Prompts shorter than models.MinThumbnailPromptLength characters yield models.ErrBadRequest.
	GenerateThumbnail(ctx context.Context, userID, id, prompt string) (string, error)
	// Method GenerateTitle triggers the title workflow and returns its run id.
	GenerateTitle(ctx context.Context, userID, id string) (string, error)
	// Method GenerateDescription triggers the description workflow and returns its run id.
	GenerateDescription(ctx context.Context, userID, id string) (string, error)
	// Method GetPublic retrieves a video only when it is public.
	GetPublic(ctx context.Context, id string) (*models.Video, error)
}

// VideoHandler handles HTTP requests for videos
type VideoHandler struct {
	BaseHandler
	service VideoService
	authMw  func(http.Handler) http.Handler
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(svc VideoService, logger *zap.Logger, authMw func(http.Handler) http.Handler) *VideoHandler {
	return &VideoHandler{
		BaseHandler: newBaseHandler(logger),
		service:     svc,
		authMw:      authMw,
	}
}

// RegisterRoutes registers all video handler routes
func (h *VideoHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/videos", func(r chi.Router) {
		r.Get("/{id}", h.GetPublic)

		r.Group(func(r chi.Router) {
			r.Use(h.authMw)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Remove)
			r.Post("/{id}/thumbnail", h.UploadThumbnail)
			r.Post("/{id}/thumbnail/restore", h.RestoreThumbnail)
			r.Post("/{id}/thumbnail/generate", h.GenerateThumbnail)
			r.Post("/{id}/title/generate", h.GenerateTitle)
			r.Post("/{id}/description/generate", h.GenerateDescription)
		})
	})
}

// Create handles POST /api/v1/videos
// @Summary Create a video
// @Description Open a direct upload session and create a waiting video owned by the caller
// @Tags videos
// @Produce json
// @Security BearerAuth
// @Success 201 {object} models.CreateVideoResponse
// @Failure 401 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/videos [post]
func (h *VideoHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Create(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "create video")
		return
	}

	h.RespondJSON(w, http.StatusCreated, resp)
}

// Update handles PUT /api/v1/videos/{id}
// @Summary Update a video
// @Description Edit title, description, category or visibility of a video owned by the caller. The body may be a full video object; read-only fields are ignored. Omitted fields are unchanged; a null or empty categoryId or description clears it.
// @Tags videos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Video ID"
// @Param request body models.UpdateVideoRequest true "Fields to change"
// @Success 200 {object} models.Video
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/videos/{id} [put]
func (h *VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req models.UpdateVideoRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	if req.ID != "" && req.ID != id {
		h.RespondError(w, http.StatusBadRequest, "body id does not match path id")
		return
	}
	req.ID = id

	video, err := h.service.Update(r.Context(), userID, &req)
	if err != nil {
		h.respondServiceError(w, r, err, "update video")
		return
	}

	h.RespondJSON(w, http.StatusOK, video)
}

// Remove handles DELETE /api/v1/videos/{id}
// @Summary Delete a video
// @Description Delete a video owned by the caller and release its remote asset and thumbnail
// @Tags videos
// @Produce json
// @Security BearerAuth
// @Param id path string true "Video ID"
// @Success 200 {object} models.Video
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/videos/{id} [delete]
func (h *VideoHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	video, err := h.service.Remove(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "delete video")
		return
	}

	h.RespondJSON(w, http.StatusOK, video)
}

// RestoreThumbnail handles POST /api/v1/videos/{id}/thumbnail/restore
// @Summary Restore the default thumbnail
// @Description Replace the thumbnail with a stored copy of the hosting provider's default thumbnail
// @Tags videos
// @Produce json
// @Security BearerAuth
// @Param id path string true "Video ID"
// @Success 200 {object} models.Video
// @Failure 400 {object} map[string]string "Video is not processed yet"
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/videos/{id}/thumbnail/restore [post]
func (h *VideoHandler) RestoreThumbnail(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	video, err := h.service.RestoreThumbnail(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "restore thumbnail")
		return
	}

	h.RespondJSON(w, http.StatusOK, video)
}

// UploadThumbnail handles POST /api/v1/videos/{id}/thumbnail
// @Summary Upload a custom thumbnail
// @Description Store an image as the thumbnail of a video owned by the caller
// @Tags videos
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Video ID"
// @Param file formData file true "Image file"
// @Success 200 {object} models.Video
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/videos/{id}/thumbnail [post]
func (h *VideoHandler) UploadThumbnail(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageSize+1<<20)
	if err := r.ParseMultipartForm(storage.MaxImageSize); err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	video, err := h.service.UploadThumbnail(r.Context(), userID, chi.URLParam(r, "id"), file)
	if err != nil {
		h.respondServiceError(w, r, err, "upload thumbnail")
		return
	}

	h.RespondJSON(w, http.StatusOK, video)
}

// GenerateThumbnail handles POST /api/v1/videos/{id}/thumbnail/generate
// @Summary Generate a thumbnail
// @Description Trigger the asynchronous thumbnail generation workflow
// @Tags videos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Video ID"
// @Param request body models.GenerateThumbnailRequest true "Image prompt, at least 10 characters"
// @Success 202 {object} models.TriggerResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/videos/{id}/thumbnail/generate [post]
func (h *VideoHandler) GenerateThumbnail(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req models.GenerateThumbnailRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID, err := h.service.GenerateThumbnail(r.Context(), userID, chi.URLParam(r, "id"), req.Prompt)
	if err != nil {
		h.respondServiceError(w, r, err, "generate thumbnail")
		return
	}

	h.RespondJSON(w, http.StatusAccepted, models.TriggerResponse{WorkflowRunID: runID})
}

// GenerateTitle handles POST /api/v1/videos/{id}/title/generate
// @Summary Generate a title
// @Description Trigger the asynchronous title generation workflow
// @Tags videos
// @Produce json
// @Security BearerAuth
// @Param id path string true "Video ID"
// @Success 202 {object} models.TriggerResponse
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/videos/{id}/title/generate [post]
func (h *VideoHandler) GenerateTitle(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	runID, err := h.service.GenerateTitle(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "generate title")
		return
	}

	h.RespondJSON(w, http.StatusAccepted, models.TriggerResponse{WorkflowRunID: runID})
}

// GenerateDescription handles POST /api/v1/videos/{id}/description/generate
// @Summary Generate a description
// @Description Trigger the asynchronous description generation workflow
// @Tags videos
// @Produce json
// @Security BearerAuth
// @Param id path string true "Video ID"
// @Success 202 {object} models.TriggerResponse
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/videos/{id}/description/generate [post]
func (h *VideoHandler) GenerateDescription(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	runID, err := h.service.GenerateDescription(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "generate description")
		return
	}

	h.RespondJSON(w, http.StatusAccepted, models.TriggerResponse{WorkflowRunID: runID})
}

// GetPublic handles GET /api/v1/videos/{id}
// @Summary Get a public video
// @Description Retrieve a video when its visibility is public
// @Tags videos
// @Produce json
// @Param id path string true "Video ID"
// @Success 200 {object} models.Video
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/videos/{id} [get]
func (h *VideoHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	video, err := h.service.GetPublic(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "get video")
		return
	}

	h.RespondJSON(w, http.StatusOK, video)
}
