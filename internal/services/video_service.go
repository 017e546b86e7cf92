package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/flicket/backend/internal/metrics"
	"github.com/flicket/backend/internal/models"
	"github.com/flicket/backend/internal/mux"
	"github.com/flicket/backend/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// VideoRepository is the interface that wraps methods for Videos table data access
type VideoRepository interface {
	// Create inserts a new video, assigning its ID and timestamps.
	Create(ctx context.Context, video *models.Video) error
	// GetByIDAndUser retrieves a video owned by userID.
	//
	// A video that does not exist and a video owned by someone else both yield models.ErrNotFound.
	GetByIDAndUser(ctx context.Context, id, userID string) (*models.Video, error)
	// GetPublicByID retrieves a video only when its visibility is public.
	GetPublicByID(ctx context.Context, id string) (*models.Video, error)
	// Update applies the non-nil fields of req to the video owned by userID and returns the fresh row.
	Update(ctx context.Context, userID string, req *models.UpdateVideoRequest) (*models.Video, error)
	// UpdateThumbnail sets the stored thumbnail of a video owned by userID. Nil values clear it.
	UpdateThumbnail(ctx context.Context, id, userID string, thumbnailURL, thumbnailKey *string) (*models.Video, error)
	// DeleteByIDAndUser deletes a video owned by userID and returns the deleted row.
	DeleteByIDAndUser(ctx context.Context, id, userID string) (*models.Video, error)
}

// UploadProvider is the interface of the video hosting provider used by the procedures
type UploadProvider interface {
	// CreateUpload opens a direct upload session tagged with passthrough.
	CreateUpload(ctx context.Context, passthrough, corsOrigin string) (*mux.Upload, error)
	// CancelUpload cancels an upload session that has not produced an asset yet.
	CancelUpload(ctx context.Context, uploadID string) error
	// DeleteAsset deletes a processed asset.
	DeleteAsset(ctx context.Context, assetID string) error
}

// ThumbnailStorage is the interface of the file storage holding owned thumbnails
type ThumbnailStorage interface {
	// UploadFromURL copies a remote image into storage. A source without data yields (nil, nil).
	UploadFromURL(ctx context.Context, url string) (*storage.UploadedFile, error)
	// Upload stores an image read from r.
	Upload(ctx context.Context, r io.Reader) (*storage.UploadedFile, error)
	// DeleteFiles removes stored objects by key.
	DeleteFiles(ctx context.Context, keys ...string) error
}

// WorkflowTrigger is the interface of the asynchronous generation runner
type WorkflowTrigger interface {
	// Trigger enqueues one run of workflow under runID with the given retry budget.
	Trigger(ctx context.Context, runID string, workflow models.Workflow, payload models.WorkflowPayload, retries int) error
}

// GenerationRunRepository is the interface that wraps methods for GenerationRuns table data access
type GenerationRunRepository interface {
	// Create inserts a queued run.
	Create(ctx context.Context, run *models.GenerationRun) error
	// GetByIDAndUser retrieves a run started by userID.
	GetByIDAndUser(ctx context.Context, id, userID string) (*models.GenerationRun, error)
	// UpdateStatus records the outcome of a run.
	UpdateStatus(ctx context.Context, id string, status models.GenerationRunStatus, runErr *string) error
}

type videoService struct {
	repo       VideoRepository
	runs       GenerationRunRepository
	uploads    UploadProvider
	storage    ThumbnailStorage
	workflows  WorkflowTrigger
	corsOrigin string
	logger     *zap.Logger
}

// NewVideoService creates a new video service
func NewVideoService(
	repo VideoRepository,
	runs GenerationRunRepository,
	uploads UploadProvider,
	storage ThumbnailStorage,
	workflows WorkflowTrigger,
	corsOrigin string,
	logger *zap.Logger,
) *videoService {
	return &videoService{
		repo:       repo,
		runs:       runs,
		uploads:    uploads,
		storage:    storage,
		workflows:  workflows,
		corsOrigin: corsOrigin,
		logger:     logger,
	}
}

// Create opens an upload session for userID and inserts the matching waiting video.
//
// When the insert fails the upload session is cancelled so no orphan session is left behind.
func (s *videoService) Create(ctx context.Context, userID string) (*models.CreateVideoResponse, error) {
	upload, err := s.uploads.CreateUpload(ctx, userID, s.corsOrigin)
	if err != nil {
		s.logger.Error("failed to create upload session", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to create upload session", models.ErrInternal)
	}

	video := &models.Video{
		UserID:      userID,
		Title:       models.DefaultVideoTitle,
		Visibility:  models.VisibilityPrivate,
		MuxStatus:   models.Ptr(models.MuxStatusWaiting),
		MuxUploadID: models.Ptr(upload.ID),
	}
	if err := s.repo.Create(ctx, video); err != nil {
		s.logger.Error("failed to insert video", zap.String("upload_id", upload.ID), zap.Error(err))
		if cancelErr := s.uploads.CancelUpload(ctx, upload.ID); cancelErr != nil {
			s.logger.Warn("failed to cancel orphaned upload", zap.String("upload_id", upload.ID), zap.Error(cancelErr))
		}
		return nil, fmt.Errorf("failed to create video: %w", err)
	}

	return &models.CreateVideoResponse{Video: video, URL: upload.URL}, nil
}

// Update edits the metadata of a video owned by userID
func (s *videoService) Update(ctx context.Context, userID string, req *models.UpdateVideoRequest) (*models.Video, error) {
	if req == nil || req.ID == "" {
		return nil, fmt.Errorf("%w: video id is required", models.ErrBadRequest)
	}
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: title must not be empty", models.ErrBadRequest)
		}
		if utf8.RuneCountInString(trimmed) > models.MaxTitleLength {
			return nil, fmt.Errorf("%w: title must be at most %d characters", models.ErrBadRequest, models.MaxTitleLength)
		}
		req.Title = &trimmed
	}
	if req.Visibility != nil && !req.Visibility.Valid() {
		return nil, fmt.Errorf("%w: invalid visibility %q", models.ErrBadRequest, *req.Visibility)
	}

	video, err := s.repo.Update(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	return video, nil
}

// Remove deletes a video owned by userID and returns the deleted row.
//
// The hosting provider asset and the stored thumbnail are released afterwards on a best-effort basis.
func (s *videoService) Remove(ctx context.Context, userID, id string) (*models.Video, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: video id is required", models.ErrBadRequest)
	}

	video, err := s.repo.DeleteByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	s.releaseRemote(ctx, video)
	return video, nil
}

func (s *videoService) releaseRemote(ctx context.Context, video *models.Video) {
	switch {
	case video.MuxAssetID != nil:
		if err := s.uploads.DeleteAsset(ctx, *video.MuxAssetID); err != nil && !errors.Is(err, mux.ErrNotFound) {
			s.logger.Warn("failed to delete remote asset", zap.String("video_id", video.ID), zap.Error(err))
		}
	case video.MuxUploadID != nil:
		if err := s.uploads.CancelUpload(ctx, *video.MuxUploadID); err != nil && !errors.Is(err, mux.ErrNotFound) {
			s.logger.Warn("failed to cancel upload", zap.String("video_id", video.ID), zap.Error(err))
		}
	}

	if video.ThumbnailKey != nil {
		err := s.storage.DeleteFiles(ctx, *video.ThumbnailKey)
		metrics.RecordStorageOperation("delete", err)
		if err != nil {
			s.logger.Warn("failed to delete thumbnail", zap.String("video_id", video.ID), zap.Error(err))
		}
	}
}

// RestoreThumbnail replaces the thumbnail of a video owned by userID with an owned copy
// of the hosting provider's default thumbnail
func (s *videoService) RestoreThumbnail(ctx context.Context, userID, id string) (*models.Video, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: video id is required", models.ErrBadRequest)
	}

	video, err := s.repo.GetByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if video.MuxPlaybackID == nil || *video.MuxPlaybackID == "" {
		return nil, fmt.Errorf("%w: video has no playback id yet", models.ErrBadRequest)
	}

	if video.ThumbnailKey != nil {
		if err := s.clearThumbnail(ctx, video); err != nil {
			return nil, err
		}
	}

	file, err := s.storage.UploadFromURL(ctx, mux.ThumbnailURL(*video.MuxPlaybackID))
	metrics.RecordStorageOperation("upload_from_url", err)
	if err != nil {
		s.logger.Error("failed to copy default thumbnail", zap.String("video_id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to upload thumbnail", models.ErrInternal)
	}
	if file == nil {
		return nil, fmt.Errorf("%w: thumbnail upload returned no data", models.ErrInternal)
	}

	return s.repo.UpdateThumbnail(ctx, id, userID, &file.URL, &file.Key)
}

// clearThumbnail deletes the stored thumbnail object and clears the row fields.
// A failed object delete is logged; the row is cleared regardless.
func (s *videoService) clearThumbnail(ctx context.Context, video *models.Video) error {
	err := s.storage.DeleteFiles(ctx, *video.ThumbnailKey)
	metrics.RecordStorageOperation("delete", err)
	if err != nil {
		s.logger.Warn("failed to delete previous thumbnail",
			zap.String("video_id", video.ID),
			zap.String("key", *video.ThumbnailKey),
			zap.Error(err),
		)
	}

	if _, err := s.repo.UpdateThumbnail(ctx, video.ID, video.UserID, nil, nil); err != nil {
		return err
	}
	return nil
}

// UploadThumbnail stores a custom thumbnail for a video owned by userID
func (s *videoService) UploadThumbnail(ctx context.Context, userID, id string, file io.Reader) (*models.Video, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: video id is required", models.ErrBadRequest)
	}

	video, err := s.repo.GetByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.storage.Upload(ctx, file)
	metrics.RecordStorageOperation("upload", err)
	if errors.Is(err, storage.ErrUnsupportedType) || errors.Is(err, storage.ErrTooLarge) {
		return nil, fmt.Errorf("%w: %v", models.ErrBadRequest, err)
	}
	if err != nil {
		s.logger.Error("failed to upload thumbnail", zap.String("video_id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to upload thumbnail", models.ErrInternal)
	}

	if video.ThumbnailKey != nil {
		err := s.storage.DeleteFiles(ctx, *video.ThumbnailKey)
		metrics.RecordStorageOperation("delete", err)
		if err != nil {
			s.logger.Warn("failed to delete previous thumbnail", zap.String("video_id", id), zap.Error(err))
		}
	}

	return s.repo.UpdateThumbnail(ctx, id, userID, &uploaded.URL, &uploaded.Key)
}

// GenerateThumbnail triggers the thumbnail workflow for a video owned by userID
func (s *videoService) GenerateThumbnail(ctx context.Context, userID, id, prompt string) (string, error) {
	if utf8.RuneCountInString(prompt) < models.MinThumbnailPromptLength {
		return "", fmt.Errorf("%w: prompt must be at least %d characters", models.ErrBadRequest, models.MinThumbnailPromptLength)
	}
	return s.trigger(ctx, models.WorkflowThumbnail, userID, id, prompt)
}

// GenerateTitle triggers the title workflow for a video owned by userID
func (s *videoService) GenerateTitle(ctx context.Context, userID, id string) (string, error) {
	return s.trigger(ctx, models.WorkflowTitle, userID, id, "")
}

// GenerateDescription triggers the description workflow for a video owned by userID
func (s *videoService) GenerateDescription(ctx context.Context, userID, id string) (string, error) {
	return s.trigger(ctx, models.WorkflowDescription, userID, id, "")
}

func (s *videoService) trigger(ctx context.Context, workflow models.Workflow, userID, id, prompt string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: video id is required", models.ErrBadRequest)
	}
	if _, err := s.repo.GetByIDAndUser(ctx, id, userID); err != nil {
		return "", err
	}

	// The run row is inserted before the task is enqueued under the same id.
	run := &models.GenerationRun{ID: uuid.NewString(), Workflow: workflow, VideoID: id, UserID: userID}
	if err := s.runs.Create(ctx, run); err != nil {
		s.logger.Error("failed to record generation run", zap.String("workflow", string(workflow)), zap.Error(err))
		return "", fmt.Errorf("%w: failed to record %s run", models.ErrInternal, workflow)
	}

	payload := models.WorkflowPayload{UserID: userID, VideoID: id, Prompt: prompt}
	if err := s.workflows.Trigger(ctx, run.ID, workflow, payload, models.WorkflowRetries); err != nil {
		metrics.RecordWorkflowTrigger(string(workflow), "error")
		s.logger.Error("failed to trigger workflow",
			zap.String("workflow", string(workflow)),
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
		msg := "failed to enqueue run"
		if err := s.runs.UpdateStatus(ctx, run.ID, models.GenerationRunStatusFailed, &msg); err != nil {
			s.logger.Warn("failed to mark generation run failed", zap.String("run_id", run.ID), zap.Error(err))
		}
		return "", fmt.Errorf("%w: failed to trigger %s workflow", models.ErrInternal, workflow)
	}
	metrics.RecordWorkflowTrigger(string(workflow), "success")

	return run.ID, nil
}

// GetPublic retrieves a public video
func (s *videoService) GetPublic(ctx context.Context, id string) (*models.Video, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: video id is required", models.ErrBadRequest)
	}
	return s.repo.GetPublicByID(ctx, id)
}
