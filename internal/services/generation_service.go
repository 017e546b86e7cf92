package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/flicket/backend/internal/generation"
	"github.com/flicket/backend/internal/metrics"
	"github.com/flicket/backend/internal/models"
	"github.com/flicket/backend/internal/storage"
	"go.uber.org/zap"
)

// ErrPermanent marks run failures that retrying cannot fix
var ErrPermanent = errors.New("permanent generation failure")

// GenerationVideoRepository is the interface that wraps the Videos table access of generation runs
type GenerationVideoRepository interface {
	// GetByIDAndUser retrieves a video owned by userID.
	GetByIDAndUser(ctx context.Context, id, userID string) (*models.Video, error)
	// Update applies the non-nil fields of req to the video owned by userID.
	Update(ctx context.Context, userID string, req *models.UpdateVideoRequest) (*models.Video, error)
	// UpdateThumbnail sets the stored thumbnail of a video owned by userID.
	UpdateThumbnail(ctx context.Context, id, userID string, thumbnailURL, thumbnailKey *string) (*models.Video, error)
}

// TranscriptSource downloads subtitle track transcripts
type TranscriptSource interface {
	GetTranscript(ctx context.Context, playbackID, trackID string) (string, error)
}

// Generator produces text and images
type Generator interface {
	Complete(ctx context.Context, systemPrompt, content string) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

type generationService struct {
	repo        GenerationVideoRepository
	runs        GenerationRunRepository
	transcripts TranscriptSource
	generator   Generator
	storage     ThumbnailStorage
	logger      *zap.Logger
}

// NewGenerationService creates a new generation service
func NewGenerationService(
	repo GenerationVideoRepository,
	runs GenerationRunRepository,
	transcripts TranscriptSource,
	generator Generator,
	storage ThumbnailStorage,
	logger *zap.Logger,
) *generationService {
	return &generationService{
		repo:        repo,
		runs:        runs,
		transcripts: transcripts,
		generator:   generator,
		storage:     storage,
		logger:      logger,
	}
}

// Run executes one attempt of a generation run and marks it completed on success.
//
// Errors wrapping ErrPermanent must not be retried.
func (s *generationService) Run(ctx context.Context, runID string, workflow models.Workflow, payload models.WorkflowPayload) error {
	video, err := s.repo.GetByIDAndUser(ctx, payload.VideoID, payload.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	if err != nil {
		return err
	}

	switch workflow {
	case models.WorkflowTitle:
		err = s.generateTitle(ctx, video)
	case models.WorkflowDescription:
		err = s.generateDescription(ctx, video)
	case models.WorkflowThumbnail:
		err = s.generateThumbnail(ctx, video, payload.Prompt)
	default:
		err = fmt.Errorf("%w: unknown workflow %q", ErrPermanent, workflow)
	}
	if err != nil {
		metrics.RecordWorkflowRun(string(workflow), "error")
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}
		return err
	}

	metrics.RecordWorkflowRun(string(workflow), "success")
	if err := s.runs.UpdateStatus(ctx, runID, models.GenerationRunStatusCompleted, nil); err != nil {
		s.logger.Warn("failed to mark run completed", zap.String("run_id", runID), zap.Error(err))
	}
	s.logger.Info("generation run completed",
		zap.String("run_id", runID),
		zap.String("workflow", string(workflow)),
		zap.String("video_id", video.ID),
	)
	return nil
}

// MarkFailed records the final failure of a run
func (s *generationService) MarkFailed(ctx context.Context, runID string, cause error) {
	msg := cause.Error()
	if err := s.runs.UpdateStatus(ctx, runID, models.GenerationRunStatusFailed, &msg); err != nil {
		s.logger.Warn("failed to mark run failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func (s *generationService) transcript(ctx context.Context, video *models.Video) (string, error) {
	if video.MuxPlaybackID == nil || video.MuxTrackID == nil {
		return "", errors.New("transcript is not available yet")
	}
	if video.MuxTrackStatus != nil && *video.MuxTrackStatus != models.MuxStatusReady {
		return "", fmt.Errorf("subtitle track is %s", *video.MuxTrackStatus)
	}

	text, err := s.transcripts.GetTranscript(ctx, *video.MuxPlaybackID, *video.MuxTrackID)
	if err != nil {
		return "", fmt.Errorf("failed to get transcript: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: transcript is empty", ErrPermanent)
	}
	return text, nil
}

func (s *generationService) generateTitle(ctx context.Context, video *models.Video) error {
	text, err := s.transcript(ctx, video)
	if err != nil {
		return err
	}

	title, err := s.generator.Complete(ctx, generation.TitleSystemPrompt, text)
	if err != nil {
		return fmt.Errorf("failed to generate title: %w", err)
	}
	title = truncateRunes(strings.Trim(title, "\"' \n"), models.MaxTitleLength)
	if title == "" {
		return fmt.Errorf("failed to generate title: %w", generation.ErrEmptyResult)
	}

	_, err = s.repo.Update(ctx, video.UserID, &models.UpdateVideoRequest{ID: video.ID, Title: &title})
	return err
}

func (s *generationService) generateDescription(ctx context.Context, video *models.Video) error {
	text, err := s.transcript(ctx, video)
	if err != nil {
		return err
	}

	description, err := s.generator.Complete(ctx, generation.DescriptionSystemPrompt, text)
	if err != nil {
		return fmt.Errorf("failed to generate description: %w", err)
	}

	_, err = s.repo.Update(ctx, video.UserID, &models.UpdateVideoRequest{ID: video.ID, Description: &description})
	return err
}

func (s *generationService) generateThumbnail(ctx context.Context, video *models.Video, prompt string) error {
	if len([]rune(prompt)) < models.MinThumbnailPromptLength {
		return fmt.Errorf("%w: prompt too short", ErrPermanent)
	}

	imageURL, err := s.generator.GenerateImage(ctx, prompt)
	if err != nil {
		return fmt.Errorf("failed to generate thumbnail: %w", err)
	}

	file, err := s.storage.UploadFromURL(ctx, imageURL)
	metrics.RecordStorageOperation("upload_from_url", err)
	if errors.Is(err, storage.ErrTooLarge) || errors.Is(err, storage.ErrUnsupportedType) {
		return fmt.Errorf("%w: generated image rejected: %v", ErrPermanent, err)
	}
	if err != nil {
		return fmt.Errorf("failed to store thumbnail: %w", err)
	}
	if file == nil {
		return errors.New("thumbnail upload returned no data")
	}

	if video.ThumbnailKey != nil {
		err := s.storage.DeleteFiles(ctx, *video.ThumbnailKey)
		metrics.RecordStorageOperation("delete", err)
		if err != nil {
			s.logger.Warn("failed to delete previous thumbnail", zap.String("video_id", video.ID), zap.Error(err))
		}
	}

	_, err = s.repo.UpdateThumbnail(ctx, video.ID, video.UserID, &file.URL, &file.Key)
	return err
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max]))
}
