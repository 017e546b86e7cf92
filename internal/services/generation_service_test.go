package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/flicket/backend/internal/generation"
	"github.com/flicket/backend/internal/models"
	"github.com/flicket/backend/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockTranscripts is a mock implementation of TranscriptSource
type mockTranscripts struct {
	text string
	err  error
}

func (m *mockTranscripts) GetTranscript(ctx context.Context, playbackID, trackID string) (string, error) {
	return m.text, m.err
}

// mockGenerator is a mock implementation of Generator
type mockGenerator struct {
	text         string
	imageURL     string
	err          error
	systemPrompt string
	prompt       string
}

func (m *mockGenerator) Complete(ctx context.Context, systemPrompt, content string) (string, error) {
	m.systemPrompt = systemPrompt
	return m.text, m.err
}

func (m *mockGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	m.prompt = prompt
	return m.imageURL, m.err
}

type generationDeps struct {
	repo        *mockVideoRepository
	runs        *mockRunRepository
	transcripts *mockTranscripts
	generator   *mockGenerator
	storage     *mockStorage
}

func transcribedVideo() *models.Video {
	v := readyVideo()
	v.MuxTrackID = models.Ptr("track-1")
	v.MuxTrackStatus = models.Ptr("ready")
	return v
}

func newTestGenerationService(videos ...*models.Video) (*generationService, *generationDeps) {
	deps := &generationDeps{
		repo:        newMockVideoRepository(videos...),
		runs:        newMockRunRepository(),
		transcripts: &mockTranscripts{text: "today we cook pasta"},
		generator:   &mockGenerator{text: "\"Cooking Pasta\"", imageURL: "https://img.example/1.png"},
		storage:     &mockStorage{file: &storage.UploadedFile{Key: "thumbnails/gen.png", URL: "https://cdn.example/thumbnails/gen.png"}},
	}
	svc := NewGenerationService(deps.repo, deps.runs, deps.transcripts, deps.generator, deps.storage, zap.NewNop())
	return svc, deps
}

var payloadA = models.WorkflowPayload{UserID: "user-a", VideoID: "video-1"}

func TestGenerationService_RunTitle(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc, deps := newTestGenerationService(transcribedVideo())

		err := svc.Run(context.Background(), "run-1", models.WorkflowTitle, payloadA)

		require.NoError(t, err)
		assert.Equal(t, "Cooking Pasta", deps.repo.videos["video-1"].Title)
		assert.Equal(t, generation.TitleSystemPrompt, deps.generator.systemPrompt)
		assert.Equal(t, models.GenerationRunStatusCompleted, deps.runs.statuses["run-1"])
	})

	t.Run("long title is truncated", func(t *testing.T) {
		svc, deps := newTestGenerationService(transcribedVideo())
		deps.generator.text = strings.Repeat("a", 150)

		require.NoError(t, svc.Run(context.Background(), "run-1", models.WorkflowTitle, payloadA))

		assert.Len(t, deps.repo.videos["video-1"].Title, models.MaxTitleLength)
	})

	t.Run("transcript not ready is retryable", func(t *testing.T) {
		svc, deps := newTestGenerationService(readyVideo())

		err := svc.Run(context.Background(), "run-1", models.WorkflowTitle, payloadA)

		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrPermanent)
		assert.NotContains(t, deps.runs.statuses, "run-1")
	})

	t.Run("generator error is retryable", func(t *testing.T) {
		svc, deps := newTestGenerationService(transcribedVideo())
		deps.generator.err = errors.New("rate limited")

		err := svc.Run(context.Background(), "run-1", models.WorkflowTitle, payloadA)

		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrPermanent)
	})
}

func TestGenerationService_RunDescription(t *testing.T) {
	svc, deps := newTestGenerationService(transcribedVideo())
	deps.generator.text = "A short cooking lesson."

	require.NoError(t, svc.Run(context.Background(), "run-2", models.WorkflowDescription, payloadA))

	require.NotNil(t, deps.repo.videos["video-1"].Description)
	assert.Equal(t, "A short cooking lesson.", *deps.repo.videos["video-1"].Description)
	assert.Equal(t, generation.DescriptionSystemPrompt, deps.generator.systemPrompt)
}

func TestGenerationService_RunThumbnail(t *testing.T) {
	t.Run("success replaces previous key", func(t *testing.T) {
		v := readyVideo()
		v.ThumbnailKey = models.Ptr("thumbnails/old.jpg")
		svc, deps := newTestGenerationService(v)
		payload := payloadA
		payload.Prompt = "a red sunset over hills"

		require.NoError(t, svc.Run(context.Background(), "run-3", models.WorkflowThumbnail, payload))

		assert.Equal(t, "a red sunset over hills", deps.generator.prompt)
		assert.Equal(t, []string{
			"upload_from_url:https://img.example/1.png",
			"delete:thumbnails/old.jpg",
		}, deps.storage.calls)
		assert.Equal(t, "thumbnails/gen.png", *deps.repo.videos["video-1"].ThumbnailKey)
	})

	t.Run("short prompt is permanent", func(t *testing.T) {
		svc, _ := newTestGenerationService(readyVideo())
		payload := payloadA
		payload.Prompt = "short"

		err := svc.Run(context.Background(), "run-3", models.WorkflowThumbnail, payload)

		assert.ErrorIs(t, err, ErrPermanent)
	})

	t.Run("rejected image is permanent", func(t *testing.T) {
		for _, storeErr := range []error{storage.ErrTooLarge, storage.ErrUnsupportedType} {
			svc, deps := newTestGenerationService(readyVideo())
			deps.storage.uploadErr = storeErr
			payload := payloadA
			payload.Prompt = "a red sunset over hills"

			err := svc.Run(context.Background(), "run-3", models.WorkflowThumbnail, payload)

			assert.ErrorIs(t, err, ErrPermanent)
			assert.Empty(t, deps.repo.thumbnailUpdates)
		}
	})

	t.Run("storage outage is retryable", func(t *testing.T) {
		svc, deps := newTestGenerationService(readyVideo())
		deps.storage.uploadErr = errors.New("connection reset")
		payload := payloadA
		payload.Prompt = "a red sunset over hills"

		err := svc.Run(context.Background(), "run-3", models.WorkflowThumbnail, payload)

		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrPermanent)
	})

	t.Run("upload without data", func(t *testing.T) {
		svc, deps := newTestGenerationService(readyVideo())
		deps.storage.file = nil
		payload := payloadA
		payload.Prompt = "a red sunset over hills"

		err := svc.Run(context.Background(), "run-3", models.WorkflowThumbnail, payload)

		assert.Error(t, err)
		assert.Empty(t, deps.repo.thumbnailUpdates)
	})
}

func TestGenerationService_RunOwnership(t *testing.T) {
	svc, deps := newTestGenerationService(transcribedVideo())

	err := svc.Run(context.Background(), "run-1", models.WorkflowTitle, models.WorkflowPayload{UserID: "user-b", VideoID: "video-1"})

	assert.ErrorIs(t, err, ErrPermanent)
	assert.Equal(t, "Untitled", deps.repo.videos["video-1"].Title)
}

func TestGenerationService_MarkFailed(t *testing.T) {
	svc, deps := newTestGenerationService()

	svc.MarkFailed(context.Background(), "run-1", errors.New("boom"))

	assert.Equal(t, models.GenerationRunStatusFailed, deps.runs.statuses["run-1"])
	assert.Equal(t, "boom", deps.runs.errors["run-1"])
}
