package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/flicket/backend/internal/models"
	"github.com/flicket/backend/internal/mux"
	"go.uber.org/zap"
)

// reconcileBatchSize bounds the rows loaded per query
const reconcileBatchSize = 100

// uploadStatusAssetCreated is the upload session state once the provider has created an asset
const uploadStatusAssetCreated = "asset_created"

// Upload session states after which no asset will ever arrive
var deadUploadStatuses = map[string]bool{
	"errored":   true,
	"cancelled": true,
	"timed_out": true,
}

// StaleVideoRepository is the interface that wraps the Videos table access of the reconcile sweep
type StaleVideoRepository interface {
	// ListStaleWaiting returns up to limit videos still waiting for an upload created before olderThan,
	// ordered by (created_at, id) and starting after cursor when it is set.
	ListStaleWaiting(ctx context.Context, olderThan time.Time, cursor *models.StaleCursor, limit int) ([]models.Video, error)
	// UpdateProcessingByUploadID applies provider status fields to the video created for uploadID.
	UpdateProcessingByUploadID(ctx context.Context, uploadID string, update models.VideoProcessingUpdate) error
}

// UploadInspector reads upload session and asset state from the hosting provider
type UploadInspector interface {
	GetUpload(ctx context.Context, uploadID string) (*mux.Upload, error)
	GetAsset(ctx context.Context, assetID string) (*models.MuxAssetData, error)
}

type reconcileService struct {
	repo       StaleVideoRepository
	uploads    UploadInspector
	staleAfter time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewReconcileService creates a new reconcile service
func NewReconcileService(repo StaleVideoRepository, uploads UploadInspector, staleAfter time.Duration, logger *zap.Logger) *reconcileService {
	return &reconcileService{
		repo:       repo,
		uploads:    uploads,
		staleAfter: staleAfter,
		now:        time.Now,
		logger:     logger,
	}
}

// Sweep walks every video still waiting past the stale cutoff. Uploads that died are marked errored,
// uploads that already produced an asset take the asset's status. Returns how many rows changed.
func (s *reconcileService) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.staleAfter)

	var cursor *models.StaleCursor
	changed := 0
	for {
		videos, err := s.repo.ListStaleWaiting(ctx, cutoff, cursor, reconcileBatchSize)
		if err != nil {
			return changed, fmt.Errorf("failed to list stale videos: %w", err)
		}

		for _, video := range videos {
			if video.MuxUploadID == nil {
				continue
			}
			if s.reconcile(ctx, &video, *video.MuxUploadID) {
				changed++
			}
		}

		if len(videos) < reconcileBatchSize {
			break
		}
		last := videos[len(videos)-1]
		cursor = &models.StaleCursor{ID: last.ID, CreatedAt: last.CreatedAt}
	}

	if changed > 0 {
		s.logger.Info("stale uploads reconciled", zap.Int("count", changed))
	}
	return changed, nil
}

// reconcile brings one waiting video in line with its upload session and reports whether the row changed
func (s *reconcileService) reconcile(ctx context.Context, video *models.Video, uploadID string) bool {
	upload, err := s.uploads.GetUpload(ctx, uploadID)
	var update models.VideoProcessingUpdate
	switch {
	case errors.Is(err, mux.ErrNotFound):
		update.MuxStatus = models.Ptr(models.MuxStatusErrored)
	case err != nil:
		s.logger.Warn("failed to inspect upload", zap.String("upload_id", uploadID), zap.Error(err))
		return false
	case deadUploadStatuses[upload.Status]:
		update.MuxStatus = models.Ptr(models.MuxStatusErrored)
	case upload.Status == uploadStatusAssetCreated && upload.AssetID != "":
		asset, err := s.uploads.GetAsset(ctx, upload.AssetID)
		if err != nil {
			s.logger.Warn("failed to inspect asset", zap.String("asset_id", upload.AssetID), zap.Error(err))
			return false
		}
		if asset.Status == "" {
			return false
		}
		update = assetUpdate(asset)
	default:
		return false
	}

	if err := s.repo.UpdateProcessingByUploadID(ctx, uploadID, update); err != nil {
		s.logger.Warn("failed to reconcile stale video", zap.String("video_id", video.ID), zap.Error(err))
		return false
	}
	return true
}

func assetUpdate(asset *models.MuxAssetData) models.VideoProcessingUpdate {
	update := models.VideoProcessingUpdate{
		MuxStatus:  models.Ptr(asset.Status),
		MuxAssetID: models.Ptr(asset.ID),
	}
	if asset.Status == models.MuxStatusReady {
		update.Duration = models.Ptr(int64(math.Round(asset.Duration * 1000)))
		if len(asset.PlaybackIDs) > 0 {
			update.MuxPlaybackID = models.Ptr(asset.PlaybackIDs[0].ID)
		}
	}
	return update
}
