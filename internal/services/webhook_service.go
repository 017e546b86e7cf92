package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/flicket/backend/internal/metrics"
	"github.com/flicket/backend/internal/models"
	"github.com/flicket/backend/internal/mux"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	webhookDedupPrefix = "mux:webhook:"
	webhookDedupTTL    = 24 * time.Hour
	// SignatureTolerance is the accepted age of a signed callback
	SignatureTolerance = 5 * time.Minute
)

// CallbackVideoRepository is the interface that wraps the Videos table writes driven by provider callbacks
type CallbackVideoRepository interface {
	// GetByUploadID retrieves the video created for an upload session.
	GetByUploadID(ctx context.Context, uploadID string) (*models.Video, error)
	// UpdateProcessingByUploadID applies provider status fields to the video created for uploadID.
	UpdateProcessingByUploadID(ctx context.Context, uploadID string, update models.VideoProcessingUpdate) error
	// UpdateTrackByAssetID records the generated subtitle track of an asset.
	UpdateTrackByAssetID(ctx context.Context, assetID, trackID, trackStatus string) error
	// UpdateThumbnail sets the stored thumbnail of a video owned by userID.
	UpdateThumbnail(ctx context.Context, id, userID string, thumbnailURL, thumbnailKey *string) (*models.Video, error)
	// DeleteByUploadID removes the video created for uploadID.
	DeleteByUploadID(ctx context.Context, uploadID string) error
}

// EventDeduplicator is satisfied by *redis.Client
type EventDeduplicator interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type webhookService struct {
	repo    CallbackVideoRepository
	storage ThumbnailStorage
	dedup   EventDeduplicator
	secret  string
	now     func() time.Time
	logger  *zap.Logger
}

// NewWebhookService creates a new webhook service. An empty secret disables signature checks.
func NewWebhookService(repo CallbackVideoRepository, storage ThumbnailStorage, dedup EventDeduplicator, secret string, logger *zap.Logger) *webhookService {
	return &webhookService{
		repo:    repo,
		storage: storage,
		dedup:   dedup,
		secret:  secret,
		now:     time.Now,
		logger:  logger,
	}
}

// Handle verifies and applies one provider callback.
//
// Events already seen are acknowledged without reprocessing; unknown event types are ignored.
func (s *webhookService) Handle(ctx context.Context, body []byte, signature string) error {
	if s.secret != "" {
		if err := s.verifySignature(body, signature); err != nil {
			metrics.RecordWebhookEvent("unknown", "unauthorized")
			return fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
		}
	}

	var event models.MuxWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: invalid event body", models.ErrBadRequest)
	}
	if event.Type == "" {
		return fmt.Errorf("%w: event type is required", models.ErrBadRequest)
	}

	if event.ID != "" {
		first, err := s.dedup.SetNX(ctx, webhookDedupPrefix+event.ID, 1, webhookDedupTTL).Result()
		if err != nil {
			s.logger.Warn("webhook dedup unavailable", zap.String("event_id", event.ID), zap.Error(err))
		} else if !first {
			metrics.RecordWebhookEvent(event.Type, "duplicate")
			return nil
		}
	}

	if err := s.apply(ctx, &event); err != nil {
		metrics.RecordWebhookEvent(event.Type, "error")
		if event.ID != "" {
			s.dedup.Del(ctx, webhookDedupPrefix+event.ID)
		}
		return err
	}

	metrics.RecordWebhookEvent(event.Type, "success")
	return nil
}

func (s *webhookService) apply(ctx context.Context, event *models.MuxWebhookEvent) error {
	switch event.Type {
	case models.MuxEventAssetCreated, models.MuxEventAssetReady, models.MuxEventAssetErrored, models.MuxEventAssetDeleted:
		var data models.MuxAssetData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("%w: invalid asset data", models.ErrBadRequest)
		}
		if data.UploadID == "" {
			s.logger.Info("ignoring asset event without upload id", zap.String("type", event.Type), zap.String("asset_id", data.ID))
			return nil
		}
		return s.applyAsset(ctx, event.Type, &data)
	case models.MuxEventAssetTrackReady:
		var data models.MuxTrackData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("%w: invalid track data", models.ErrBadRequest)
		}
		return ignoreNotFound(s.repo.UpdateTrackByAssetID(ctx, data.AssetID, data.ID, data.Status))
	default:
		s.logger.Debug("ignoring webhook event", zap.String("type", event.Type))
		return nil
	}
}

func (s *webhookService) applyAsset(ctx context.Context, eventType string, data *models.MuxAssetData) error {
	switch eventType {
	case models.MuxEventAssetCreated:
		return ignoreNotFound(s.repo.UpdateProcessingByUploadID(ctx, data.UploadID, models.VideoProcessingUpdate{
			MuxStatus:  models.Ptr(data.Status),
			MuxAssetID: models.Ptr(data.ID),
		}))

	case models.MuxEventAssetReady:
		update := models.VideoProcessingUpdate{
			MuxStatus:  models.Ptr(models.MuxStatusReady),
			MuxAssetID: models.Ptr(data.ID),
			Duration:   models.Ptr(int64(math.Round(data.Duration * 1000))),
		}
		if len(data.PlaybackIDs) > 0 {
			update.MuxPlaybackID = models.Ptr(data.PlaybackIDs[0].ID)
		}
		if err := s.repo.UpdateProcessingByUploadID(ctx, data.UploadID, update); err != nil {
			return ignoreNotFound(err)
		}
		if update.MuxPlaybackID != nil {
			s.copyDefaultThumbnail(ctx, data.UploadID, *update.MuxPlaybackID)
		}
		return nil

	case models.MuxEventAssetErrored:
		return ignoreNotFound(s.repo.UpdateProcessingByUploadID(ctx, data.UploadID, models.VideoProcessingUpdate{
			MuxStatus: models.Ptr(models.MuxStatusErrored),
		}))

	case models.MuxEventAssetDeleted:
		video, err := s.repo.GetByUploadID(ctx, data.UploadID)
		if err != nil {
			return ignoreNotFound(err)
		}
		if err := s.repo.DeleteByUploadID(ctx, data.UploadID); err != nil {
			return ignoreNotFound(err)
		}
		if video.ThumbnailKey != nil {
			err := s.storage.DeleteFiles(ctx, *video.ThumbnailKey)
			metrics.RecordStorageOperation("delete", err)
			if err != nil {
				s.logger.Warn("failed to delete thumbnail of deleted asset", zap.String("video_id", video.ID), zap.Error(err))
			}
		}
		return nil
	}
	return nil
}

// copyDefaultThumbnail stores the provider thumbnail for videos that have none yet. Failures are logged.
func (s *webhookService) copyDefaultThumbnail(ctx context.Context, uploadID, playbackID string) {
	video, err := s.repo.GetByUploadID(ctx, uploadID)
	if err != nil {
		s.logger.Warn("failed to load video for thumbnail", zap.String("upload_id", uploadID), zap.Error(err))
		return
	}
	if video.ThumbnailKey != nil {
		return
	}

	file, err := s.storage.UploadFromURL(ctx, mux.ThumbnailURL(playbackID))
	metrics.RecordStorageOperation("upload_from_url", err)
	if err != nil || file == nil {
		s.logger.Warn("failed to copy default thumbnail", zap.String("video_id", video.ID), zap.Error(err))
		return
	}

	if _, err := s.repo.UpdateThumbnail(ctx, video.ID, video.UserID, &file.URL, &file.Key); err != nil {
		s.logger.Warn("failed to save default thumbnail", zap.String("video_id", video.ID), zap.Error(err))
	}
}

// verifySignature checks a "t=<unix>,v1=<hex>" header against HMAC-SHA256(secret, "<t>.<body>")
func (s *webhookService) verifySignature(body []byte, header string) error {
	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return errors.New("malformed signature header")
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errors.New("malformed signature timestamp")
	}
	age := s.now().Sub(time.Unix(unix, 0))
	if age > SignatureTolerance || age < -SignatureTolerance {
		return errors.New("signature timestamp outside tolerance")
	}

	expected := Sign(s.secret, timestamp, body)
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return errors.New("signature mismatch")
}

// Sign returns the hex HMAC-SHA256 of "<timestamp>.<body>"
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ignoreNotFound acknowledges callbacks for rows that no longer exist
func ignoreNotFound(err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	return err
}
