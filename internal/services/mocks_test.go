package services

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/flicket/backend/internal/models"
	"github.com/flicket/backend/internal/mux"
	"github.com/flicket/backend/internal/storage"
	"github.com/go-redis/redis/v8"
)

// mockVideoRepository is a mock implementation of VideoRepository and the callback repositories.
// Videos are keyed by id; ownership is enforced the way the SQL predicates do.
type mockVideoRepository struct {
	videos    map[string]*models.Video
	createErr error
	updateErr error
	err       error

	created          []*models.Video
	staleQueries     int
	thumbnailUpdates []*string
	processing       map[string]models.VideoProcessingUpdate
	tracks           map[string][2]string
	deletedUploads   []string
}

func newMockVideoRepository(videos ...*models.Video) *mockVideoRepository {
	m := &mockVideoRepository{
		videos:     make(map[string]*models.Video),
		processing: make(map[string]models.VideoProcessingUpdate),
		tracks:     make(map[string][2]string),
	}
	for _, v := range videos {
		m.videos[v.ID] = v
	}
	return m
}

func (m *mockVideoRepository) owned(id, userID string) (*models.Video, error) {
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.videos[id]
	if !ok || v.UserID != userID {
		return nil, models.ErrNotFound
	}
	return v, nil
}

func (m *mockVideoRepository) Create(ctx context.Context, video *models.Video) error {
	if m.createErr != nil {
		return m.createErr
	}
	video.ID = "video-new"
	m.created = append(m.created, video)
	m.videos[video.ID] = video
	return nil
}

func (m *mockVideoRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*models.Video, error) {
	v, err := m.owned(id, userID)
	if err != nil {
		return nil, err
	}
	cp := *v
	return &cp, nil
}

func (m *mockVideoRepository) GetPublicByID(ctx context.Context, id string) (*models.Video, error) {
	v, ok := m.videos[id]
	if !ok || v.Visibility != models.VisibilityPublic {
		return nil, models.ErrNotFound
	}
	return v, nil
}

func (m *mockVideoRepository) GetByUploadID(ctx context.Context, uploadID string) (*models.Video, error) {
	for _, v := range m.videos {
		if v.MuxUploadID != nil && *v.MuxUploadID == uploadID {
			cp := *v
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *mockVideoRepository) Update(ctx context.Context, userID string, req *models.UpdateVideoRequest) (*models.Video, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	v, err := m.owned(req.ID, userID)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		v.Title = *req.Title
	}
	if req.Description != nil {
		v.Description = req.Description
	}
	if req.Visibility != nil {
		v.Visibility = *req.Visibility
	}
	return v, nil
}

func (m *mockVideoRepository) UpdateThumbnail(ctx context.Context, id, userID string, thumbnailURL, thumbnailKey *string) (*models.Video, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	v, err := m.owned(id, userID)
	if err != nil {
		return nil, err
	}
	v.ThumbnailURL = thumbnailURL
	v.ThumbnailKey = thumbnailKey
	m.thumbnailUpdates = append(m.thumbnailUpdates, thumbnailKey)
	cp := *v
	return &cp, nil
}

func (m *mockVideoRepository) DeleteByIDAndUser(ctx context.Context, id, userID string) (*models.Video, error) {
	v, err := m.owned(id, userID)
	if err != nil {
		return nil, err
	}
	delete(m.videos, id)
	return v, nil
}

func (m *mockVideoRepository) ListByUser(ctx context.Context, userID string, cursor *models.StudioCursor, limit int) ([]models.Video, error) {
	return nil, nil
}

func (m *mockVideoRepository) ListStaleWaiting(ctx context.Context, olderThan time.Time, cursor *models.StaleCursor, limit int) ([]models.Video, error) {
	m.staleQueries++
	if m.err != nil {
		return nil, m.err
	}
	videos := make([]models.Video, 0)
	for _, v := range m.videos {
		if v.MuxStatus != nil && *v.MuxStatus == models.MuxStatusWaiting && v.CreatedAt.Before(olderThan) {
			videos = append(videos, *v)
		}
	}
	sort.Slice(videos, func(i, j int) bool {
		if videos[i].CreatedAt.Equal(videos[j].CreatedAt) {
			return videos[i].ID < videos[j].ID
		}
		return videos[i].CreatedAt.Before(videos[j].CreatedAt)
	})
	if cursor != nil {
		start := len(videos)
		for i, v := range videos {
			if v.CreatedAt.After(cursor.CreatedAt) || (v.CreatedAt.Equal(cursor.CreatedAt) && v.ID > cursor.ID) {
				start = i
				break
			}
		}
		videos = videos[start:]
	}
	if len(videos) > limit {
		videos = videos[:limit]
	}
	return videos, nil
}

func (m *mockVideoRepository) UpdateProcessingByUploadID(ctx context.Context, uploadID string, update models.VideoProcessingUpdate) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	for _, v := range m.videos {
		if v.MuxUploadID != nil && *v.MuxUploadID == uploadID {
			m.processing[uploadID] = update
			if update.MuxStatus != nil {
				v.MuxStatus = update.MuxStatus
			}
			if update.MuxPlaybackID != nil {
				v.MuxPlaybackID = update.MuxPlaybackID
			}
			if update.MuxAssetID != nil {
				v.MuxAssetID = update.MuxAssetID
			}
			if update.Duration != nil {
				v.Duration = *update.Duration
			}
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *mockVideoRepository) UpdateTrackByAssetID(ctx context.Context, assetID, trackID, trackStatus string) error {
	for _, v := range m.videos {
		if v.MuxAssetID != nil && *v.MuxAssetID == assetID {
			m.tracks[assetID] = [2]string{trackID, trackStatus}
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *mockVideoRepository) DeleteByUploadID(ctx context.Context, uploadID string) error {
	for id, v := range m.videos {
		if v.MuxUploadID != nil && *v.MuxUploadID == uploadID {
			delete(m.videos, id)
			m.deletedUploads = append(m.deletedUploads, uploadID)
			return nil
		}
	}
	return models.ErrNotFound
}

// mockUploadProvider is a mock implementation of UploadProvider
type mockUploadProvider struct {
	upload    *mux.Upload
	createErr error
	deleteErr error
	cancelErr error
	uploads   map[string]*mux.Upload
	assets    map[string]*models.MuxAssetData

	cancelled     []string
	deletedAssets []string
}

func (m *mockUploadProvider) CreateUpload(ctx context.Context, passthrough, corsOrigin string) (*mux.Upload, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.upload, nil
}

func (m *mockUploadProvider) CancelUpload(ctx context.Context, uploadID string) error {
	m.cancelled = append(m.cancelled, uploadID)
	return m.cancelErr
}

func (m *mockUploadProvider) DeleteAsset(ctx context.Context, assetID string) error {
	m.deletedAssets = append(m.deletedAssets, assetID)
	return m.deleteErr
}

func (m *mockUploadProvider) GetUpload(ctx context.Context, uploadID string) (*mux.Upload, error) {
	upload, ok := m.uploads[uploadID]
	if !ok {
		return nil, mux.ErrNotFound
	}
	return upload, nil
}

func (m *mockUploadProvider) GetAsset(ctx context.Context, assetID string) (*models.MuxAssetData, error) {
	asset, ok := m.assets[assetID]
	if !ok {
		return nil, mux.ErrNotFound
	}
	return asset, nil
}

// mockStorage is a mock implementation of ThumbnailStorage.
// calls records operations in order, e.g. "delete:key" and "upload_from_url:url".
type mockStorage struct {
	file       *storage.UploadedFile
	uploadErr  error
	deleteErr  error
	calls      []string
	uploadData []byte
}

func (m *mockStorage) UploadFromURL(ctx context.Context, url string) (*storage.UploadedFile, error) {
	m.calls = append(m.calls, "upload_from_url:"+url)
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	return m.file, nil
}

func (m *mockStorage) Upload(ctx context.Context, r io.Reader) (*storage.UploadedFile, error) {
	m.calls = append(m.calls, "upload")
	data, _ := io.ReadAll(r)
	m.uploadData = data
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	return m.file, nil
}

func (m *mockStorage) DeleteFiles(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		m.calls = append(m.calls, "delete:"+key)
	}
	return m.deleteErr
}

// mockTrigger is a mock implementation of WorkflowTrigger.
// When runs is set, recorded reports whether the run row existed at enqueue time.
type mockTrigger struct {
	runs     *mockRunRepository
	err      error
	runID    string
	workflow models.Workflow
	payload  models.WorkflowPayload
	retries  int
	calls    int
	recorded bool
}

func (m *mockTrigger) Trigger(ctx context.Context, runID string, workflow models.Workflow, payload models.WorkflowPayload, retries int) error {
	m.calls++
	m.runID = runID
	m.workflow = workflow
	m.payload = payload
	m.retries = retries
	if m.runs != nil {
		_, m.recorded = m.runs.runs[runID]
	}
	return m.err
}

// mockRunRepository is a mock implementation of GenerationRunRepository
type mockRunRepository struct {
	runs      map[string]*models.GenerationRun
	createErr error
	statuses  map[string]models.GenerationRunStatus
	errors    map[string]string
}

func newMockRunRepository() *mockRunRepository {
	return &mockRunRepository{
		runs:     make(map[string]*models.GenerationRun),
		statuses: make(map[string]models.GenerationRunStatus),
		errors:   make(map[string]string),
	}
}

func (m *mockRunRepository) Create(ctx context.Context, run *models.GenerationRun) error {
	if m.createErr != nil {
		return m.createErr
	}
	run.Status = models.GenerationRunStatusQueued
	m.runs[run.ID] = run
	return nil
}

func (m *mockRunRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*models.GenerationRun, error) {
	run, ok := m.runs[id]
	if !ok || run.UserID != userID {
		return nil, models.ErrNotFound
	}
	return run, nil
}

func (m *mockRunRepository) UpdateStatus(ctx context.Context, id string, status models.GenerationRunStatus, runErr *string) error {
	m.statuses[id] = status
	if runErr != nil {
		m.errors[id] = *runErr
	}
	return nil
}

// mockDeduplicator is a mock implementation of EventDeduplicator
type mockDeduplicator struct {
	seen    map[string]bool
	err     error
	deleted []string
}

func newMockDeduplicator() *mockDeduplicator {
	return &mockDeduplicator{seen: make(map[string]bool)}
}

func (m *mockDeduplicator) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if m.err != nil {
		return redis.NewBoolResult(false, m.err)
	}
	if m.seen[key] {
		return redis.NewBoolResult(false, nil)
	}
	m.seen[key] = true
	return redis.NewBoolResult(true, nil)
}

func (m *mockDeduplicator) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.seen, key)
		m.deleted = append(m.deleted, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
