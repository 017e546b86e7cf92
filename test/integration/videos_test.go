package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/flicket/backend/internal/handlers"
	"github.com/flicket/backend/internal/models"
	"github.com/flicket/backend/internal/mux"
	"github.com/flicket/backend/internal/repositories"
	"github.com/flicket/backend/internal/services"
	"github.com/flicket/backend/internal/storage"
	"github.com/flicket/backend/libs/auth/middleware"
	"github.com/flicket/backend/libs/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const musicCategoryID = "0b0c6a64-0b44-4c53-9f0e-0a4d6b0c1a08"

var (
	testDB     *sql.DB
	testRouter chi.Router
	testLogger *zap.Logger
	testFakes  *fakes
)

// fakes stand in for the video provider, object storage, workflow queue and Redis
type fakes struct {
	mu        sync.Mutex
	uploads   int
	cancelled []string
	deleted   []string
	triggered []models.WorkflowPayload
	seen      map[string]bool
}

func (f *fakes) CreateUpload(ctx context.Context, passthrough, corsOrigin string) (*mux.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	return &mux.Upload{ID: "upload-" + uuid.NewString(), URL: "https://storage.example/upload", Status: "waiting"}, nil
}

func (f *fakes) CancelUpload(ctx context.Context, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, uploadID)
	return nil
}

func (f *fakes) DeleteAsset(ctx context.Context, assetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, assetID)
	return nil
}

func (f *fakes) UploadFromURL(ctx context.Context, url string) (*storage.UploadedFile, error) {
	key := storage.GenerateFileName(".jpg")
	return &storage.UploadedFile{Key: key, URL: "https://cdn.example/" + key}, nil
}

func (f *fakes) Upload(ctx context.Context, r io.Reader) (*storage.UploadedFile, error) {
	return f.UploadFromURL(ctx, "")
}

func (f *fakes) DeleteFiles(ctx context.Context, keys ...string) error {
	return nil
}

func (f *fakes) Trigger(ctx context.Context, runID string, workflow models.Workflow, payload models.WorkflowPayload, retries int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggered = append(f.triggered, payload)
	return nil
}

func (f *fakes) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[key] {
		return redis.NewBoolResult(false, nil)
	}
	f.seen[key] = true
	return redis.NewBoolResult(true, nil)
}

func (f *fakes) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.seen, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

// headerAuth authenticates requests by the X-Test-User header
func headerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-Test-User")
		if userID == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(middleware.WithUserID(r.Context(), userID)))
	})
}

// setupTestRouter creates a test router with all handlers
func setupTestRouter(db *sql.DB, logger *zap.Logger, f *fakes) chi.Router {
	videoRepo := repositories.NewVideoRepository(db)
	runRepo := repositories.NewGenerationRunRepository(db)
	categoryRepo := repositories.NewCategoryRepository(db)

	videoService := services.NewVideoService(videoRepo, runRepo, f, f, f, "*", logger)
	studioService := services.NewStudioService(videoRepo, runRepo, logger)
	categoryService := services.NewCategoryService(categoryRepo, logger)
	webhookService := services.NewWebhookService(videoRepo, f, f, "", logger)

	r := chi.NewRouter()
	handlers.NewVideoHandler(videoService, logger, headerAuth).RegisterRoutes(r)
	handlers.NewStudioHandler(studioService, logger, headerAuth).RegisterRoutes(r)
	handlers.NewCategoryHandler(categoryService, logger).RegisterRoutes(r)
	handlers.NewWebhookHandler(webhookService, logger).RegisterRoutes(r)
	return r
}

// TestMain sets up and tears down the test environment
func TestMain(m *testing.M) {
	var err error
	testLogger, err = zap.NewDevelopment()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	cfg, err := config.LoadTestConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load test config: %v", err))
	}
	if cfg.Database.Host == "" {
		fmt.Println("TEST_DB_* variables are not set, skipping integration tests")
		os.Exit(0)
	}

	testDB, err = sql.Open("mysql", cfg.DSN()+"&multiStatements=true")
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to test database: %v", err))
	}
	if err = testDB.Ping(); err != nil {
		panic(fmt.Sprintf("Failed to ping test database: %v", err))
	}

	if err := migrateTestSchema(testDB); err != nil {
		panic(fmt.Sprintf("Failed to migrate test database: %v", err))
	}

	testFakes = &fakes{seen: map[string]bool{}}
	testRouter = setupTestRouter(testDB, testLogger, testFakes)

	code := m.Run()

	testDB.Close()
	os.Exit(code)
}

// migrateTestSchema applies the service migrations to the test database
func migrateTestSchema(db *sql.DB) error {
	driver, err := migratemysql.WithInstance(db, &migratemysql.Config{
		MigrationsTable: "flicket_schema_migrations",
	})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance("file://../../migrations", "mysql", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// cleanupTestData removes all test data
func cleanupTestData(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec("DELETE FROM generation_runs")
	require.NoError(t, err, "Failed to cleanup generation runs")
	_, err = db.Exec("DELETE FROM videos")
	require.NoError(t, err, "Failed to cleanup videos")
}

func request(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-Test-User", userID)
	}
	w := httptest.NewRecorder()
	testRouter.ServeHTTP(w, req)
	return w
}

func createVideo(t *testing.T, userID string) *models.Video {
	t.Helper()
	w := request(t, http.MethodPost, "/api/v1/videos", userID, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp models.CreateVideoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Video)
	return resp.Video
}

func TestIntegration_GetCategories(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	w := request(t, http.MethodGet, "/api/v1/categories", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var categories []models.Category
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &categories))
	assert.Len(t, categories, 14)
	for i := 1; i < len(categories); i++ {
		assert.LessOrEqual(t, categories[i-1].Name, categories[i].Name)
	}
}

func TestIntegration_VideoLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	defer cleanupTestData(t, testDB)

	video := createVideo(t, "owner")
	assert.Equal(t, models.DefaultVideoTitle, video.Title)
	assert.Equal(t, models.VisibilityPrivate, video.Visibility)
	require.NotNil(t, video.MuxStatus)
	assert.Equal(t, models.MuxStatusWaiting, *video.MuxStatus)

	t.Run("private video is hidden", func(t *testing.T) {
		w := request(t, http.MethodGet, "/api/v1/videos/"+video.ID, "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("foreign update is not found", func(t *testing.T) {
		w := request(t, http.MethodPut, "/api/v1/videos/"+video.ID, "intruder", map[string]any{"title": "Hijacked"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown category is rejected", func(t *testing.T) {
		w := request(t, http.MethodPut, "/api/v1/videos/"+video.ID, "owner", map[string]any{"categoryId": uuid.NewString()})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("owner update", func(t *testing.T) {
		w := request(t, http.MethodPut, "/api/v1/videos/"+video.ID, "owner", map[string]any{
			"title":      "My trip",
			"categoryId": musicCategoryID,
			"visibility": "public",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var updated models.Video
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
		assert.Equal(t, "My trip", updated.Title)
		assert.Equal(t, musicCategoryID, *updated.CategoryID)
		assert.False(t, updated.UpdatedAt.Before(video.UpdatedAt))
	})

	t.Run("public video is visible", func(t *testing.T) {
		w := request(t, http.MethodGet, "/api/v1/videos/"+video.ID, "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("restore before processing is rejected", func(t *testing.T) {
		w := request(t, http.MethodPost, "/api/v1/videos/"+video.ID+"/thumbnail/restore", "owner", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("asset ready callback", func(t *testing.T) {
		var row models.Video
		require.NoError(t, testDB.QueryRow("SELECT mux_upload_id FROM videos WHERE id = ?", video.ID).Scan(&row.MuxUploadID))

		event := map[string]any{
			"id":   "evt-" + uuid.NewString(),
			"type": models.MuxEventAssetReady,
			"data": map[string]any{
				"id":           "asset-" + video.ID,
				"upload_id":    *row.MuxUploadID,
				"status":       "ready",
				"duration":     61.5,
				"playback_ids": []map[string]string{{"id": "pb-" + video.ID, "policy": "public"}},
			},
		}
		w := request(t, http.MethodPost, "/api/v1/webhooks/mux", "", event)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = request(t, http.MethodGet, "/api/v1/studio/videos/"+video.ID, "owner", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var ready models.Video
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ready))
		assert.Equal(t, models.MuxStatusReady, *ready.MuxStatus)
		assert.Equal(t, int64(61500), ready.Duration)
		assert.NotNil(t, ready.ThumbnailKey)
	})

	t.Run("restore after processing", func(t *testing.T) {
		w := request(t, http.MethodPost, "/api/v1/videos/"+video.ID+"/thumbnail/restore", "owner", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var restored models.Video
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &restored))
		assert.NotNil(t, restored.ThumbnailURL)
	})

	t.Run("generate title records a run", func(t *testing.T) {
		w := request(t, http.MethodPost, "/api/v1/videos/"+video.ID+"/title/generate", "owner", nil)
		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
		var resp models.TriggerResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.WorkflowRunID)

		w = request(t, http.MethodGet, "/api/v1/studio/runs/"+resp.WorkflowRunID, "owner", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var run models.GenerationRun
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
		assert.Equal(t, models.GenerationRunStatusQueued, run.Status)
		assert.Equal(t, models.WorkflowTitle, run.Workflow)

		w = request(t, http.MethodGet, "/api/v1/studio/runs/"+resp.WorkflowRunID, "intruder", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("short thumbnail prompt is rejected", func(t *testing.T) {
		w := request(t, http.MethodPost, "/api/v1/videos/"+video.ID+"/thumbnail/generate", "owner", map[string]string{"prompt": "cat"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("remove", func(t *testing.T) {
		w := request(t, http.MethodDelete, "/api/v1/videos/"+video.ID, "intruder", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = request(t, http.MethodDelete, "/api/v1/videos/"+video.ID, "owner", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = request(t, http.MethodGet, "/api/v1/studio/videos/"+video.ID, "owner", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		testFakes.mu.Lock()
		defer testFakes.mu.Unlock()
		assert.Contains(t, testFakes.deleted, "asset-"+video.ID)
	})
}

func TestIntegration_StudioPagination(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	defer cleanupTestData(t, testDB)

	for i := 0; i < 7; i++ {
		createVideo(t, "creator")
		time.Sleep(2 * time.Millisecond)
	}
	createVideo(t, "someone-else")

	seen := map[string]bool{}
	path := "/api/v1/studio/videos?limit=3"
	pages := 0
	for {
		w := request(t, http.MethodGet, path, "creator", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var page models.VideoPage
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		pages++
		for _, v := range page.Items {
			assert.Equal(t, "creator", v.UserID)
			assert.False(t, seen[v.ID], "duplicate item %s", v.ID)
			seen[v.ID] = true
		}
		if page.NextCursor == nil {
			break
		}
		path = fmt.Sprintf("/api/v1/studio/videos?limit=3&cursorId=%s&cursorUpdatedAt=%s",
			page.NextCursor.ID, page.NextCursor.UpdatedAt.Format(time.RFC3339Nano))
	}

	assert.Len(t, seen, 7)
	assert.Equal(t, 3, pages)
}
