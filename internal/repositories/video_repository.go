package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flicket/backend/internal/models"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// mysqlErrNoReferencedRow is raised when a foreign key points at a missing row
const mysqlErrNoReferencedRow = 1452

const videoColumns = `id, user_id, title, description, category_id, visibility,
	mux_status, mux_upload_id, mux_asset_id, mux_playback_id, mux_track_id, mux_track_status,
	thumbnail_url, thumbnail_key, duration, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// videoRepository implements video repository operations
type videoRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewVideoRepository creates a new video repository
func NewVideoRepository(db *sql.DB) *videoRepository {
	return &videoRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func scanVideo(row rowScanner) (*models.Video, error) {
	video := &models.Video{}
	err := row.Scan(
		&video.ID,
		&video.UserID,
		&video.Title,
		&video.Description,
		&video.CategoryID,
		&video.Visibility,
		&video.MuxStatus,
		&video.MuxUploadID,
		&video.MuxAssetID,
		&video.MuxPlaybackID,
		&video.MuxTrackID,
		&video.MuxTrackStatus,
		&video.ThumbnailURL,
		&video.ThumbnailKey,
		&video.Duration,
		&video.CreatedAt,
		&video.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return video, nil
}

// getOne runs a single-row video query, mapping sql.ErrNoRows to models.ErrNotFound
func (r *videoRepository) getOne(ctx context.Context, where string, args ...any) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE ` + where + ` LIMIT 1`

	video, err := scanVideo(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("video %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return video, nil
}

// Create inserts a new video, assigning its ID and timestamps
func (r *videoRepository) Create(ctx context.Context, video *models.Video) error {
	if video.ID == "" {
		video.ID = uuid.NewString()
	}
	if video.Visibility == "" {
		video.Visibility = models.VisibilityPrivate
	}
	now := r.now()
	video.CreatedAt = now
	video.UpdatedAt = now

	query := `
		INSERT INTO videos (id, user_id, title, visibility, mux_status, mux_upload_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		video.ID,
		video.UserID,
		video.Title,
		video.Visibility,
		video.MuxStatus,
		video.MuxUploadID,
		video.CreatedAt,
		video.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}

	return nil
}

// GetByIDAndUser retrieves a video owned by userID
func (r *videoRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*models.Video, error) {
	return r.getOne(ctx, `id = ? AND user_id = ?`, id, userID)
}

// GetPublicByID retrieves a video only when it is public
func (r *videoRepository) GetPublicByID(ctx context.Context, id string) (*models.Video, error) {
	return r.getOne(ctx, `id = ? AND visibility = ?`, id, models.VisibilityPublic)
}

// GetByUploadID retrieves a video by its hosting provider upload id
func (r *videoRepository) GetByUploadID(ctx context.Context, uploadID string) (*models.Video, error) {
	return r.getOne(ctx, `mux_upload_id = ?`, uploadID)
}

// Update applies the non-nil fields of req to the video owned by userID and returns the fresh row.
// Zero matched rows means the video is absent or owned by someone else.
func (r *videoRepository) Update(ctx context.Context, userID string, req *models.UpdateVideoRequest) (*models.Video, error) {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 7)

	if req.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *req.Title)
	}
	if req.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullIfEmpty(*req.Description))
	}
	if req.CategoryID != nil {
		sets = append(sets, "category_id = ?")
		args = append(args, nullIfEmpty(*req.CategoryID))
	}
	if req.Visibility != nil {
		sets = append(sets, "visibility = ?")
		args = append(args, *req.Visibility)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, r.now(), req.ID, userID)

	query := `UPDATE videos SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND user_id = ?`

	if err := r.execExpectingRow(ctx, query, args...); err != nil {
		return nil, err
	}

	return r.GetByIDAndUser(ctx, req.ID, userID)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// UpdateThumbnail sets (or clears, when both are nil) the stored thumbnail of a video owned by userID
func (r *videoRepository) UpdateThumbnail(ctx context.Context, id, userID string, thumbnailURL, thumbnailKey *string) (*models.Video, error) {
	query := `
		UPDATE videos
		SET thumbnail_url = ?, thumbnail_key = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`

	if err := r.execExpectingRow(ctx, query, thumbnailURL, thumbnailKey, r.now(), id, userID); err != nil {
		return nil, err
	}

	return r.GetByIDAndUser(ctx, id, userID)
}

// DeleteByIDAndUser deletes a video owned by userID and returns the deleted row
func (r *videoRepository) DeleteByIDAndUser(ctx context.Context, id, userID string) (*models.Video, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = ? AND user_id = ? FOR UPDATE`
	video, err := scanVideo(tx.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("video %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM videos WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return nil, fmt.Errorf("failed to delete video: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return video, nil
}

// ListByUser returns up to limit videos of userID ordered by (updated_at, id) descending,
// starting strictly after cursor when it is set
func (r *videoRepository) ListByUser(ctx context.Context, userID string, cursor *models.StudioCursor, limit int) ([]models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE user_id = ?`
	args := []any{userID}

	if cursor != nil {
		query += ` AND (updated_at < ? OR (updated_at = ? AND id < ?))`
		args = append(args, cursor.UpdatedAt, cursor.UpdatedAt, cursor.ID)
	}
	query += ` ORDER BY updated_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	return r.list(ctx, query, args...)
}

// ListStaleWaiting returns up to limit videos still waiting for an upload created before olderThan,
// ordered by (created_at, id) and starting strictly after cursor when it is set
func (r *videoRepository) ListStaleWaiting(ctx context.Context, olderThan time.Time, cursor *models.StaleCursor, limit int) ([]models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos
		WHERE mux_status = ? AND mux_upload_id IS NOT NULL AND created_at < ?`
	args := []any{models.MuxStatusWaiting, olderThan}

	if cursor != nil {
		query += ` AND (created_at > ? OR (created_at = ? AND id > ?))`
		args = append(args, cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	query += ` ORDER BY created_at, id LIMIT ?`
	args = append(args, limit)

	return r.list(ctx, query, args...)
}

func (r *videoRepository) list(ctx context.Context, query string, args ...any) ([]models.Video, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	videos := make([]models.Video, 0)
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, *video)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating videos: %w", err)
	}

	return videos, nil
}

// UpdateProcessingByUploadID applies provider status fields to the video created for uploadID
func (r *videoRepository) UpdateProcessingByUploadID(ctx context.Context, uploadID string, update models.VideoProcessingUpdate) error {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)

	if update.MuxStatus != nil {
		sets = append(sets, "mux_status = ?")
		args = append(args, *update.MuxStatus)
	}
	if update.MuxAssetID != nil {
		sets = append(sets, "mux_asset_id = ?")
		args = append(args, *update.MuxAssetID)
	}
	if update.MuxPlaybackID != nil {
		sets = append(sets, "mux_playback_id = ?")
		args = append(args, *update.MuxPlaybackID)
	}
	if update.Duration != nil {
		sets = append(sets, "duration = ?")
		args = append(args, *update.Duration)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, r.now(), uploadID)

	query := `UPDATE videos SET ` + strings.Join(sets, ", ") + ` WHERE mux_upload_id = ?`
	return r.execExpectingRow(ctx, query, args...)
}

// UpdateTrackByAssetID records the generated subtitle track of an asset
func (r *videoRepository) UpdateTrackByAssetID(ctx context.Context, assetID, trackID, trackStatus string) error {
	query := `
		UPDATE videos
		SET mux_track_id = ?, mux_track_status = ?, updated_at = ?
		WHERE mux_asset_id = ?
	`
	return r.execExpectingRow(ctx, query, trackID, trackStatus, r.now(), assetID)
}

// DeleteByUploadID removes the video created for uploadID
func (r *videoRepository) DeleteByUploadID(ctx context.Context, uploadID string) error {
	return r.execExpectingRow(ctx, `DELETE FROM videos WHERE mux_upload_id = ?`, uploadID)
}

// execExpectingRow executes a statement and returns models.ErrNotFound when no row matched
func (r *videoRepository) execExpectingRow(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrNoReferencedRow {
		return fmt.Errorf("unknown category: %w", models.ErrBadRequest)
	}
	if err != nil {
		return fmt.Errorf("failed to write video: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("video %w", models.ErrNotFound)
	}

	return nil
}
