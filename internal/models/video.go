package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Visibility controls who can watch a video
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether v is a known visibility
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Processing statuses written by this service. Other values arrive verbatim from the hosting provider.
const (
	MuxStatusWaiting = "waiting"
	MuxStatusReady   = "ready"
	MuxStatusErrored = "errored"
)

// DefaultVideoTitle is the placeholder title of a freshly created video
const DefaultVideoTitle = "Untitled"

// MaxTitleLength caps video titles, in characters
const MaxTitleLength = 100

// Video represents a video row in the database
type Video struct {
	ID             string     `json:"id" db:"id"`
	UserID         string     `json:"userId" db:"user_id"`
	Title          string     `json:"title" db:"title"`
	Description    *string    `json:"description" db:"description"`
	CategoryID     *string    `json:"categoryId" db:"category_id"`
	Visibility     Visibility `json:"visibility" db:"visibility"`
	MuxStatus      *string    `json:"muxStatus" db:"mux_status"`
	MuxUploadID    *string    `json:"muxUploadId" db:"mux_upload_id"`
	MuxAssetID     *string    `json:"muxAssetId" db:"mux_asset_id"`
	MuxPlaybackID  *string    `json:"muxPlaybackId" db:"mux_playback_id"`
	MuxTrackID     *string    `json:"muxTrackId" db:"mux_track_id"`
	MuxTrackStatus *string    `json:"muxTrackStatus" db:"mux_track_status"`
	ThumbnailURL   *string    `json:"thumbnailUrl" db:"thumbnail_url"`
	ThumbnailKey   *string    `json:"thumbnailKey" db:"thumbnail_key"`
	Duration       int64      `json:"duration" db:"duration"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" db:"updated_at"`
}

// UpdateVideoRequest carries the editable fields of a video.
// Nil fields are left unchanged; an empty CategoryID or Description clears the column.
type UpdateVideoRequest struct {
	ID          string      `json:"id"`
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	CategoryID  *string     `json:"categoryId,omitempty"`
	Visibility  *Visibility `json:"visibility,omitempty"`
}

// UnmarshalJSON accepts a full Video object as well as a partial one. Read-only fields are ignored,
// and an explicit null categoryId or description clears that column.
func (r *UpdateVideoRequest) UnmarshalJSON(data []byte) error {
	type plain UpdateVideoRequest
	var req plain
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if isJSONNull(fields, "categoryId") {
		req.CategoryID = Ptr("")
	}
	if isJSONNull(fields, "description") {
		req.Description = Ptr("")
	}

	*r = UpdateVideoRequest(req)
	return nil
}

func isJSONNull(fields map[string]json.RawMessage, key string) bool {
	raw, ok := fields[key]
	return ok && bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// CreateVideoResponse is returned by the create procedure
type CreateVideoResponse struct {
	Video *Video `json:"video"`
	URL   string `json:"url"`
}

// VideoProcessingUpdate holds provider-side fields set by status callbacks.
// Nil fields are left unchanged.
type VideoProcessingUpdate struct {
	MuxStatus     *string
	MuxAssetID    *string
	MuxPlaybackID *string
	Duration      *int64
}

// StudioCursor marks the last item of a studio page
type StudioCursor struct {
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StaleCursor marks the last row of a reconcile batch
type StaleCursor struct {
	ID        string
	CreatedAt time.Time
}

// VideoPage is one page of the studio listing
type VideoPage struct {
	Items      []Video       `json:"items"`
	NextCursor *StudioCursor `json:"nextCursor"`
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}
