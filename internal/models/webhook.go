package models

import "encoding/json"

// Hosting provider webhook event types handled by the service
const (
	MuxEventAssetCreated    = "video.asset.created"
	MuxEventAssetReady      = "video.asset.ready"
	MuxEventAssetErrored    = "video.asset.errored"
	MuxEventAssetDeleted    = "video.asset.deleted"
	MuxEventAssetTrackReady = "video.asset.track.ready"
)

// MuxWebhookEvent is the envelope of a hosting provider callback
type MuxWebhookEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MuxPlaybackID is a playback id attached to an asset
type MuxPlaybackID struct {
	ID     string `json:"id"`
	Policy string `json:"policy"`
}

// MuxAssetData is the data of asset events
type MuxAssetData struct {
	ID          string          `json:"id"`
	UploadID    string          `json:"upload_id"`
	Status      string          `json:"status"`
	Passthrough string          `json:"passthrough"`
	Duration    float64         `json:"duration"`
	PlaybackIDs []MuxPlaybackID `json:"playback_ids"`
}

// MuxTrackData is the data of track events
type MuxTrackData struct {
	ID      string `json:"id"`
	AssetID string `json:"asset_id"`
	Status  string `json:"status"`
}
