package mux

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/flicket/backend/internal/models"
	"github.com/flicket/backend/libs/config"
	"github.com/go-resty/resty/v2"
)

// ErrNotFound is returned when the provider does not know the requested resource
var ErrNotFound = errors.New("mux: resource not found")

const (
	imageBaseURL  = "https://image.mux.com"
	streamBaseURL = "https://stream.mux.com"
)

// Upload is a direct upload session
type Upload struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Status  string `json:"status"`
	AssetID string `json:"asset_id"`
}

type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

type generatedSubtitles struct {
	LanguageCode string `json:"language_code"`
	Name         string `json:"name"`
}

type assetInput struct {
	GeneratedSubtitles []generatedSubtitles `json:"generated_subtitles"`
}

type newAssetSettings struct {
	Passthrough    string       `json:"passthrough"`
	PlaybackPolicy []string     `json:"playback_policy"`
	Input          []assetInput `json:"input"`
}

type createUploadRequest struct {
	CORSOrigin       string           `json:"cors_origin"`
	NewAssetSettings newAssetSettings `json:"new_asset_settings"`
}

// Client talks to the video hosting provider REST API
type Client struct {
	httpClient    *resty.Client
	streamClient  *resty.Client
	streamBaseURL string
}

// NewClient creates a Resty-backed client authenticated with the access token pair
func NewClient(cfg config.MuxConfig) *Client {
	return &Client{
		httpClient: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetBasicAuth(cfg.TokenID, cfg.TokenSecret).
			SetHeader("Content-Type", "application/json").
			SetTimeout(30 * time.Second),
		streamClient:  resty.New().SetTimeout(30 * time.Second),
		streamBaseURL: streamBaseURL,
	}
}

// CreateUpload opens a direct upload session. The resulting asset carries passthrough
// (the owner's user id), a public playback id and English auto-generated subtitles.
func (c *Client) CreateUpload(ctx context.Context, passthrough, corsOrigin string) (*Upload, error) {
	body := createUploadRequest{
		CORSOrigin: corsOrigin,
		NewAssetSettings: newAssetSettings{
			Passthrough:    passthrough,
			PlaybackPolicy: []string{"public"},
			Input: []assetInput{{
				GeneratedSubtitles: []generatedSubtitles{{LanguageCode: "en", Name: "English"}},
			}},
		},
	}

	var result dataEnvelope[Upload]
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/video/v1/uploads")
	if err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}
	if result.Data.ID == "" || result.Data.URL == "" {
		return nil, errors.New("create upload: empty upload in response")
	}

	return &result.Data, nil
}

// GetUpload fetches the state of an upload session
func (c *Client) GetUpload(ctx context.Context, uploadID string) (*Upload, error) {
	var result dataEnvelope[Upload]
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("uploadId", uploadID).
		SetResult(&result).
		Get("/video/v1/uploads/{uploadId}")
	if err != nil {
		return nil, fmt.Errorf("get upload: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, fmt.Errorf("get upload: %w", err)
	}

	return &result.Data, nil
}

// GetAsset fetches the state of an asset
func (c *Client) GetAsset(ctx context.Context, assetID string) (*models.MuxAssetData, error) {
	var result dataEnvelope[models.MuxAssetData]
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("assetId", assetID).
		SetResult(&result).
		Get("/video/v1/assets/{assetId}")
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}

	return &result.Data, nil
}

// CancelUpload cancels an upload session that has not produced an asset yet
func (c *Client) CancelUpload(ctx context.Context, uploadID string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("uploadId", uploadID).
		Put("/video/v1/uploads/{uploadId}/cancel")
	if err != nil {
		return fmt.Errorf("cancel upload: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return fmt.Errorf("cancel upload: %w", err)
	}
	return nil
}

// DeleteAsset deletes an asset and its playback ids
func (c *Client) DeleteAsset(ctx context.Context, assetID string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("assetId", assetID).
		Delete("/video/v1/assets/{assetId}")
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}

// GetTranscript downloads the plain text transcript of a ready subtitle track
func (c *Client) GetTranscript(ctx context.Context, playbackID, trackID string) (string, error) {
	resp, err := c.streamClient.R().
		SetContext(ctx).
		Get(c.streamBaseURL + "/" + playbackID + "/text/" + trackID + ".txt")
	if err != nil {
		return "", fmt.Errorf("get transcript: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return "", fmt.Errorf("get transcript: %w", err)
	}
	return resp.String(), nil
}

func checkResponse(resp *resty.Response) error {
	if resp.StatusCode() == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.IsError() {
		return fmt.Errorf("mux api error: %d %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// ThumbnailURL returns the provider-rendered thumbnail of a playback id
func ThumbnailURL(playbackID string) string {
	return imageBaseURL + "/" + playbackID + "/thumbnail.jpg"
}
