package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flicket/backend/libs/config"
	"github.com/go-resty/resty/v2"
)

// ErrEmptyResult is returned when the model answers without usable content
var ErrEmptyResult = errors.New("generation returned no result")

// System prompts of the text workflows
const (
	TitleSystemPrompt = "Your task is to generate an SEO-focused title for a video based on its transcript. " +
		"Be concise but descriptive, using relevant keywords. Keep it under 100 characters. " +
		"Return only the title as plain text, without quotes."
	DescriptionSystemPrompt = "Your task is to summarize the transcript of a video. " +
		"Write in the third person, keep it under 3000 characters and do not use markdown. " +
		"Return only the summary as plain text."
)

// ImageSize is the requested thumbnail resolution
const ImageSize = "1792x1024"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Client calls an OpenAI-compatible generation API
type Client struct {
	httpClient *resty.Client
	textModel  string
	imageModel string
}

// NewClient creates a Resty-backed client
func NewClient(cfg config.GenerationConfig) *Client {
	return &Client{
		httpClient: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetAuthToken(cfg.APIKey).
			SetHeader("Content-Type", "application/json").
			SetTimeout(120 * time.Second),
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
	}
}

// Complete runs one chat completion and returns the trimmed text of the first choice
func (c *Client) Complete(ctx context.Context, systemPrompt, content string) (string, error) {
	req := chatCompletionRequest{
		Model: c.textModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: content},
		},
	}

	var completion chatCompletionResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&completion).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("generation api error: %d %s", resp.StatusCode(), resp.String())
	}

	if len(completion.Choices) == 0 {
		return "", ErrEmptyResult
	}
	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}

// GenerateImage renders one image for prompt and returns its temporary URL
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	req := imageRequest{
		Model:  c.imageModel,
		Prompt: prompt,
		N:      1,
		Size:   ImageSize,
	}

	var result imageResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/images/generations")
	if err != nil {
		return "", fmt.Errorf("image generation: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("generation api error: %d %s", resp.StatusCode(), resp.String())
	}

	if len(result.Data) == 0 || result.Data[0].URL == "" {
		return "", ErrEmptyResult
	}
	return result.Data[0].URL, nil
}
