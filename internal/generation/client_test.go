package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flicket/backend/libs/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.GenerationConfig{
		BaseURL:    server.URL + "/",
		APIKey:     "sk-test",
		TextModel:  "text-model",
		ImageModel: "image-model",
	})
}

func TestClient_Complete(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		expected    string
		expectedErr error
		expectError bool
	}{
		{
			name:     "success",
			status:   http.StatusOK,
			body:     `{"choices":[{"message":{"role":"assistant","content":"  Cooking pasta at home \n"}}]}`,
			expected: "Cooking pasta at home",
		},
		{
			name:        "no choices",
			status:      http.StatusOK,
			body:        `{"choices":[]}`,
			expectedErr: ErrEmptyResult,
			expectError: true,
		},
		{
			name:        "blank content",
			status:      http.StatusOK,
			body:        `{"choices":[{"message":{"role":"assistant","content":"   "}}]}`,
			expectedErr: ErrEmptyResult,
			expectError: true,
		},
		{
			name:        "api error",
			status:      http.StatusTooManyRequests,
			body:        `{"error":{"message":"rate limited"}}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

				var req chatCompletionRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "text-model", req.Model)
				require.Len(t, req.Messages, 2)
				assert.Equal(t, "system", req.Messages[0].Role)
				assert.Equal(t, TitleSystemPrompt, req.Messages[0].Content)
				assert.Equal(t, "transcript", req.Messages[1].Content)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			text, err := client.Complete(context.Background(), TitleSystemPrompt, "transcript")

			if tt.expectError {
				assert.Error(t, err)
				if tt.expectedErr != nil {
					assert.ErrorIs(t, err, tt.expectedErr)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, text)
			}
		})
	}
}

func TestClient_GenerateImage(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/images/generations", r.URL.Path)

			var req imageRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "image-model", req.Model)
			assert.Equal(t, "a red sunset over hills", req.Prompt)
			assert.Equal(t, 1, req.N)
			assert.Equal(t, ImageSize, req.Size)

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data":[{"url":"https://img.example/1.png"}]}`))
		})

		url, err := client.GenerateImage(context.Background(), "a red sunset over hills")

		require.NoError(t, err)
		assert.Equal(t, "https://img.example/1.png", url)
	})

	t.Run("empty data", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data":[]}`))
		})

		_, err := client.GenerateImage(context.Background(), "a red sunset over hills")

		assert.ErrorIs(t, err, ErrEmptyResult)
	})
}
