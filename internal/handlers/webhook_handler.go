package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxWebhookBodySize bounds callback bodies
const maxWebhookBodySize = 1 << 20

// WebhookService is the interface that wraps provider callback handling
type WebhookService interface {
	Handle(ctx context.Context, body []byte, signature string) error
}

// WebhookHandler handles provider status callbacks
type WebhookHandler struct {
	BaseHandler
	service WebhookService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(svc WebhookService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: newBaseHandler(logger),
		service:     svc,
	}
}

// RegisterRoutes registers all webhook handler routes
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/webhooks/mux", h.HandleMux)
}

// HandleMux handles POST /api/v1/webhooks/mux
// @Summary Receive a video provider callback
// @Description Signed status callback for uploads, assets and subtitle tracks
// @Tags webhooks
// @Accept json
// @Produce json
// @Param Mux-Signature header string false "t=<unix>,v1=<hex hmac>"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/webhooks/mux [post]
func (h *WebhookHandler) HandleMux(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if err := h.service.Handle(r.Context(), body, r.Header.Get("Mux-Signature")); err != nil {
		h.respondServiceError(w, r, err, "handle webhook")
		return
	}

	h.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
