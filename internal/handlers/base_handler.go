package handlers

import (
	"errors"
	"net/http"

	"github.com/flicket/backend/internal/models"
	"github.com/flicket/backend/libs/auth/middleware"
	"github.com/flicket/backend/libs/handlers"
	"go.uber.org/zap"
)

// BaseHandler adds service error mapping to the shared JSON helpers
type BaseHandler struct {
	handlers.BaseHandler
}

func newBaseHandler(logger *zap.Logger) BaseHandler {
	return BaseHandler{BaseHandler: handlers.BaseHandler{Logger: logger}}
}

// respondServiceError maps the procedure error taxonomy to HTTP status codes.
// Unclassified errors are logged and answered with 500 "failed to <action>".
func (h *BaseHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, models.ErrBadRequest):
		h.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		h.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		h.RespondError(w, http.StatusUnauthorized, "unauthorized")
	default:
		h.Logger.Error("failed to "+action,
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		h.RespondError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

// callerID returns the authenticated user id, answering 401 when it is missing
func (h *BaseHandler) callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok || userID == "" {
		h.RespondError(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return userID, true
}
