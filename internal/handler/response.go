package handler

// Every mutation answers with an ActionResult: {"ok":true} on success or
// {"error":"<message>"} on failure. The message is always safe to show; for
// anything that is not an *apperror.AppError it is a fixed generic string and
// the detail goes to the log only.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/smart-bookmarks/internal/apperror"
	"github.com/sakif/smart-bookmarks/internal/model"
)

const genericErrorMessage = "Something went wrong. Please try again."

// ActionResult is the response body of add and delete.
type ActionResult struct {
	OK       bool            `json:"ok,omitempty"`
	Error    string          `json:"error,omitempty"`
	Field    string          `json:"field,omitempty"`
	Bookmark *model.Bookmark `json:"bookmark,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; nothing left but to log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to a status code and an ActionResult.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
		}

		writeJSON(w, status, ActionResult{Error: appErr.Message, Field: appErr.Field})
		return
	}

	logger.Error("request failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ActionResult{Error: genericErrorMessage})
}
