package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-relay/internal/apperror"
	"chat-relay/internal/logging"
)

// respondError maps an apperror kind to a status and writes {error[, details]}.
// Infrastructure failures are logged with their cause and answered with the
// fallback message only.
func respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	switch apperror.Kind(err) {
	case apperror.ErrValidation:
		status = http.StatusBadRequest
	case apperror.ErrUnauthorized:
		status = http.StatusUnauthorized
	case apperror.ErrConflict:
		status = http.StatusConflict
	case apperror.ErrNotFound:
		status = http.StatusNotFound
	}

	body := gin.H{"error": apperror.Message(err, fallback)}
	var appErr *apperror.AppError
	if status == http.StatusBadRequest && errors.As(err, &appErr) && appErr.Field != "" {
		body["details"] = appErr.Field
	}

	if status == http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).Error("request failed", "route", c.FullPath(), "error", err)
	}
	c.JSON(status, body)
}
