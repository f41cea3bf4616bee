package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/gin-gonic/gin"
)

const errInternalServer = "Internal server error"

// statusFor maps expected failures to a status. Anything unlisted is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAccountNotActive):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, domain.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, domain.ErrApplicationLocked):
		return http.StatusLocked
	case errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrUsernameUnchanged),
		errors.Is(err, domain.ErrInvalidPassword):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrApplicationNotFound),
		errors.Is(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, logger *slog.Logger, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(c.Request.Context(), msg, "error", err)
		c.JSON(status, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
