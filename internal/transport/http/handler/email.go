package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

type emailUsecaser interface {
	IssueEmailChangeToken(ctx context.Context, accountID, newIdentity string) (domain.Token, error)
	CompleteEmailChange(ctx context.Context, token string) (*domain.Account, error)
}

type EmailHandler struct {
	emailUsecase emailUsecaser
	logger       *slog.Logger
}

func NewEmailHandler(emailUsecase emailUsecaser, logger *slog.Logger) *EmailHandler {
	return &EmailHandler{
		emailUsecase: emailUsecase,
		logger:       logger.With("component", "email_handler"),
	}
}

// Email syntax is checked by the use case so the failure maps to ErrInvalidEmail.
type emailChangeRequest struct {
	Email string `json:"email" binding:"required"`
}

// POST /accounts/me/email
func (h *EmailHandler) RequestChange(c *gin.Context) {
	var req emailChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	accountID := c.GetString(middleware.AccountIDKey)
	tok, err := h.emailUsecase.IssueEmailChangeToken(c.Request.Context(), accountID, req.Email)
	if err != nil {
		respondError(c, h.logger, "issue email change token", err)
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(tok))
}

type completeEmailChangeRequest struct {
	Token string `json:"token" binding:"required"`
}

// POST /email-change/complete
func (h *EmailHandler) CompleteChange(c *gin.Context) {
	var req completeEmailChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acc, err := h.emailUsecase.CompleteEmailChange(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, h.logger, "complete email change", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": acc.ID, "identity": acc.Identity})
}
