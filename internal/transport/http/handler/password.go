package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/transport/http/middleware"
	"github.com/ErlanBelekov/account-lifecycle/internal/usecase"
	"github.com/gin-gonic/gin"
)

type passwordUsecaser interface {
	IssuePasswordResetToken(ctx context.Context, identity string) (*usecase.ResetIssue, error)
	CompletePasswordReset(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, accountID, current, newPassword string) (domain.AuthToken, error)
}

type PasswordHandler struct {
	passwordUsecase passwordUsecaser
	logger          *slog.Logger
}

func NewPasswordHandler(passwordUsecase passwordUsecaser, logger *slog.Logger) *PasswordHandler {
	return &PasswordHandler{
		passwordUsecase: passwordUsecase,
		logger:          logger.With("component", "password_handler"),
	}
}

type resetRequest struct {
	Identity string `json:"identity" binding:"required"`
}

// POST /password-reset
// The token goes back to the caller (the front end service), which mails it on.
func (h *PasswordHandler) RequestReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	issue, err := h.passwordUsecase.IssuePasswordResetToken(c.Request.Context(), req.Identity)
	if err != nil {
		respondError(c, h.logger, "issue password reset token", err)
		return
	}
	if issue.Token == nil {
		c.JSON(http.StatusOK, gin.H{"activation_token": issue.ActivationToken})
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(*issue.Token))
}

type completeResetRequest struct {
	Token    string `json:"token"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /password-reset/complete
func (h *PasswordHandler) CompleteReset(c *gin.Context) {
	var req completeResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.passwordUsecase.CompletePasswordReset(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, h.logger, "complete password reset", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type changePasswordRequest struct {
	Current  string `json:"current_password" binding:"required"`
	Password string `json:"new_password"     binding:"required"`
}

// POST /accounts/me/password
func (h *PasswordHandler) Change(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	accountID := c.GetString(middleware.AccountIDKey)
	tok, err := h.passwordUsecase.ChangePassword(c.Request.Context(), accountID, req.Current, req.Password)
	if err != nil {
		respondError(c, h.logger, "change password", err)
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(tok.Token))
}
