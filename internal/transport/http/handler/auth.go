package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	Authenticate(ctx context.Context, identity, password string) (domain.AuthToken, error)
	RevokeAuthToken(ctx context.Context, token string) error
}

type AuthHandler struct {
	authUsecase authUsecaser
	logger      *slog.Logger
}

func NewAuthHandler(authUsecase authUsecaser, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		logger:      logger.With("component", "auth_handler"),
	}
}

type loginRequest struct {
	Identity string `json:"identity" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newTokenResponse(t domain.Token) tokenResponse {
	return tokenResponse{Token: t.Value, ExpiresAt: t.ExpiresAt}
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tok, err := h.authUsecase.Authenticate(c.Request.Context(), req.Identity, req.Password)
	if err != nil {
		respondError(c, h.logger, "authenticate", err)
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(tok.Token))
}

// GET /auth/token runs behind the Auth middleware, which has already validated (and,
// for the Token header, extended) the token.
func (h *AuthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"account_id": c.GetString(middleware.AccountIDKey)})
}

// DELETE /auth/token
func (h *AuthHandler) Revoke(c *gin.Context) {
	token := c.GetHeader(middleware.TokenHeader)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrInvalidToken.Error()})
		return
	}
	if err := h.authUsecase.RevokeAuthToken(c.Request.Context(), token); err != nil {
		respondError(c, h.logger, "revoke auth token", err)
		return
	}
	c.Status(http.StatusNoContent)
}
