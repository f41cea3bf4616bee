package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/transport/http/middleware"
	"github.com/ErlanBelekov/account-lifecycle/internal/usecase"
	"github.com/gin-gonic/gin"
)

type accountUsecaser interface {
	Register(ctx context.Context, identity, password string) (string, error)
	Activate(ctx context.Context, activationToken string) error
	Delete(ctx context.Context, accountID string, reason domain.DeletionReason) error
	LookupByIdentity(ctx context.Context, identity string) (*usecase.AccountStatus, error)
}

type AccountHandler struct {
	accountUsecase accountUsecaser
	logger         *slog.Logger
}

func NewAccountHandler(accountUsecase accountUsecaser, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accountUsecase: accountUsecase,
		logger:         logger.With("component", "account_handler"),
	}
}

type registerRequest struct {
	Identity string `json:"identity" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /accounts
func (h *AccountHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	activation, err := h.accountUsecase.Register(c.Request.Context(), req.Identity, req.Password)
	if err != nil {
		respondError(c, h.logger, "register account", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"activation_token": activation})
}

type activateRequest struct {
	ActivationToken string `json:"activation_token" binding:"required"`
}

// POST /accounts/activate
func (h *AccountHandler) Activate(c *gin.Context) {
	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.accountUsecase.Activate(c.Request.Context(), req.ActivationToken); err != nil {
		respondError(c, h.logger, "activate account", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /accounts/me
func (h *AccountHandler) Delete(c *gin.Context) {
	accountID := c.GetString(middleware.AccountIDKey)
	if err := h.accountUsecase.Delete(c.Request.Context(), accountID, domain.ReasonUserRequested); err != nil {
		respondError(c, h.logger, "delete account", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type accountStatusResponse struct {
	ID          string     `json:"id,omitempty"`
	Identity    string     `json:"identity,omitempty"`
	Activated   bool       `json:"activated"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	IsDeleted   bool       `json:"is_deleted"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}

// GET /accounts?identity=
func (h *AccountHandler) Lookup(c *gin.Context) {
	identity := c.Query("identity")
	if identity == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identity is required"})
		return
	}

	status, err := h.accountUsecase.LookupByIdentity(c.Request.Context(), identity)
	if err != nil {
		respondError(c, h.logger, "lookup account", err)
		return
	}

	if status.Deleted != nil {
		deletedAt := status.DeletedAt()
		c.JSON(http.StatusOK, accountStatusResponse{
			IsDeleted: true,
			DeletedAt: &deletedAt,
			Reason:    string(status.Deleted.Reason),
		})
		return
	}

	acc := status.Account
	c.JSON(http.StatusOK, accountStatusResponse{
		ID:          acc.ID,
		Identity:    acc.Identity,
		Activated:   acc.IsActive(),
		LastLogin:   acc.LastLogin,
		CreatedAt:   &acc.CreatedAt,
		ActivatedAt: acc.ActivatedAt,
	})
}
