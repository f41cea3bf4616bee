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

type applicationUsecaser interface {
	Create(ctx context.Context, userID string) (*domain.Application, error)
	Fetch(ctx context.Context, userID, id string) (*domain.Application, error)
	Patch(ctx context.Context, userID, id string, expected time.Time, p usecase.ApplicationPatch) (*domain.Application, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteAll(ctx context.Context, userID string) (int, error)
}

type ApplicationHandler struct {
	applicationUsecase applicationUsecaser
	logger             *slog.Logger
}

func NewApplicationHandler(applicationUsecase applicationUsecaser, logger *slog.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		applicationUsecase: applicationUsecase,
		logger:             logger.With("component", "application_handler"),
	}
}

type applicationResponse struct {
	ID               string         `json:"id"`
	StartedAt        time.Time      `json:"started_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	Locked           bool           `json:"locked"`
	LockedAt         *time.Time     `json:"locked_at,omitempty"`
	Document         map[string]any `json:"document,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Payment          map[string]any `json:"payment,omitempty"`
	RepeatCaseNumber *int64         `json:"repeat_case_number,omitempty"`
}

func newApplicationResponse(a *domain.Application) applicationResponse {
	return applicationResponse{
		ID:               a.ID,
		StartedAt:        a.StartedAt,
		UpdatedAt:        a.UpdatedAt,
		Locked:           a.Locked,
		LockedAt:         a.LockedAt,
		Document:         a.Document,
		Metadata:         a.Metadata,
		Payment:          a.Payment,
		RepeatCaseNumber: a.RepeatCaseNumber,
	}
}

// POST /applications
func (h *ApplicationHandler) Create(c *gin.Context) {
	app, err := h.applicationUsecase.Create(c.Request.Context(), c.GetString(middleware.AccountIDKey))
	if err != nil {
		respondError(c, h.logger, "create application", err)
		return
	}
	c.JSON(http.StatusCreated, newApplicationResponse(app))
}

// GET /applications/:id
func (h *ApplicationHandler) Get(c *gin.Context) {
	app, err := h.applicationUsecase.Fetch(c.Request.Context(), c.GetString(middleware.AccountIDKey), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "fetch application", err)
		return
	}
	c.JSON(http.StatusOK, newApplicationResponse(app))
}

// patchApplicationRequest carries the version the caller last read as updated_at;
// omitting it writes against whatever is stored now.
type patchApplicationRequest struct {
	UpdatedAt        *time.Time     `json:"updated_at"`
	Document         map[string]any `json:"document"`
	Metadata         map[string]any `json:"metadata"`
	Payment          map[string]any `json:"payment"`
	RepeatCaseNumber *int64         `json:"repeat_case_number"`
	Lock             bool           `json:"lock"`
}

// PATCH /applications/:id
func (h *ApplicationHandler) Patch(c *gin.Context) {
	var req patchApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var expected time.Time
	if req.UpdatedAt != nil {
		expected = *req.UpdatedAt
	}

	app, err := h.applicationUsecase.Patch(c.Request.Context(), c.GetString(middleware.AccountIDKey), c.Param("id"), expected, usecase.ApplicationPatch{
		Document:         req.Document,
		Metadata:         req.Metadata,
		Payment:          req.Payment,
		RepeatCaseNumber: req.RepeatCaseNumber,
		Lock:             req.Lock,
	})
	if err != nil {
		respondError(c, h.logger, "patch application", err)
		return
	}
	c.JSON(http.StatusOK, newApplicationResponse(app))
}

// DELETE /applications/:id
func (h *ApplicationHandler) Delete(c *gin.Context) {
	if err := h.applicationUsecase.Delete(c.Request.Context(), c.GetString(middleware.AccountIDKey), c.Param("id")); err != nil {
		respondError(c, h.logger, "delete application", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /applications
func (h *ApplicationHandler) DeleteAll(c *gin.Context) {
	n, err := h.applicationUsecase.DeleteAll(c.Request.Context(), c.GetString(middleware.AccountIDKey))
	if err != nil {
		respondError(c, h.logger, "delete applications", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
