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

type profileUsecaser interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	Save(ctx context.Context, userID string, expected time.Time, upd usecase.ProfileUpdate) (*domain.Profile, error)
}

type ProfileHandler struct {
	profileUsecase profileUsecaser
	logger         *slog.Logger
}

func NewProfileHandler(profileUsecase profileUsecaser, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profileUsecase: profileUsecase,
		logger:         logger.With("component", "profile_handler"),
	}
}

type profileResponse struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Name      map[string]any `json:"name,omitempty"`
	Address   map[string]any `json:"address,omitempty"`
	DOB       map[string]any `json:"dob,omitempty"`
	Email     string         `json:"email,omitempty"`
}

func newProfileResponse(p *domain.Profile) profileResponse {
	return profileResponse{
		ID:        p.ID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Name:      p.Name,
		Address:   p.Address,
		DOB:       p.DOB,
		Email:     p.Email,
	}
}

// GET /profile
func (h *ProfileHandler) Get(c *gin.Context) {
	p, err := h.profileUsecase.Get(c.Request.Context(), c.GetString(middleware.AccountIDKey))
	if err != nil {
		respondError(c, h.logger, "get profile", err)
		return
	}
	c.JSON(http.StatusOK, newProfileResponse(p))
}

type saveProfileRequest struct {
	UpdatedAt *time.Time     `json:"updated_at"`
	Name      map[string]any `json:"name"`
	Address   map[string]any `json:"address"`
	DOB       map[string]any `json:"dob"`
	Email     *string        `json:"email"`
}

// PUT /profile
func (h *ProfileHandler) Save(c *gin.Context) {
	var req saveProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var expected time.Time
	if req.UpdatedAt != nil {
		expected = *req.UpdatedAt
	}

	p, err := h.profileUsecase.Save(c.Request.Context(), c.GetString(middleware.AccountIDKey), expected, usecase.ProfileUpdate{
		Name:    req.Name,
		Address: req.Address,
		DOB:     req.DOB,
		Email:   req.Email,
	})
	if err != nil {
		respondError(c, h.logger, "save profile", err)
		return
	}
	c.JSON(http.StatusOK, newProfileResponse(p))
}
