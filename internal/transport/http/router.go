package httptransport

import (
	"log/slog"

	"github.com/ErlanBelekov/account-lifecycle/internal/transport/http/handler"
	"github.com/ErlanBelekov/account-lifecycle/internal/transport/http/middleware"
	"github.com/ErlanBelekov/account-lifecycle/internal/usecase"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

type Handlers struct {
	Auth        *handler.AuthHandler
	Account     *handler.AccountHandler
	Password    *handler.PasswordHandler
	Email       *handler.EmailHandler
	Application *handler.ApplicationHandler
	Profile     *handler.ProfileHandler
}

// NewRouter wires every route. serviceToken guards the routes only the front-end service
// may call: registration returns the activation token, lookup answers for any identity and
// a reset request on a pending account returns its activation token.
func NewRouter(logger *slog.Logger, h Handlers, auth *usecase.AuthUsecase, serviceToken string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	authMW := middleware.Auth(auth, logger)
	serviceMW := middleware.Service(serviceToken)

	// Public routes
	r.POST("/auth/login", h.Auth.Login)
	r.DELETE("/auth/token", h.Auth.Revoke)
	r.POST("/accounts/activate", h.Account.Activate)
	r.POST("/password-reset/complete", h.Password.CompleteReset)
	r.POST("/email-change/complete", h.Email.CompleteChange)

	// Service routes
	r.POST("/accounts", serviceMW, h.Account.Register)
	r.GET("/accounts", serviceMW, h.Account.Lookup)
	r.POST("/password-reset", serviceMW, h.Password.RequestReset)

	r.GET("/auth/token", authMW, h.Auth.Check)

	me := r.Group("/accounts/me", authMW)
	me.DELETE("", h.Account.Delete)
	me.POST("/password", h.Password.Change)
	me.POST("/email", h.Email.RequestChange)

	apps := r.Group("/applications", authMW)
	apps.POST("", h.Application.Create)
	apps.DELETE("", h.Application.DeleteAll)
	apps.GET("/:id", h.Application.Get)
	apps.PATCH("/:id", h.Application.Patch)
	apps.DELETE("/:id", h.Application.Delete)

	profile := r.Group("/profile", authMW)
	profile.GET("", h.Profile.Get)
	profile.PUT("", h.Profile.Save)

	return r
}

// NewHandlers builds every handler from its use case.
func NewHandlers(
	logger *slog.Logger,
	auth *usecase.AuthUsecase,
	accounts *usecase.AccountUsecase,
	passwords *usecase.PasswordUsecase,
	email *usecase.EmailUsecase,
	applications *usecase.ApplicationUsecase,
	profiles *usecase.ProfileUsecase,
) Handlers {
	return Handlers{
		Auth:        handler.NewAuthHandler(auth, logger),
		Account:     handler.NewAccountHandler(accounts, logger),
		Password:    handler.NewPasswordHandler(passwords, logger),
		Email:       handler.NewEmailHandler(email, logger),
		Application: handler.NewApplicationHandler(applications, logger),
		Profile:     handler.NewProfileHandler(profiles, logger),
	}
}
