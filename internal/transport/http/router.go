package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pollpick/internal/handler"
	"pollpick/internal/httputil"
	authmw "pollpick/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler         *handler.AuthHandler
	UserHandler         *handler.UserHandler
	FunctionsHandler    *handler.FunctionsHandler
	InstallationHandler *handler.InstallationHandler
	PhotoHandler        *handler.PhotoHandler
	JWTSecret           string
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public routes - no authentication required
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", cfg.AuthHandler.Register)
		r.Post("/login", cfg.AuthHandler.Login)
		r.Post("/refresh", cfg.AuthHandler.Refresh)
		r.Post("/anonymous", cfg.AuthHandler.Anonymous)
		r.Post("/facebook", cfg.AuthHandler.Facebook)
		r.Get("/verify-email", cfg.AuthHandler.VerifyEmail)
		r.Post("/logout", cfg.AuthHandler.Logout)
	})

	// Each function decides whether it needs a caller.
	r.With(authmw.OptionalAuthMiddleware(cfg.JWTSecret)).Post("/functions/{name}", cfg.FunctionsHandler.Call)

	r.Group(func(r chi.Router) {
		r.Use(authmw.OptionalAuthMiddleware(cfg.JWTSecret))
		r.Get("/users/{id}", cfg.UserHandler.GetProfile)
		r.Post("/installations", cfg.InstallationHandler.Register)
		r.Delete("/installations/{installationId}", cfg.InstallationHandler.Remove)
	})

	// Protected routes - require authentication
	r.Group(func(r chi.Router) {
		r.Use(authmw.AuthMiddleware(cfg.JWTSecret))

		r.Get("/me", cfg.UserHandler.Me)
		r.Patch("/me", cfg.UserHandler.UpdateMe)
		r.Post("/auth/logout-all", cfg.AuthHandler.LogoutAll)
		r.Post("/photos", cfg.PhotoHandler.Upload)
	})

	return r
}
