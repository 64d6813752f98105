package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bookineo/bookineo/pkg/health"
	"github.com/bookineo/bookineo/pkg/middleware"
	"github.com/bookineo/bookineo/services/api/internal/auth"
	"github.com/bookineo/bookineo/services/api/internal/service"
)

// Services bundles the business services the router exposes.
type Services struct {
	Auth      *service.AuthService
	Users     *service.UserService
	Boxes     *service.BoxService
	Favorites *service.FavoriteService
	Visits    *service.VisitService
}

// RouterConfig holds transport-level settings.
type RouterConfig struct {
	CORS           middleware.CORSConfig
	AuthRateRPS    float64
	AuthRateBurst  int
	MaxUploadBytes int64
	// Media serves /media/* when blobs are kept in process. Nil disables it.
	Media http.Handler
}

// NewRouter creates a chi router with every API route registered. ctx bounds
// the lifetime of the rate limiter's background cleanup.
func NewRouter(
	ctx context.Context,
	svcs Services,
	jwtManager *auth.JWTManager,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing("bookineo-api"))
	r.Use(middleware.PrometheusMetrics("api"))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if cfg.Media != nil {
		r.With(middleware.CacheControl(3600)).Handle("/media/*", cfg.Media)
	}

	tokenValidator := func(token string) (*middleware.Claims, error) {
		claims, err := jwtManager.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{UserID: claims.UserID, Email: claims.Email, Tier: claims.Tier}, nil
	}
	requireAuth := middleware.Auth(tokenValidator)

	authHandler := NewAuthHandler(svcs.Auth, logger)
	userHandler := NewUserHandler(svcs.Users, cfg.MaxUploadBytes, logger)
	boxHandler := NewBoxHandler(svcs.Boxes, cfg.MaxUploadBytes, logger)
	favoriteHandler := NewFavoriteHandler(svcs.Favorites, logger)
	visitHandler := NewVisitHandler(svcs.Visits, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.NoStore)

		r.Get("/plans", ListPlans)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(ctx, cfg.AuthRateRPS, cfg.AuthRateBurst, logger))
				r.Use(middleware.RequestLogger(logger))

				r.Post("/signup", authHandler.SignUp)
				r.Post("/signin", authHandler.SignIn)
				r.Post("/refresh", authHandler.Refresh)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Use(middleware.RequestLogger(logger))

				r.Post("/signout", authHandler.SignOut)
				r.Get("/session", authHandler.Session)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RequestLogger(logger))

			r.Route("/users", func(r chi.Router) {
				r.Get("/me", userHandler.Me)
				r.Patch("/me", userHandler.UpdateMe)
				r.Delete("/me", userHandler.DeleteMe)
				r.Put("/me/avatar", userHandler.UploadAvatar)
				r.Get("/me/favorites", favoriteHandler.List)
				r.Get("/by-username/{username}", userHandler.GetByUsername)
				r.Get("/{id}", userHandler.Get)
				r.Get("/{id}/boxes", boxHandler.ListByUser)
			})

			r.Route("/boxes", func(r chi.Router) {
				r.Get("/", boxHandler.List)
				r.Post("/", boxHandler.Create)
				r.Get("/count", boxHandler.Count)
				r.Post("/images", boxHandler.UploadImage)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", boxHandler.Get)
					r.Patch("/", boxHandler.Update)
					r.Delete("/", boxHandler.Delete)

					r.Get("/favorite", favoriteHandler.Status)
					r.Put("/favorite", favoriteHandler.Add)
					r.Delete("/favorite", favoriteHandler.Remove)

					r.Get("/visits", visitHandler.List)
					r.Post("/visits", visitHandler.Record)
					r.Get("/visits/me", visitHandler.Mine)
				})
			})
		})
	})

	return r
}
