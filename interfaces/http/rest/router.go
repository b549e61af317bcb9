package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ping/infrastructure/config"
	"ping/interfaces/http/rest/handlers"
	"ping/interfaces/http/rest/middleware"
	"ping/interfaces/ws"
	"ping/pkg/auth"
)

// publicRoutes is the authentication allowlist. Entries ending in "/" match
// as prefixes, the rest match exactly. Everything else requires a valid
// identity in the request context.
var publicRoutes = []string{
	"/api/auth/",
	"/uploads/",
	"/ws",
	"/topic/",
	"/app/",
	"/health",
	"/metrics",
}

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth          *handlers.AuthHandler
	Friends       *handlers.FriendsHandler
	Posts         *handlers.PostsHandler
	Notifications *handlers.NotificationsHandler
	Admin         *handlers.AdminHandler
	WebSocket     *ws.Server
}

// NewRouter assembles the HTTP surface: the middleware chain with the token
// gate, the REST API, the WebSocket upgrade endpoint, static uploads and the
// operational endpoints.
func NewRouter(
	cfg *config.Config,
	tokens *auth.TokenService,
	registry *prometheus.Registry,
	h Handlers,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(logger))

	if cfg.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Use(middleware.RateLimitByIP(auth.NewRateLimiter(cfg.IPRateLimit)))
	r.Use(middleware.Authenticate(tokens, logger))
	r.Use(middleware.Authorize(publicRoutes, logger))
	r.Use(middleware.RateLimitByUser(auth.NewRateLimiter(cfg.UserRateLimit)))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
	})

	if cfg.EnableMetrics {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Get("/ws", h.WebSocket.HandleConnection)

	fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadsDir)))
	r.Get("/uploads/*", fileServer.ServeHTTP)

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/register", h.Auth.Register)
			ar.Post("/login", h.Auth.Login)
		})
		api.Get("/me", h.Auth.Me)

		api.Route("/friends", func(fr chi.Router) {
			fr.Get("/", h.Friends.List)
			fr.Get("/pending", h.Friends.Pending)
			fr.Get("/suggestions", h.Friends.Suggestions)
			fr.Post("/requests", h.Friends.SendRequest)
			fr.Post("/requests/{id}/respond", h.Friends.Respond)
			fr.Delete("/{id}", h.Friends.Unfriend)
		})

		api.Route("/posts", func(pr chi.Router) {
			pr.Post("/", h.Posts.Create)
			pr.Post("/{id}/comments", h.Posts.Comment)
		})

		api.Route("/notifications", func(nr chi.Router) {
			nr.Get("/", h.Notifications.List)
			nr.Get("/unread", h.Notifications.Unread)
			nr.Patch("/{id}/read", h.Notifications.MarkRead)
			nr.Delete("/{id}", h.Notifications.Delete)
		})

		api.Route("/admin", func(adm chi.Router) {
			adm.Use(middleware.RequireRole(auth.RoleAdmin))
			adm.Get("/users", h.Admin.ListUsers)
		})
	})

	return r
}
