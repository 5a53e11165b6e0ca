package rest

import (
	"net/http"

	"socialcore/application/commands/bus"
	querybus "socialcore/application/queries/bus"
	"socialcore/infrastructure/config"
	"socialcore/interfaces/http/rest/handlers"
	"socialcore/interfaces/http/rest/middleware"
	"socialcore/pkg/auth"
	pkgerrors "socialcore/pkg/errors"
	"socialcore/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	limiter    auth.RateLimiter
	metrics    *observability.Metrics
	cfg        *config.Config
	logger     *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	limiter auth.RateLimiter,
	metrics *observability.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		limiter:    limiter,
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	errs := pkgerrors.NewErrorHandler(rt.logger, rt.cfg.IsDevelopment())
	h := handlers.NewHandler(rt.commandBus, rt.queryBus, errs, rt.logger)

	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(errs.Middleware)
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.Metrics(rt.metrics))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", middleware.UserIDHeader},
			ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			MaxAge:         300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	if rt.metrics != nil {
		router.Handle("/metrics", rt.metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(errs))
		if rt.limiter != nil {
			r.Use(middleware.RateLimit(rt.limiter, errs, rt.logger))
		}

		r.Post("/users", h.CreateUser)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/", h.GetUser)
			r.Post("/follow", h.Follow)
			r.Delete("/follow", h.Unfollow)
			r.Get("/followers", h.Followers)
			r.Post("/block", h.Block)
			r.Delete("/block", h.Unblock)
			r.Get("/posts", h.UserPosts)
			r.Get("/albums", h.Albums)
		})

		r.Route("/me", func(r chi.Router) {
			r.Put("/privacy", h.SetPrivacy)
			r.Post("/followers/{followerID}/accept", h.AcceptFollower)
			r.Post("/followers/{followerID}/deny", h.DenyFollower)
			r.Get("/feed", h.Feed)
			r.Get("/stories", h.Stories)
			r.Get("/cards", h.Cards)
			r.Delete("/cards/{cardID}", h.DismissCard)
		})

		r.Post("/posts", h.CreatePost)
		r.Route("/posts/{postID}", func(r chi.Router) {
			r.Get("/", h.GetPost)
			r.Delete("/", h.DeletePost)
			r.Put("/album", h.SetAlbum)
			r.Put("/position", h.MovePost)
			r.Put("/expiry", h.SetExpiry)
			r.Post("/likes", h.Like)
			r.Delete("/likes", h.Dislike)
			r.Post("/views", h.View)
			r.Get("/comments", h.Comments)
			r.Post("/comments", h.AddComment)
			r.Post("/flags", h.FlagPost)
			r.Post("/{action:complete|archive|restore}", h.PostLifecycle)
		})
		r.Delete("/comments/{commentID}", h.DeleteComment)

		r.Post("/albums", h.CreateAlbum)
		r.Delete("/albums/{albumID}", h.DeleteAlbum)
		r.Get("/albums/{albumID}/order", h.AlbumOrder)

		r.Route("/chats", func(r chi.Router) {
			r.Post("/direct", h.CreateDirectChat)
			r.Post("/group", h.CreateGroupChat)
			r.Route("/{chatID}", func(r chi.Router) {
				r.Get("/", h.GetChat)
				r.Post("/members", h.AddMember)
				r.Delete("/members/me", h.LeaveChat)
				r.Get("/messages", h.Messages)
				r.Post("/messages", h.SendMessage)
				r.Post("/view", h.ViewChat)
			})
		})
		r.Delete("/messages/{messageID}", h.DeleteMessage)
		r.Post("/messages/{messageID}/flags", h.FlagMessage)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
