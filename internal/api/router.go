package api

import (
	"log/slog"
	"net/http"

	"github.com/ambroise/taskforge/internal/api/handlers"
	"github.com/ambroise/taskforge/internal/api/middleware"
	"github.com/ambroise/taskforge/internal/auth"
	"github.com/ambroise/taskforge/internal/authz"
	"github.com/ambroise/taskforge/internal/dashboard"
	"github.com/ambroise/taskforge/internal/lifecycle"
	"github.com/ambroise/taskforge/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	AuthService    *auth.Service
	AvatarStore    *storage.AvatarStore
	AsynqClient    *asynq.Client
	BaseURL        string   // public base URL for invitation links
	UploadsDir     string   // local directory served under /uploads
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	// Rate limiting - applied globally to prevent abuse
	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	// CORS - restrict to configured origins, or allow all in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		// Default to localhost for development - configure in production
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Auth-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize services
	checker := authz.NewChecker(cfg.DB)
	lifecycleService := lifecycle.NewService(cfg.DB, cfg.Logger)
	dashboardService := dashboard.NewService(cfg.DB, checker)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService)
	orgHandler := handlers.NewOrganizationHandler(cfg.DB, checker, lifecycleService)
	teamHandler := handlers.NewTeamHandler(cfg.DB, checker, lifecycleService)
	teamMemberHandler := handlers.NewTeamMemberHandler(cfg.DB, checker)
	projectHandler := handlers.NewProjectHandler(cfg.DB, checker, lifecycleService)
	projectMemberHandler := handlers.NewProjectMemberHandler(cfg.DB, checker)
	sprintHandler := handlers.NewSprintHandler(cfg.DB, checker)
	taskHandler := handlers.NewTaskHandler(cfg.DB, checker)
	invitationHandler := handlers.NewInvitationHandler(cfg.DB, checker, cfg.AsynqClient, cfg.BaseURL)
	profileHandler := handlers.NewProfileHandler(cfg.DB, cfg.AuthService, cfg.AvatarStore)
	notificationHandler := handlers.NewNotificationHandler(cfg.DB)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))
			r.Use(checker.Identity)

			r.Get("/me", authHandler.Me)

			// Organization endpoints
			r.Route("/organizations", func(r chi.Router) {
				r.Get("/", orgHandler.List)
				r.Post("/", orgHandler.Create)
				r.Get("/{id}", orgHandler.Get)
				r.Put("/{id}", orgHandler.Update)
				r.Delete("/{id}", orgHandler.Delete)
			})

			// Team endpoints
			r.Route("/teams", func(r chi.Router) {
				r.Get("/", teamHandler.List)
				r.Post("/", teamHandler.Create)
				r.Get("/{id}", teamHandler.Get)
				r.Put("/{id}", teamHandler.Update)
				r.Delete("/{id}", teamHandler.Delete)

				r.Route("/{id}/members", func(r chi.Router) {
					r.Get("/", teamMemberHandler.List)
					r.Post("/", teamMemberHandler.Add)
					r.Get("/search", teamMemberHandler.SearchUsers)
					r.Put("/{userID}", teamMemberHandler.UpdateRole)
					r.Delete("/{userID}", teamMemberHandler.Remove)
				})
			})

			// Project endpoints
			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectHandler.List)
				r.Post("/", projectHandler.Create)
				r.Get("/{id}", projectHandler.Get)
				r.Put("/{id}", projectHandler.Update)
				r.Delete("/{id}", projectHandler.Delete)
				r.Get("/{id}/sprints", sprintHandler.ListByProject)

				r.Route("/{id}/members", func(r chi.Router) {
					r.Get("/", projectMemberHandler.List)
					r.Post("/", projectMemberHandler.Add)
					r.Put("/{userID}", projectMemberHandler.UpdateRole)
					r.Delete("/{userID}", projectMemberHandler.Remove)
				})
			})

			// Sprint endpoints
			r.Route("/sprints", func(r chi.Router) {
				r.Get("/", sprintHandler.List)
				r.Post("/", sprintHandler.Create)
				r.Get("/{id}", sprintHandler.Get)
				r.Put("/{id}", sprintHandler.Update)
				r.Delete("/{id}", sprintHandler.Delete)
			})

			// Task endpoints
			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", taskHandler.List)
				r.Post("/", taskHandler.Create)
				r.Get("/{id}", taskHandler.Get)
				r.Put("/{id}", taskHandler.Update)
				r.Delete("/{id}", taskHandler.Delete)

				r.Get("/{id}/comments", taskHandler.ListComments)
				r.Post("/{id}/comments", taskHandler.AddComment)
				r.Get("/{id}/attachments", taskHandler.ListAttachments)
				r.Post("/{id}/attachments", taskHandler.AddAttachment)
			})

			// Invitation endpoints
			r.Route("/invitations", func(r chi.Router) {
				r.Post("/", invitationHandler.Create)
				r.Post("/accept/{token}", invitationHandler.Accept)
			})

			// Profile endpoints
			r.Route("/profile", func(r chi.Router) {
				r.Get("/", profileHandler.Get)
				r.Put("/", profileHandler.Update)
				r.Post("/avatar", profileHandler.UploadAvatar)
				r.Post("/password", profileHandler.ChangePassword)
			})

			// Notification endpoints
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationHandler.List)
				r.Post("/{id}/read", notificationHandler.MarkRead)
				r.Post("/read-all", notificationHandler.MarkAllRead)
			})

			// Dashboard
			r.Get("/dashboard", dashboardHandler.Stats)
		})
	})

	// Uploaded files (avatars)
	if cfg.UploadsDir != "" {
		fileServer := http.FileServer(http.Dir(cfg.UploadsDir))
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", fileServer))
	}

	return &Router{r}
}
