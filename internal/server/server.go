// Package server contains the HTTP handlers for the blogging API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	_ "inkwell/docs" // swagger docs
	"inkwell/internal/auth"
	"inkwell/internal/bootstrap"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/featureflags"
	"inkwell/internal/mailer"
	"inkwell/internal/media"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
)

// pinger is a backend the readiness probe checks.
type pinger interface {
	Ping(ctx context.Context) error
}

// Repositories groups the document stores the services run on.
type Repositories struct {
	Users      repository.UserRepository
	Posts      repository.PostRepository
	Comments   repository.CommentRepository
	Categories repository.TaxonomyRepository
	Tags       repository.TaxonomyRepository
}

// Backends are the non-store collaborators of the services.
type Backends struct {
	Tx     database.Transactor
	Media  media.Host
	Mailer mailer.Mailer
}

// Server holds all dependencies and provides handlers
type Server struct {
	config          *config.Config
	runtime         *bootstrap.Runtime
	mongo           pinger
	redis           *redis.Client
	app             *fiber.App
	promMiddleware  *fiberprometheus.FiberPrometheus
	shutdownCtx     context.Context
	shutdownFn      context.CancelFunc
	tokens          *auth.TokenManager
	notifier        *notifications.Notifier
	featureFlags    *featureflags.Manager
	uploadMaxBytes  int64
	postService     *service.PostService
	commentService  *service.CommentService
	userService     *service.UserService
	categoryService *service.TaxonomyService
	tagService      *service.TaxonomyService
}

// NewServer connects every backend and creates a server instance.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{EnsureIndexes: true})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, rt)
}

// NewServerWithDeps creates a Server using an already-initialized runtime.
func NewServerWithDeps(cfg *config.Config, rt *bootstrap.Runtime) (*Server, error) {
	if rt == nil || rt.DB == nil {
		return nil, errors.New("runtime without a database")
	}
	db := rt.DB.Database
	repos := Repositories{
		Users:      repository.NewUserRepository(db),
		Posts:      repository.NewPostRepository(db),
		Comments:   repository.NewCommentRepository(db),
		Categories: repository.NewCategoryRepository(db),
		Tags:       repository.NewTagRepository(db),
	}
	s := newServer(cfg, rt.Redis, repos, Backends{Tx: rt.Tx, Media: rt.Media, Mailer: rt.Mailer})
	s.runtime = rt
	s.mongo = rt.DB
	s.promMiddleware = middleware.InitMetrics("inkwell-api")
	return s, nil
}

// newServer wires the services over the given stores. The Redis client may be
// nil, which disables caching, revocation and notifications.
func newServer(cfg *config.Config, redisClient *redis.Client, repos Repositories, b Backends) *Server {
	maxMB := cfg.UploadMaxSizeMB
	if maxMB <= 0 {
		maxMB = media.DefaultMaxUploadSizeMB
	}
	expiry := time.Duration(cfg.JWTExpiryHours) * time.Hour
	if expiry <= 0 {
		expiry = 7 * 24 * time.Hour
	}

	var revocations auth.RevocationStore
	var notifier *notifications.Notifier
	if redisClient != nil {
		revocations = auth.RedisRevocations{}
		notifier = notifications.NewNotifier(redisClient)
	}

	s := &Server{
		config:         cfg,
		redis:          redisClient,
		tokens:         auth.NewTokenManager(cfg.JWTSecret, expiry, revocations),
		notifier:       notifier,
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		uploadMaxBytes: int64(maxMB) << 20,
	}

	uploads := service.UploadPolicy{Host: b.Media, Folder: cfg.MediaFolder, MaxBytes: s.uploadMaxBytes}
	integrity := service.NewIntegrityManager(b.Tx, repos.Users, repos.Posts, repos.Comments, b.Media)
	s.categoryService = service.NewTaxonomyService(repos.Categories, integrity)
	s.tagService = service.NewTaxonomyService(repos.Tags, integrity)
	s.postService = service.NewPostService(repos.Posts, repos.Users, repos.Comments,
		s.categoryService, s.tagService, integrity, uploads, notifier, s.featureFlags)
	s.commentService = service.NewCommentService(repos.Comments, repos.Posts, repos.Users, integrity)
	s.userService = service.NewUserService(repos.Users, s.postService, integrity, s.tokens,
		b.Mailer, uploads, cfg.FrontendURL)
	return s
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and Trace ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Inkwell Backend Metrics Dashboard",
	}))

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	v1 := api.Group("/v1")

	// User routes
	user := v1.Group("/user", middleware.ServiceTracing("users"))
	user.Post("/register", middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "register"), s.Register)
	user.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	user.Get("/logout", s.OptionalAuth(), s.Logout)
	user.Post("/forgot-password", middleware.RateLimit(
		s.redis, 3, 15*time.Minute, "forgot_password"), s.ForgotPassword)
	user.Post("/reset-password/:resetToken", s.ResetPassword)
	user.Get("/me", s.AuthRequired(), s.Me)
	user.Post("/changepassword", s.AuthRequired(), s.ChangePassword)
	user.Put("/update/:id", s.AuthRequired(), s.UpdateProfile)
	user.Post("/bookmark/:postId", s.AuthRequired(), s.ToggleBookmark)
	user.Get("/getbookmarkpost", s.AuthRequired(), s.GetBookmarks)

	// Post routes. Specific paths are registered before the generic /:id ones.
	post := v1.Group("/post", middleware.ServiceTracing("posts"))
	post.Post("/create", s.AuthRequired(), middleware.RateLimit(
		s.redis, 10, 10*time.Minute, "create_post"), s.CreatePost)
	post.Get("/all", s.GetPosts)
	post.Get("/filtersearch", s.SearchPosts)
	post.Get("/getpost/:id", s.OptionalAuth(), s.GetPost)
	post.Get("/related/:id", s.AuthRequired(), s.GetRelatedPosts)
	post.Put("/:id/views", s.AuthRequired(), s.IncrementViews)
	post.Post("/:id/like", s.AuthRequired(), s.ToggleLike)
	post.Post("/:id/comment", s.AuthRequired(), middleware.RateLimit(
		s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	post.Get("/:id/comment", s.AuthRequired(), s.GetComments)
	post.Put("/:id", s.AuthRequired(), s.UpdatePost)
	post.Delete("/:id", s.AuthRequired(), s.DeletePost)

	// Comment routes
	comment := v1.Group("/comment", middleware.ServiceTracing("comments"))
	comment.Get("/get/:id", s.AuthRequired(), s.GetComment)
	comment.Put("/update/:id", s.AuthRequired(), s.UpdateComment)
	comment.Delete("/delete/:id", s.AuthRequired(), s.DeleteComment)

	// Taxonomy routes
	category := v1.Group("/category", middleware.ServiceTracing("categories"))
	category.Get("/all", s.ListCategories)
	category.Get("/get/:id", s.GetCategory)

	tag := v1.Group("/tag", middleware.ServiceTracing("tags"))
	tag.Get("/all", s.ListTags)
	tag.Get("/:id", s.GetTag)

	// Admin routes. get/delete of a user also admit the account owner.
	admin := v1.Group("/admin", middleware.ServiceTracing("admin"), s.AuthRequired())
	admin.Get("/all", s.AdminRequired(), s.GetAllUsers)
	admin.Get("/get/:id", s.GetUser)
	admin.Delete("/delete/:id", s.DeleteUser)
	admin.Get("/allcomment", s.AdminRequired(), s.GetAllComments)
	admin.Post("/createcategory", s.AdminRequired(), s.CreateCategory)
	admin.Put("/updatecategory/:id", s.AdminRequired(), s.UpdateCategory)
	admin.Delete("/deletecategory/:id", s.AdminRequired(), s.DeleteCategory)
	admin.Post("/createtag", s.AdminRequired(), s.CreateTag)
	admin.Put("/updatetag/:id", s.AdminRequired(), s.UpdateTag)
	admin.Delete("/deletetag/:id", s.AdminRequired(), s.DeleteTag)
	admin.Get("/feature-flags", s.AdminRequired(), s.GetFeatureFlags)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.mongo == nil {
		dbStatus = "unavailable"
	} else if err := s.mongo.Ping(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Redis is considered required for full readiness in this app
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired rejects requests without a valid token.
func (s *Server) AuthRequired() fiber.Handler {
	return middleware.Authenticate(s.tokens, true)
}

// OptionalAuth identifies the caller when a valid token is presented.
func (s *Server) OptionalAuth() fiber.Handler {
	return middleware.Authenticate(s.tokens, false)
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that the actor is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := service.AdminOnly(middleware.ActorFrom(c)); err != nil {
			return respondError(c, err)
		}
		return c.Next()
	}
}

// newApp builds the Fiber application with middleware and routes.
func (s *Server) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Inkwell API",
		BodyLimit: int(s.uploadMaxBytes)*(models.MaxPostMediaFiles+1) + 1<<20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err.Error())
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.newApp()

	if s.notifier != nil {
		if err := s.notifier.StartPatternSubscriber(s.shutdownCtx, s.logActivity); err != nil {
			log.Printf("failed to start activity subscriber: %v", err)
		}
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return s.app.Listen(fmt.Sprintf(":%s", s.config.Port))
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the activity subscriber
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if s.runtime != nil {
		if err := s.runtime.Close(ctx); err != nil {
			log.Printf("error closing backends: %v", err)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
