// Package bootstrap connects the backing services a process needs before it
// can serve requests or seed data.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/mailer"
	"inkwell/internal/media"
	"inkwell/internal/models"
	"inkwell/internal/repository"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// Options control runtime initialization behavior.
type Options struct {
	EnsureIndexes bool
}

// Runtime holds the initialized backends.
type Runtime struct {
	DB     *database.DB
	Redis  *redis.Client
	Tx     database.Transactor
	Media  media.Host
	Mailer mailer.Mailer
}

// InitRuntime connects to MongoDB and Redis, picks the transaction mode, and
// builds the media host and mailer from configuration.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if opts.EnsureIndexes {
		if err := database.EnsureIndexes(ctx, db.Database); err != nil {
			_ = db.Disconnect(context.Background())
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
	}

	supported, err := database.SupportsTransactions(ctx, db.Database)
	if err != nil {
		log.Printf("could not detect transaction support, running cascades step by step: %v", err)
	}
	if !supported {
		log.Println("MongoDB deployment is standalone; integrity cascades run without transactions")
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)

	rt := &Runtime{
		DB:     db,
		Redis:  cache.GetClient(),
		Tx:     database.NewTransactor(db.Client, supported),
		Media:  newMediaHost(cfg),
		Mailer: newMailer(cfg),
	}

	if err := ensureDevRootAdmin(ctx, cfg, repository.NewUserRepository(db.Database)); err != nil {
		_ = rt.Close(context.Background())
		return nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	return rt, nil
}

// Close disconnects from Redis and MongoDB.
func (r *Runtime) Close(ctx context.Context) error {
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}
	if r.DB != nil {
		return r.DB.Disconnect(ctx)
	}
	return nil
}

func newMediaHost(cfg *config.Config) media.Host {
	if !cfg.CloudinaryConfigured() {
		log.Println("WARNING: Cloudinary credentials missing; uploads are disabled")
		return media.Disabled{}
	}
	host, err := media.NewCloudinaryHost(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		log.Printf("WARNING: media host unavailable, uploads are disabled: %v", err)
		return media.Disabled{}
	}
	return host
}

func newMailer(cfg *config.Config) mailer.Mailer {
	if cfg.SMTPHost == "" {
		return mailer.LogMailer{}
	}
	m, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFromEmail,
		Timeout:  15 * time.Second,
	})
	if err != nil {
		log.Printf("WARNING: smtp mailer unavailable, mail is logged instead: %v", err)
		return mailer.LogMailer{}
	}
	return m
}

// ensureDevRootAdmin creates the development admin account when enabled.
func ensureDevRootAdmin(ctx context.Context, cfg *config.Config, users repository.UserRepository) error {
	if cfg == nil || users == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	name := strings.TrimSpace(cfg.DevRootName)
	if name == "" {
		name = "Inkwell Root"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@inkwell.local"
	}
	password := cfg.DevRootPassword
	if password == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	existing, err := users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Role != models.RoleAdmin {
			return fmt.Errorf("%s already belongs to a non-admin account", email)
		}
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}
	root := &models.User{
		Name:     name,
		Email:    email,
		Password: string(hashedPassword),
		Role:     models.RoleAdmin,
		Avatar:   models.Media{SecureURL: models.DefaultAvatarURL},
		IsActive: true,
	}
	if err := users.Create(ctx, root); err != nil {
		return err
	}

	log.Printf("development root admin bootstrap ensured for %s", email)
	return nil
}
