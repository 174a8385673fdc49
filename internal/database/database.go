// Package database handles the MongoDB connection, indexes and transactions.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/middleware"
	"inkwell/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names.
const (
	UsersCollection      = "users"
	PostsCollection      = "posts"
	CommentsCollection   = "comments"
	CategoriesCollection = "categories"
	TagsCollection       = "tags"
)

// DB bundles the client and the application database.
type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// CommandMonitor records command latency and logs slow or failed commands
// through slog.
type CommandMonitor struct {
	logger        *slog.Logger
	slowThreshold time.Duration
	started       sync.Map // requestID -> collection
}

// NewCommandMonitor creates a monitor that warns about commands slower than slowThreshold.
func NewCommandMonitor(logger *slog.Logger, slowThreshold time.Duration) *CommandMonitor {
	return &CommandMonitor{logger: logger, slowThreshold: slowThreshold}
}

// Event returns the driver hook.
func (m *CommandMonitor) Event() *event.CommandMonitor {
	return &event.CommandMonitor{
		Started:   m.onStarted,
		Succeeded: m.onSucceeded,
		Failed:    m.onFailed,
	}
}

func (m *CommandMonitor) onStarted(_ context.Context, e *event.CommandStartedEvent) {
	collection, _ := e.Command.Lookup(e.CommandName).StringValueOK()
	m.started.Store(e.RequestID, collection)
}

func (m *CommandMonitor) collection(requestID int64) string {
	v, ok := m.started.LoadAndDelete(requestID)
	if !ok {
		return ""
	}
	return v.(string)
}

func (m *CommandMonitor) onSucceeded(ctx context.Context, e *event.CommandSucceededEvent) {
	collection := m.collection(e.RequestID)
	observability.ObserveQuery(e.CommandName, collection, e.Duration)

	if m.slowThreshold > 0 && e.Duration > m.slowThreshold {
		m.logger.WarnContext(ctx, "MongoDB slow command",
			slog.String("command", e.CommandName),
			slog.String("collection", collection),
			slog.Duration("elapsed", e.Duration),
		)
	}
}

func (m *CommandMonitor) onFailed(ctx context.Context, e *event.CommandFailedEvent) {
	collection := m.collection(e.RequestID)
	observability.ObserveQuery(e.CommandName, collection, e.Duration)
	observability.DatabaseCommandFailures.WithLabelValues(e.CommandName).Inc()

	m.logger.ErrorContext(ctx, "MongoDB command error",
		slog.String("command", e.CommandName),
		slog.String("collection", collection),
		slog.Duration("elapsed", e.Duration),
		slog.String("error", e.Failure),
	)
}

// Connect opens a MongoDB connection using the provided configuration and
// verifies it with a ping against the primary.
func Connect(cfg *config.Config) (*DB, error) {
	timeout := time.Duration(cfg.MongoTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	monitor := NewCommandMonitor(middleware.Logger, time.Duration(cfg.MongoSlowQueryMillis)*time.Millisecond)
	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout).
		SetMonitor(monitor.Event())
	if cfg.MongoMaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MongoMaxPoolSize)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	middleware.Logger.Info("Database connected successfully", slog.String("database", cfg.MongoDatabase))

	return &DB{Client: client, Database: client.Database(cfg.MongoDatabase)}, nil
}

// Ping checks that the primary is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.Client.Ping(ctx, readpref.Primary())
}

// Disconnect closes every pooled connection.
func (db *DB) Disconnect(ctx context.Context) error {
	return db.Client.Disconnect(ctx)
}

// SupportsTransactions reports whether the deployment is a replica set or a
// sharded cluster. Standalone servers reject multi-document transactions.
func SupportsTransactions(ctx context.Context, database *mongo.Database) (bool, error) {
	var reply struct {
		SetName string `bson:"setName"`
		Msg     string `bson:"msg"`
	}
	if err := database.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&reply); err != nil {
		return false, fmt.Errorf("hello: %w", err)
	}
	return reply.SetName != "" || reply.Msg == "isdbgrid", nil
}
