package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// Transactor runs a unit of work that spans several documents.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// MongoTransactor runs fn inside a session transaction when the deployment
// supports it. On a standalone server fn runs directly, so every step it
// performs must be safe to re-run.
type MongoTransactor struct {
	client    *mongo.Client
	supported bool
}

// NewTransactor creates a MongoTransactor. supported is normally the result of
// SupportsTransactions.
func NewTransactor(client *mongo.Client, supported bool) *MongoTransactor {
	return &MongoTransactor{client: client, supported: supported}
}

// Transactional reports whether work runs inside a real transaction.
func (t *MongoTransactor) Transactional() bool {
	return t.supported
}

// WithTransaction executes fn, committing on success and aborting on error.
// Transient transaction errors are retried by the driver.
func (t *MongoTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !t.supported {
		return fn(ctx)
	}

	session, err := t.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// NoopTransactor runs fn directly. Tests use it with in-memory repositories.
type NoopTransactor struct{}

func (NoopTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
