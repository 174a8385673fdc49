package database

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestPersistentIndexes(t *testing.T) {
	byCollection := map[string]CollectionIndexes{}
	for _, ci := range PersistentIndexes() {
		byCollection[ci.Collection] = ci
	}

	for _, name := range []string{UsersCollection, PostsCollection, CommentsCollection, CategoriesCollection, TagsCollection} {
		assert.Contains(t, byCollection, name)
	}

	email := byCollection[UsersCollection].Indexes[0]
	require.NotNil(t, email.Options.Unique)
	assert.True(t, *email.Options.Unique)

	for _, name := range []string{CategoriesCollection, TagsCollection} {
		idx := byCollection[name].Indexes[0]
		require.NotNil(t, idx.Options.Unique)
		assert.True(t, *idx.Options.Unique)
		require.NotNil(t, idx.Options.Collation)
		assert.Equal(t, 2, idx.Options.Collation.Strength)
	}
}

func TestEnsureIndexes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("creates every collection's indexes", func(mt *mtest.T) {
		for range PersistentIndexes() {
			mt.AddMockResponses(mtest.CreateSuccessResponse())
		}
		require.NoError(mt, EnsureIndexes(context.Background(), mt.DB))
	})

	mt.Run("reports the failing collection", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    85,
			Name:    "IndexOptionsConflict",
			Message: "index options conflict",
		}))
		err := EnsureIndexes(context.Background(), mt.DB)
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), UsersCollection)
	})
}

func TestSupportsTransactions(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	tests := []struct {
		name     string
		reply    []bson.E
		expected bool
	}{
		{"replica set", []bson.E{{Key: "setName", Value: "rs0"}}, true},
		{"mongos", []bson.E{{Key: "msg", Value: "isdbgrid"}}, true},
		{"standalone", nil, false},
	}

	for _, tt := range tests {
		mt.Run(tt.name, func(mt *mtest.T) {
			mt.AddMockResponses(mtest.CreateSuccessResponse(tt.reply...))
			ok, err := SupportsTransactions(context.Background(), mt.DB)
			require.NoError(mt, err)
			assert.Equal(mt, tt.expected, ok)
		})
	}
}

func TestMongoTransactor_Standalone(t *testing.T) {
	tx := NewTransactor(nil, false)
	assert.False(t, tx.Transactional())

	calls := 0
	require.NoError(t, tx.WithTransaction(context.Background(), func(context.Context) error {
		calls++
		return nil
	}))
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	assert.ErrorIs(t, tx.WithTransaction(context.Background(), func(context.Context) error { return boom }), boom)
}

func TestCommandMonitor_TracksCollection(t *testing.T) {
	m := NewCommandMonitor(slog.Default(), time.Millisecond)
	hook := m.Event()

	cmd, err := bson.Marshal(bson.D{{Key: "find", Value: "posts"}})
	require.NoError(t, err)

	hook.Started(context.Background(), &event.CommandStartedEvent{Command: cmd, CommandName: "find", RequestID: 7})
	hook.Succeeded(context.Background(), &event.CommandSucceededEvent{
		CommandFinishedEvent: event.CommandFinishedEvent{CommandName: "find", RequestID: 7, Duration: 5 * time.Millisecond},
	})

	_, stillTracked := m.started.Load(int64(7))
	assert.False(t, stillTracked)
	assert.Equal(t, "", m.collection(7))
}
