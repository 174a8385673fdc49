package database

import (
	"context"
	"fmt"
	"log/slog"

	"inkwell/internal/middleware"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CaseInsensitive compares strings ignoring case. Taxonomy names are unique under it.
var CaseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// CollectionIndexes is the authoritative index set of one collection.
type CollectionIndexes struct {
	Collection string
	Indexes    []mongo.IndexModel
}

// PersistentIndexes returns every index the application relies on.
func PersistentIndexes() []CollectionIndexes {
	return []CollectionIndexes{
		{
			Collection: UsersCollection,
			Indexes: []mongo.IndexModel{
				{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("email_unique").SetUnique(true)},
				{Keys: bson.D{{Key: "forgetPasswordToken", Value: 1}}, Options: options.Index().SetName("reset_token").SetSparse(true)},
			},
		},
		{
			Collection: PostsCollection,
			Indexes: []mongo.IndexModel{
				{Keys: bson.D{{Key: "author", Value: 1}}, Options: options.Index().SetName("author")},
				{Keys: bson.D{{Key: "categories", Value: 1}}, Options: options.Index().SetName("categories")},
				{Keys: bson.D{{Key: "tags", Value: 1}}, Options: options.Index().SetName("tags")},
				{Keys: bson.D{{Key: "likes", Value: 1}}, Options: options.Index().SetName("likes")},
				{Keys: bson.D{{Key: "isPublished", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("published_newest")},
			},
		},
		{
			Collection: CommentsCollection,
			Indexes: []mongo.IndexModel{
				{Keys: bson.D{{Key: "post", Value: 1}}, Options: options.Index().SetName("post")},
				{Keys: bson.D{{Key: "user", Value: 1}}, Options: options.Index().SetName("user")},
			},
		},
		{
			Collection: CategoriesCollection,
			Indexes: []mongo.IndexModel{
				{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetName("name_unique_ci").SetUnique(true).SetCollation(CaseInsensitive)},
			},
		},
		{
			Collection: TagsCollection,
			Indexes: []mongo.IndexModel{
				{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetName("name_unique_ci").SetUnique(true).SetCollation(CaseInsensitive)},
			},
		},
	}
}

// EnsureIndexes creates any missing index. Existing identical indexes are a no-op.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, ci := range PersistentIndexes() {
		names, err := db.Collection(ci.Collection).Indexes().CreateMany(ctx, ci.Indexes)
		if err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", ci.Collection, err)
		}
		middleware.Logger.Debug("Indexes ensured",
			slog.String("collection", ci.Collection),
			slog.Any("indexes", names),
		)
	}
	return nil
}
