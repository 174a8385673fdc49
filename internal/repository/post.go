package repository

import (
	"context"
	"regexp"

	"inkwell/internal/database"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Post, error)
	ListByAuthor(ctx context.Context, authorID primitive.ObjectID) ([]models.Post, error)
	List(ctx context.Context, filter models.PostFilter, skip, limit int64) ([]models.Post, int64, error)
	Related(ctx context.Context, post *models.Post, limit int64) ([]models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id primitive.ObjectID) error

	ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, error)
	IncrementViews(ctx context.Context, id primitive.ObjectID) (int64, error)
	AddComment(ctx context.Context, postID, commentID primitive.ObjectID) error
	PullComments(ctx context.Context, commentIDs []primitive.ObjectID) error
	PullLiker(ctx context.Context, userID primitive.ObjectID) error
	PullTaxonomy(ctx context.Context, kind models.TaxonomyKind, id primitive.ObjectID) error
}

// postRepository implements PostRepository
type postRepository struct {
	coll   *mongo.Collection
	logger *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *mongo.Database) PostRepository {
	return &postRepository{
		coll:   db.Collection(database.PostsCollection),
		logger: observability.NewRepoLogger(database.PostsCollection),
	}
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	ts := now()
	post.ID = primitive.NewObjectID()
	post.CreatedAt, post.UpdatedAt = ts, ts
	if post.IsPublished && post.PublishedAt == nil {
		post.PublishedAt = &ts
	}
	normalizePostArrays(post)

	if _, err := r.coll.InsertOne(ctx, post); err != nil {
		r.logger.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.logger.LogCreate(ctx, map[string]interface{}{"id": post.ID.Hex(), "author": post.Author.Hex()})
	return nil
}

func normalizePostArrays(post *models.Post) {
	if post.Media == nil {
		post.Media = []models.Media{}
	}
	for _, ids := range []*[]primitive.ObjectID{&post.Categories, &post.Tags, &post.Likes, &post.Comments} {
		if *ids == nil {
			*ids = []primitive.ObjectID{}
		}
	}
}

func (r *postRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "GetByID", database.PostsCollection)
	defer span.End()

	var post models.Post
	if err := r.coll.FindOne(ctx, idFilter(id)).Decode(&post); err != nil {
		return nil, mapError(err, "Post", id.Hex())
	}
	return &post, nil
}

// GetByIDs returns the posts that still exist, newest first.
func (r *postRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Post, error) {
	if len(ids) == 0 {
		return []models.Post{}, nil
	}
	return r.find(ctx, bson.M{"_id": inIDs(ids)}, options.Find().SetSort(newestFirst))
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID primitive.ObjectID) ([]models.Post, error) {
	return r.find(ctx, bson.M{"author": authorID}, options.Find().SetSort(newestFirst))
}

// List returns one page of posts matching filter, newest first, plus the total match count.
func (r *postRepository) List(ctx context.Context, filter models.PostFilter, skip, limit int64) ([]models.Post, int64, error) {
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "List", database.PostsCollection)
	defer span.End()

	query := postQuery(filter)
	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	posts, err := r.find(ctx, query, options.Find().SetSort(newestFirst).SetSkip(skip).SetLimit(limit))
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// postQuery builds the store filter. Search input is matched literally.
func postQuery(f models.PostFilter) bson.M {
	query := bson.M{}
	if f.Published != nil {
		query["isPublished"] = *f.Published
	}
	if f.Author != nil {
		query["author"] = *f.Author
	}

	var and bson.A
	if len(f.CategoryIDs) > 0 {
		and = append(and, bson.M{"categories": inIDs(f.CategoryIDs)})
	}
	if f.CategoryID != nil {
		and = append(and, bson.M{"categories": *f.CategoryID})
	}
	if f.TagID != nil {
		and = append(and, bson.M{"tags": *f.TagID})
	}
	if f.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"title": pattern},
			bson.M{"content": pattern},
		}})
	}
	if len(and) > 0 {
		query["$and"] = and
	}
	return query
}

// Related returns published posts sharing a category or tag with post.
func (r *postRepository) Related(ctx context.Context, post *models.Post, limit int64) ([]models.Post, error) {
	var shared bson.A
	if len(post.Categories) > 0 {
		shared = append(shared, bson.M{"categories": inIDs(post.Categories)})
	}
	if len(post.Tags) > 0 {
		shared = append(shared, bson.M{"tags": inIDs(post.Tags)})
	}
	if len(shared) == 0 {
		return []models.Post{}, nil
	}

	return r.find(ctx, bson.M{
		"_id":         bson.M{"$ne": post.ID},
		"isPublished": true,
		"$or":         shared,
	}, options.Find().SetSort(newestFirst).SetLimit(limit))
}

// Update persists the editable fields of post.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	post.UpdatedAt = now()
	normalizePostArrays(post)
	res, err := r.coll.UpdateOne(ctx, idFilter(post.ID), bson.M{"$set": bson.M{
		"title":       post.Title,
		"content":     post.Content,
		"media":       post.Media,
		"avatar":      post.Avatar,
		"categories":  post.Categories,
		"tags":        post.Tags,
		"isPublished": post.IsPublished,
		"publishedAt": post.PublishedAt,
		"updatedAt":   post.UpdatedAt,
	}})
	if err != nil {
		r.logger.LogError(ctx, err, "update")
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("Post", post.ID.Hex())
	}
	r.logger.LogUpdate(ctx, map[string]interface{}{"id": post.ID.Hex()})
	return nil
}

// Delete removes the post document. Deleting a missing post is a no-op.
func (r *postRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.coll.DeleteOne(ctx, idFilter(id)); err != nil {
		r.logger.LogError(ctx, err, "delete")
		return models.NewInternalError(err)
	}
	r.logger.LogDelete(ctx, map[string]interface{}{"id": id.Hex()})
	return nil
}

// ToggleLike likes the post for userID or removes an existing like.
func (r *postRepository) ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := r.coll.FindOneAndUpdate(ctx, idFilter(postID), toggleMember("likes", userID),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&post)
	if err != nil {
		return nil, mapError(err, "Post", postID.Hex())
	}
	return &post, nil
}

// IncrementViews counts one view of a published post and returns the new total.
func (r *postRepository) IncrementViews(ctx context.Context, id primitive.ObjectID) (int64, error) {
	var post struct {
		Views int64 `bson:"views"`
	}
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "isPublished": true},
		bson.M{"$inc": bson.M{"views": 1}},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"views": 1}),
	).Decode(&post)
	if err != nil {
		return 0, mapError(err, "Post", id.Hex())
	}
	return post.Views, nil
}

func (r *postRepository) AddComment(ctx context.Context, postID, commentID primitive.ObjectID) error {
	res, err := r.coll.UpdateOne(ctx, idFilter(postID), bson.M{"$addToSet": bson.M{"comments": commentID}})
	if err != nil {
		r.logger.LogError(ctx, err, "add_comment")
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("Post", postID.Hex())
	}
	return nil
}

func (r *postRepository) PullComments(ctx context.Context, commentIDs []primitive.ObjectID) error {
	if len(commentIDs) == 0 {
		return nil
	}
	return r.pullMany(ctx, "comments", bson.M{"comments": inIDs(commentIDs)}, inIDs(commentIDs))
}

func (r *postRepository) PullLiker(ctx context.Context, userID primitive.ObjectID) error {
	return r.pullMany(ctx, "likes", bson.M{"likes": userID}, userID)
}

func (r *postRepository) PullTaxonomy(ctx context.Context, kind models.TaxonomyKind, id primitive.ObjectID) error {
	field := kind.PostField()
	return r.pullMany(ctx, field, bson.M{field: id}, id)
}

func (r *postRepository) pullMany(ctx context.Context, field string, filter bson.M, value interface{}) error {
	if _, err := r.coll.UpdateMany(ctx, filter, bson.M{"$pull": bson.M{field: value}}); err != nil {
		r.logger.LogError(ctx, err, "pull_"+field)
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Post, error) {
	posts := []models.Post{}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}
