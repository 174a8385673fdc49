package repository

import (
	"context"

	"inkwell/internal/database"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error)
	UpdateContent(ctx context.Context, id primitive.ObjectID, content string) (*models.Comment, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	ListByPost(ctx context.Context, postID primitive.ObjectID) ([]models.Comment, error)
	ListByPosts(ctx context.Context, postIDs []primitive.ObjectID) ([]models.Comment, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Comment, error)
	ListAll(ctx context.Context) ([]models.Comment, error)
	DeleteMany(ctx context.Context, ids []primitive.ObjectID) error
}

type commentRepository struct {
	coll   *mongo.Collection
	logger *observability.RepoLogger
}

// NewCommentRepository returns a new CommentRepository implementation.
func NewCommentRepository(db *mongo.Database) CommentRepository {
	return &commentRepository{
		coll:   db.Collection(database.CommentsCollection),
		logger: observability.NewRepoLogger(database.CommentsCollection),
	}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	ts := now()
	comment.ID = primitive.NewObjectID()
	comment.CreatedAt, comment.UpdatedAt = ts, ts
	if _, err := r.coll.InsertOne(ctx, comment); err != nil {
		r.logger.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.logger.LogCreate(ctx, map[string]interface{}{"id": comment.ID.Hex(), "post": comment.Post.Hex()})
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	var comment models.Comment
	if err := r.coll.FindOne(ctx, idFilter(id)).Decode(&comment); err != nil {
		return nil, mapError(err, "Comment", id.Hex())
	}
	return &comment, nil
}

func (r *commentRepository) UpdateContent(ctx context.Context, id primitive.ObjectID, content string) (*models.Comment, error) {
	var comment models.Comment
	err := r.coll.FindOneAndUpdate(ctx, idFilter(id),
		bson.M{"$set": bson.M{"content": content, "updatedAt": now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&comment)
	if err != nil {
		return nil, mapError(err, "Comment", id.Hex())
	}
	r.logger.LogUpdate(ctx, map[string]interface{}{"id": id.Hex()})
	return &comment, nil
}

// Delete removes one comment. Deleting a missing comment is a no-op.
func (r *commentRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.coll.DeleteOne(ctx, idFilter(id)); err != nil {
		r.logger.LogError(ctx, err, "delete")
		return models.NewInternalError(err)
	}
	r.logger.LogDelete(ctx, map[string]interface{}{"id": id.Hex()})
	return nil
}

// ListByPost returns the comments of a post, oldest first.
func (r *commentRepository) ListByPost(ctx context.Context, postID primitive.ObjectID) ([]models.Comment, error) {
	return r.find(ctx, bson.M{"post": postID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (r *commentRepository) ListByPosts(ctx context.Context, postIDs []primitive.ObjectID) ([]models.Comment, error) {
	if len(postIDs) == 0 {
		return []models.Comment{}, nil
	}
	return r.find(ctx, bson.M{"post": inIDs(postIDs)}, options.Find())
}

func (r *commentRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Comment, error) {
	return r.find(ctx, bson.M{"user": userID}, options.Find())
}

// ListAll returns every comment, newest first.
func (r *commentRepository) ListAll(ctx context.Context) ([]models.Comment, error) {
	return r.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *commentRepository) DeleteMany(ctx context.Context, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	res, err := r.coll.DeleteMany(ctx, bson.M{"_id": inIDs(ids)})
	if err != nil {
		r.logger.LogError(ctx, err, "delete_many")
		return models.NewInternalError(err)
	}
	r.logger.LogDelete(ctx, map[string]interface{}{"count": res.DeletedCount})
	return nil
}

func (r *commentRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Comment, error) {
	comments := []models.Comment{}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := cur.All(ctx, &comments); err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}
