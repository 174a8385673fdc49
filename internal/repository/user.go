package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"inkwell/internal/database"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByResetToken(ctx context.Context, tokenHash string, at time.Time) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error
	SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expiry time.Time) error
	ClearResetToken(ctx context.Context, id primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context) ([]models.User, error)

	ToggleBookmark(ctx context.Context, userID, postID primitive.ObjectID) (*models.User, error)
	AddPost(ctx context.Context, userID, postID primitive.ObjectID) error
	PullPost(ctx context.Context, postID primitive.ObjectID) error
	AddComment(ctx context.Context, userID, commentID primitive.ObjectID) error
	PullComments(ctx context.Context, commentIDs []primitive.ObjectID) error
}

type userRepository struct {
	coll   *mongo.Collection
	logger *observability.RepoLogger
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{
		coll:   db.Collection(database.UsersCollection),
		logger: observability.NewRepoLogger(database.UsersCollection),
	}
}

func (r *userRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	if err := r.coll.FindOne(ctx, idFilter(id)).Decode(&user); err != nil {
		return nil, mapError(err, "User", id.Hex())
	}
	return &user, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	cur, err := r.coll.Find(ctx, bson.M{"_id": inIDs(ids)})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := cur.All(ctx, &users); err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// GetByEmail returns nil without error when no account uses the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.coll.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetByResetToken returns nil without error when no unexpired token matches.
func (r *userRepository) GetByResetToken(ctx context.Context, tokenHash string, at time.Time) (*models.User, error) {
	var user models.User
	err := r.coll.FindOne(ctx, bson.M{
		"forgetPasswordToken":  tokenHash,
		"forgetPasswordExpiry": bson.M{"$gt": at},
	}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	ts := now()
	user.ID = primitive.NewObjectID()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt, user.UpdatedAt = ts, ts
	if user.Bookmarks == nil {
		user.Bookmarks = []primitive.ObjectID{}
	}
	if user.Posts == nil {
		user.Posts = []primitive.ObjectID{}
	}
	if user.Comments == nil {
		user.Comments = []primitive.ObjectID{}
	}

	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if isDuplicateKey(err) {
			return models.NewConflictError("User already exists")
		}
		r.logger.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.logger.LogCreate(ctx, map[string]interface{}{"id": user.ID.Hex()})
	return nil
}

// UpdateProfile persists the editable profile fields of user.
func (r *userRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = now()
	res, err := r.coll.UpdateOne(ctx, idFilter(user.ID), bson.M{"$set": bson.M{
		"name":                 user.Name,
		"bio":                  user.Bio,
		"avatar":               user.Avatar,
		"newsletterSubscribed": user.NewsletterSubscribed,
		"updatedAt":            user.UpdatedAt,
	}})
	if err != nil {
		r.logger.LogError(ctx, err, "update")
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("User", user.ID.Hex())
	}
	r.logger.LogUpdate(ctx, map[string]interface{}{"id": user.ID.Hex()})
	return nil
}

// UpdatePassword stores a new hash and invalidates any outstanding reset token.
func (r *userRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	res, err := r.coll.UpdateOne(ctx, idFilter(id), bson.M{
		"$set":   bson.M{"password": passwordHash, "updatedAt": now()},
		"$unset": bson.M{"forgetPasswordToken": "", "forgetPasswordExpiry": ""},
	})
	if err != nil {
		r.logger.LogError(ctx, err, "update_password")
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("User", id.Hex())
	}
	return nil
}

func (r *userRepository) SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expiry time.Time) error {
	res, err := r.coll.UpdateOne(ctx, idFilter(id), bson.M{"$set": bson.M{
		"forgetPasswordToken":  tokenHash,
		"forgetPasswordExpiry": expiry,
	}})
	if err != nil {
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("User", id.Hex())
	}
	return nil
}

func (r *userRepository) ClearResetToken(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.coll.UpdateOne(ctx, idFilter(id), bson.M{
		"$unset": bson.M{"forgetPasswordToken": "", "forgetPasswordExpiry": ""},
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes the user document. Deleting a missing user is a no-op.
func (r *userRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.coll.DeleteOne(ctx, idFilter(id)); err != nil {
		r.logger.LogError(ctx, err, "delete")
		return models.NewInternalError(err)
	}
	r.logger.LogDelete(ctx, map[string]interface{}{"id": id.Hex()})
	return nil
}

// List returns every user, newest first.
func (r *userRepository) List(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := cur.All(ctx, &users); err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// ToggleBookmark adds the post to the user's bookmarks or removes it when present.
func (r *userRepository) ToggleBookmark(ctx context.Context, userID, postID primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := r.coll.FindOneAndUpdate(ctx, idFilter(userID), toggleMember("bookmarks", postID),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		return nil, mapError(err, "User", userID.Hex())
	}
	return &user, nil
}

func (r *userRepository) AddPost(ctx context.Context, userID, postID primitive.ObjectID) error {
	return r.addToSet(ctx, userID, "posts", postID)
}

// PullPost removes the post from its author's posts and from every bookmark list.
func (r *userRepository) PullPost(ctx context.Context, postID primitive.ObjectID) error {
	_, err := r.coll.UpdateMany(ctx,
		bson.M{"$or": bson.A{bson.M{"posts": postID}, bson.M{"bookmarks": postID}}},
		bson.M{"$pull": bson.M{"posts": postID, "bookmarks": postID}},
	)
	if err != nil {
		r.logger.LogError(ctx, err, "pull_post")
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) AddComment(ctx context.Context, userID, commentID primitive.ObjectID) error {
	return r.addToSet(ctx, userID, "comments", commentID)
}

// PullComments removes the comments from whichever users reference them.
func (r *userRepository) PullComments(ctx context.Context, commentIDs []primitive.ObjectID) error {
	if len(commentIDs) == 0 {
		return nil
	}
	_, err := r.coll.UpdateMany(ctx,
		bson.M{"comments": inIDs(commentIDs)},
		bson.M{"$pull": bson.M{"comments": inIDs(commentIDs)}},
	)
	if err != nil {
		r.logger.LogError(ctx, err, "pull_comments")
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) addToSet(ctx context.Context, userID primitive.ObjectID, field string, value primitive.ObjectID) error {
	res, err := r.coll.UpdateOne(ctx, idFilter(userID), bson.M{"$addToSet": bson.M{field: value}})
	if err != nil {
		r.logger.LogError(ctx, err, "add_"+field)
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("User", userID.Hex())
	}
	return nil
}
