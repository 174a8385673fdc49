package service

import (
	"context"

	"inkwell/internal/cache"
	"inkwell/internal/database"
	"inkwell/internal/media"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
)

// IntegrityManager keeps back-references consistent when documents are
// created or deleted. Each cascade is an ordered list of idempotent steps
// executed through the Transactor, so a cascade interrupted on a standalone
// server can be re-run to completion.
type IntegrityManager struct {
	tx       database.Transactor
	users    repository.UserRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	media    media.Host
}

func NewIntegrityManager(
	tx database.Transactor,
	users repository.UserRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	host media.Host,
) *IntegrityManager {
	if tx == nil {
		tx = database.NoopTransactor{}
	}
	if host == nil {
		host = media.Disabled{}
	}
	return &IntegrityManager{tx: tx, users: users, posts: posts, comments: comments, media: host}
}

func (m *IntegrityManager) run(ctx context.Context, cascade string, fields map[string]interface{}, fn func(ctx context.Context) error) error {
	span, ctx := observability.NewSpan(ctx, "cascade."+cascade, observability.WithSpanKind(observability.SpanKindInternal))
	defer span.End()
	for k, v := range fields {
		if s, ok := v.(string); ok {
			span.AddAttributes(attribute.String(k, s))
		}
	}

	err := m.tx.WithTransaction(ctx, fn)
	if err != nil {
		span.SetError(err)
	}
	fields["trace_id"] = span.TraceID()
	fields["span_id"] = span.SpanID()
	observability.LogCascade(ctx, cascade, err, fields)
	return err
}

// CreatePost inserts post and links it to its author.
func (m *IntegrityManager) CreatePost(ctx context.Context, post *models.Post) error {
	fields := map[string]interface{}{"author": post.Author.Hex()}
	return m.run(ctx, "create_post", fields, func(ctx context.Context) error {
		if err := m.posts.Create(ctx, post); err != nil {
			return err
		}
		return m.users.AddPost(ctx, post.Author, post.ID)
	})
}

// AddComment inserts comment and links it to both its post and its author.
func (m *IntegrityManager) AddComment(ctx context.Context, comment *models.Comment) error {
	fields := map[string]interface{}{"post": comment.Post.Hex(), "user": comment.User.Hex()}
	return m.run(ctx, "add_comment", fields, func(ctx context.Context) error {
		if err := m.comments.Create(ctx, comment); err != nil {
			return err
		}
		if err := m.posts.AddComment(ctx, comment.Post, comment.ID); err != nil {
			return err
		}
		return m.users.AddComment(ctx, comment.User, comment.ID)
	})
}

// DeleteComment pulls comment from its post and its author, then removes it.
func (m *IntegrityManager) DeleteComment(ctx context.Context, comment *models.Comment) error {
	ids := []primitive.ObjectID{comment.ID}
	return m.run(ctx, "delete_comment", map[string]interface{}{"comment": comment.ID.Hex()}, func(ctx context.Context) error {
		if err := m.posts.PullComments(ctx, ids); err != nil {
			return err
		}
		if err := m.users.PullComments(ctx, ids); err != nil {
			return err
		}
		// Last, so an interrupted cascade can still find the comment on retry.
		return m.comments.Delete(ctx, comment.ID)
	})
}

// DeletePost removes post with its comments and every reference to it. Media
// is released after the store changes commit.
func (m *IntegrityManager) DeletePost(ctx context.Context, post *models.Post) error {
	err := m.run(ctx, "delete_post", map[string]interface{}{"post": post.ID.Hex()}, func(ctx context.Context) error {
		return m.deletePostSteps(ctx, post.ID)
	})
	if err != nil {
		return err
	}

	cache.InvalidateAllRelatedPosts(ctx)
	m.releaseMedia(ctx, post.MediaPublicIDs())
	return nil
}

func (m *IntegrityManager) deletePostSteps(ctx context.Context, postID primitive.ObjectID) error {
	comments, err := m.comments.ListByPost(ctx, postID)
	if err != nil {
		return err
	}
	commentIDs := commentIDs(comments)
	if err := m.users.PullComments(ctx, commentIDs); err != nil {
		return err
	}
	if err := m.comments.DeleteMany(ctx, commentIDs); err != nil {
		return err
	}
	if err := m.users.PullPost(ctx, postID); err != nil {
		return err
	}
	return m.posts.Delete(ctx, postID)
}

// DeleteTaxonomy pulls the term from every post, then deletes it.
func (m *IntegrityManager) DeleteTaxonomy(ctx context.Context, terms repository.TaxonomyRepository, id primitive.ObjectID) error {
	kind := terms.Kind()
	fields := map[string]interface{}{"kind": string(kind), "term": id.Hex()}
	err := m.run(ctx, "delete_taxonomy", fields, func(ctx context.Context) error {
		if err := m.posts.PullTaxonomy(ctx, kind, id); err != nil {
			return err
		}
		return terms.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	cache.InvalidateTaxonomy(ctx, string(kind))
	cache.InvalidateAllRelatedPosts(ctx)
	return nil
}

// DeleteUser removes user along with their comments, their posts and their
// likes. Media owned by the user is released after commit.
func (m *IntegrityManager) DeleteUser(ctx context.Context, user *models.User) error {
	var authored []models.Post
	err := m.run(ctx, "delete_user", map[string]interface{}{"user": user.ID.Hex()}, func(ctx context.Context) error {
		comments, err := m.comments.ListByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		ids := commentIDs(comments)
		if err := m.posts.PullComments(ctx, ids); err != nil {
			return err
		}
		if err := m.comments.DeleteMany(ctx, ids); err != nil {
			return err
		}

		authored, err = m.posts.ListByAuthor(ctx, user.ID)
		if err != nil {
			return err
		}
		for _, p := range authored {
			if err := m.deletePostSteps(ctx, p.ID); err != nil {
				return err
			}
		}

		if err := m.posts.PullLiker(ctx, user.ID); err != nil {
			return err
		}
		return m.users.Delete(ctx, user.ID)
	})
	if err != nil {
		return err
	}

	cache.InvalidateAllRelatedPosts(ctx)
	var publicIDs []string
	for i := range authored {
		publicIDs = append(publicIDs, authored[i].MediaPublicIDs()...)
	}
	publicIDs = append(publicIDs, user.Avatar.PublicID)
	m.releaseMedia(ctx, publicIDs)
	return nil
}

// releaseMedia destroys hosted assets. Failures are logged and skipped: the
// documents referencing them are already gone.
func (m *IntegrityManager) releaseMedia(ctx context.Context, publicIDs []string) {
	for _, id := range publicIDs {
		if id == "" {
			continue
		}
		if err := m.media.Destroy(ctx, id); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "failed to release media",
				"public_id", id, "error", err.Error())
		}
	}
}

func commentIDs(comments []models.Comment) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
	}
	return ids
}
