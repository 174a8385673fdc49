package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"inkwell/internal/cache"
	"inkwell/internal/featureflags"
	"inkwell/internal/media"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PostService struct {
	posts      repository.PostRepository
	comments   repository.CommentRepository
	categories *TaxonomyService
	tags       *TaxonomyService
	integrity  *IntegrityManager
	uploads    UploadPolicy
	notifier   *notifications.Notifier
	flags      *featureflags.Manager
	views      *viewAssembler
}

type CreatePostInput struct {
	Title       string `validate:"required,max=300" json:"title"`
	Content     string `validate:"required,max=100000" json:"content"`
	Categories  []string
	Tags        []string
	IsPublished *bool
	Avatar      *media.File
	Media       []media.File
}

// UpdatePostInput holds the fields to change. Nil fields are left untouched;
// a non-nil empty Categories or Tags clears the list. Media is appended.
type UpdatePostInput struct {
	Title       *string `validate:"omitempty,max=300" json:"title"`
	Content     *string `validate:"omitempty,max=100000" json:"content"`
	Categories  []string
	Tags        []string
	IsPublished *bool
	Avatar      *media.File
	Media       []media.File
}

// LikeResult is the state of a post's likes after a toggle.
type LikeResult struct {
	Liked      bool                 `json:"liked"`
	LikesCount int                  `json:"likesCount"`
	Likes      []primitive.ObjectID `json:"likes"`
}

func NewPostService(
	posts repository.PostRepository,
	users repository.UserRepository,
	comments repository.CommentRepository,
	categories *TaxonomyService,
	tags *TaxonomyService,
	integrity *IntegrityManager,
	uploads UploadPolicy,
	notifier *notifications.Notifier,
	flags *featureflags.Manager,
) *PostService {
	return &PostService{
		posts:      posts,
		comments:   comments,
		categories: categories,
		tags:       tags,
		integrity:  integrity,
		uploads:    uploads,
		notifier:   notifier,
		flags:      flags,
		views:      &viewAssembler{users: users, categories: categories.terms, tags: tags.terms},
	}
}

func (s *PostService) CreatePost(ctx context.Context, actor *models.Actor, in CreatePostInput) (*PostView, error) {
	if err := RequireActor(actor); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := s.uploads.validateAvatar(in.Avatar); err != nil {
		return nil, err
	}
	if err := s.uploads.validateMedia(in.Media, 0); err != nil {
		return nil, err
	}

	// Taxonomy is resolved outside the cascade: a lost find-or-create race
	// surfaces as a duplicate key, which would abort a transaction.
	categoryIDs, err := s.categories.Resolve(ctx, in.Categories)
	if err != nil {
		return nil, err
	}
	tagIDs, err := s.tags.Resolve(ctx, in.Tags)
	if err != nil {
		return nil, err
	}

	batch := s.uploads.batch()
	avatar, err := batch.avatar(ctx, in.Avatar)
	if err != nil {
		return nil, err
	}
	attachments, err := batch.media(ctx, in.Media)
	if err != nil {
		batch.rollback(ctx)
		return nil, err
	}

	post := &models.Post{
		Title:       in.Title,
		Content:     in.Content,
		Media:       attachments,
		Avatar:      avatar,
		Author:      actor.ID,
		Categories:  categoryIDs,
		Tags:        tagIDs,
		IsPublished: in.IsPublished == nil || *in.IsPublished,
	}
	if post.IsPublished {
		ts := time.Now().UTC()
		post.PublishedAt = &ts
	}

	if err := s.integrity.CreatePost(ctx, post); err != nil {
		batch.rollback(ctx)
		return nil, err
	}

	if post.IsPublished {
		s.publish(ctx, func() error {
			return s.notifier.Broadcast(ctx, notifications.Event{
				Type:      notifications.EventPostPublished,
				PostID:    post.ID.Hex(),
				PostTitle: post.Title,
				ActorID:   actor.ID.Hex(),
				ActorName: actor.Name,
			})
		})
	}
	return s.views.Post(ctx, post)
}

// ownedPost loads the post addressed by rawID and checks the actor may change it.
func (s *PostService) ownedPost(ctx context.Context, actor *models.Actor, rawID, action string) (*models.Post, error) {
	if err := RequireActor(actor); err != nil {
		return nil, err
	}
	id, err := models.ParseID(rawID, "id")
	if err != nil {
		return nil, err
	}
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := OwnerOrAdmin(actor, post.Author, action); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, actor *models.Actor, rawID string, in UpdatePostInput) (*PostView, error) {
	post, err := s.ownedPost(ctx, actor, rawID, "update this post")
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		trimmed := strings.TrimSpace(*in.Title)
		if trimmed == "" {
			return nil, models.NewFieldError("title", "title is required")
		}
		in.Title = &trimmed
	}
	if in.Content != nil {
		trimmed := strings.TrimSpace(*in.Content)
		if trimmed == "" {
			return nil, models.NewFieldError("content", "content is required")
		}
		in.Content = &trimmed
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := s.uploads.validateAvatar(in.Avatar); err != nil {
		return nil, err
	}
	if err := s.uploads.validateMedia(in.Media, len(post.Media)); err != nil {
		return nil, err
	}

	if in.Categories != nil {
		if post.Categories, err = s.categories.Resolve(ctx, in.Categories); err != nil {
			return nil, err
		}
	}
	if in.Tags != nil {
		if post.Tags, err = s.tags.Resolve(ctx, in.Tags); err != nil {
			return nil, err
		}
	}
	if in.Title != nil {
		post.Title = *in.Title
	}
	if in.Content != nil {
		post.Content = *in.Content
	}
	if in.IsPublished != nil && *in.IsPublished != post.IsPublished {
		post.IsPublished = *in.IsPublished
		post.PublishedAt = nil
		if post.IsPublished {
			ts := time.Now().UTC()
			post.PublishedAt = &ts
		}
	}

	batch := s.uploads.batch()
	if in.Avatar != nil {
		if old := post.Avatar.PublicID; old != "" {
			if err := s.uploads.host().Destroy(ctx, old); err != nil {
				return nil, err
			}
			post.Avatar = models.Media{}
		}
		if post.Avatar, err = batch.avatar(ctx, in.Avatar); err != nil {
			return nil, err
		}
	}
	attachments, err := batch.media(ctx, in.Media)
	if err != nil {
		batch.rollback(ctx)
		return nil, err
	}
	post.Media = append(post.Media, attachments...)

	if err := s.posts.Update(ctx, post); err != nil {
		batch.rollback(ctx)
		return nil, err
	}
	cache.InvalidateAllRelatedPosts(ctx)
	return s.views.Post(ctx, post)
}

func (s *PostService) DeletePost(ctx context.Context, actor *models.Actor, rawID string) error {
	post, err := s.ownedPost(ctx, actor, rawID, "delete this post")
	if err != nil {
		return err
	}
	return s.integrity.DeletePost(ctx, post)
}

// ToggleLike likes the post for the actor, or removes the like when present.
func (s *PostService) ToggleLike(ctx context.Context, actor *models.Actor, rawID string) (*LikeResult, error) {
	if err := RequireActor(actor); err != nil {
		return nil, err
	}
	id, err := models.ParseID(rawID, "id")
	if err != nil {
		return nil, err
	}
	post, err := s.posts.ToggleLike(ctx, id, actor.ID)
	if err != nil {
		return nil, err
	}

	result := &LikeResult{
		Liked:      models.ContainsID(post.Likes, actor.ID),
		LikesCount: len(post.Likes),
		Likes:      post.Likes,
	}
	if result.Likes == nil {
		result.Likes = []primitive.ObjectID{}
	}
	if result.Liked {
		s.publish(ctx, func() error {
			return s.notifier.NotifyUser(ctx, post.Author.Hex(), notifications.Event{
				Type:      notifications.EventPostLiked,
				PostID:    post.ID.Hex(),
				PostTitle: post.Title,
				ActorID:   actor.ID.Hex(),
				ActorName: actor.Name,
			})
		})
	}
	return result, nil
}

func (s *PostService) AddComment(ctx context.Context, actor *models.Actor, rawPostID, content string) (*CommentView, error) {
	if err := RequireActor(actor); err != nil {
		return nil, err
	}
	postID, err := models.ParseID(rawPostID, "id")
	if err != nil {
		return nil, err
	}
	content, err = validCommentContent(content)
	if err != nil {
		return nil, err
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{Content: content, Post: post.ID, User: actor.ID}
	if err := s.integrity.AddComment(ctx, comment); err != nil {
		return nil, err
	}

	author := post.Author.Hex()
	if s.flags.Enabled(featureflags.CommentNotifications, author) {
		s.publish(ctx, func() error {
			return s.notifier.NotifyUser(ctx, author, notifications.Event{
				Type:      notifications.EventCommentAdded,
				PostID:    post.ID.Hex(),
				PostTitle: post.Title,
				CommentID: comment.ID.Hex(),
				ActorID:   actor.ID.Hex(),
				ActorName: actor.Name,
			})
		})
	}

	views, err := s.views.Comments(ctx, []models.Comment{*comment}, nil)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// ListComments returns the comments of a post, oldest first.
func (s *PostService) ListComments(ctx context.Context, rawPostID string) ([]CommentView, error) {
	postID, err := models.ParseID(rawPostID, "id")
	if err != nil {
		return nil, err
	}
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return s.views.Comments(ctx, comments, nil)
}

// publish sends a notification. Delivery is best effort.
func (s *PostService) publish(ctx context.Context, send func() error) {
	if err := send(); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "failed to publish notification", "error", err.Error())
	}
}

func validCommentContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", models.NewFieldError("content", "content is required")
	}
	if utf8.RuneCountInString(content) > models.MaxCommentLength {
		return "", models.NewFieldError("content", "content must not exceed 1000 characters")
	}
	return content, nil
}
