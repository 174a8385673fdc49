package service

import (
	"context"

	"inkwell/internal/models"
	"inkwell/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CommentService struct {
	comments  repository.CommentRepository
	posts     repository.PostRepository
	integrity *IntegrityManager
	views     *viewAssembler
}

type UpdateCommentInput struct {
	Content string `json:"content" form:"content"`
}

func NewCommentService(
	comments repository.CommentRepository,
	posts repository.PostRepository,
	users repository.UserRepository,
	integrity *IntegrityManager,
) *CommentService {
	return &CommentService{
		comments:  comments,
		posts:     posts,
		integrity: integrity,
		views:     &viewAssembler{users: users},
	}
}

func (s *CommentService) GetComment(ctx context.Context, rawID string) (*CommentView, error) {
	id, err := models.ParseID(rawID, "id")
	if err != nil {
		return nil, err
	}
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.views.Comments(ctx, []models.Comment{*comment}, nil)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *CommentService) ownedComment(ctx context.Context, actor *models.Actor, rawID, action string) (*models.Comment, error) {
	if err := RequireActor(actor); err != nil {
		return nil, err
	}
	id, err := models.ParseID(rawID, "id")
	if err != nil {
		return nil, err
	}
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := OwnerOrAdmin(actor, comment.User, action); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *CommentService) UpdateComment(ctx context.Context, actor *models.Actor, rawID string, in UpdateCommentInput) (*CommentView, error) {
	comment, err := s.ownedComment(ctx, actor, rawID, "update this comment")
	if err != nil {
		return nil, err
	}
	content, err := validCommentContent(in.Content)
	if err != nil {
		return nil, err
	}
	updated, err := s.comments.UpdateContent(ctx, comment.ID, content)
	if err != nil {
		return nil, err
	}
	views, err := s.views.Comments(ctx, []models.Comment{*updated}, nil)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// DeleteComment removes the comment from the store and from its post and author.
func (s *CommentService) DeleteComment(ctx context.Context, actor *models.Actor, rawID string) error {
	comment, err := s.ownedComment(ctx, actor, rawID, "delete this comment")
	if err != nil {
		return err
	}
	return s.integrity.DeleteComment(ctx, comment)
}

// ListAll returns every comment on a published post, newest first, with the
// post title attached. Admin only.
func (s *CommentService) ListAll(ctx context.Context, actor *models.Actor) ([]CommentView, error) {
	if err := AdminOnly(actor); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	postIDs := make([]primitive.ObjectID, 0, len(comments))
	for _, c := range comments {
		postIDs = append(postIDs, c.Post)
	}
	posts, err := s.posts.GetByIDs(ctx, uniqueIDs(postIDs))
	if err != nil {
		return nil, err
	}
	titles := make(map[primitive.ObjectID]string, len(posts))
	for _, p := range posts {
		if p.IsPublished {
			titles[p.ID] = p.Title
		}
	}

	visible := make([]models.Comment, 0, len(comments))
	for _, c := range comments {
		if _, ok := titles[c.Post]; ok {
			visible = append(visible, c)
		}
	}
	return s.views.Comments(ctx, visible, titles)
}
