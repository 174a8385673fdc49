package service

import (
	"context"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserSummary is the public identity shown next to posts and comments.
type UserSummary struct {
	ID     primitive.ObjectID `json:"_id"`
	Name   string             `json:"name"`
	Email  string             `json:"email"`
	Avatar models.Media       `json:"avatar"`
}

type TermSummary struct {
	ID   primitive.ObjectID `json:"_id"`
	Name string             `json:"name"`
}

// PostView is a post with its references resolved for display.
type PostView struct {
	ID            primitive.ObjectID   `json:"_id"`
	Title         string               `json:"title"`
	Content       string               `json:"content"`
	Media         []models.Media       `json:"media"`
	Avatar        models.Media         `json:"avatar"`
	Author        *UserSummary         `json:"author"`
	Categories    []TermSummary        `json:"categories"`
	Tags          []TermSummary        `json:"tags"`
	Likes         []primitive.ObjectID `json:"likes"`
	LikesCount    int                  `json:"likesCount"`
	Views         int64                `json:"views"`
	CommentsCount int                  `json:"commentsCount"`
	IsPublished   bool                 `json:"isPublished"`
	PublishedAt   *time.Time           `json:"publishedAt,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// PostDetail adds the comment thread to a PostView.
type PostDetail struct {
	PostView
	Comments []CommentView `json:"comments"`
}

type CommentView struct {
	ID        primitive.ObjectID `json:"_id"`
	Content   string             `json:"content"`
	Post      primitive.ObjectID `json:"post"`
	PostTitle string             `json:"postTitle,omitempty"`
	User      *UserSummary       `json:"user"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// UserView is the profile exposed to the user themself and to admins.
type UserView struct {
	ID                   primitive.ObjectID   `json:"_id"`
	Name                 string               `json:"name"`
	Email                string               `json:"email"`
	Role                 models.Role          `json:"role"`
	Bio                  string               `json:"bio"`
	Avatar               models.Media         `json:"avatar"`
	Bookmarks            []primitive.ObjectID `json:"bookmarks"`
	PostsCount           int                  `json:"postsCount"`
	CommentsCount        int                  `json:"commentsCount"`
	NewsletterSubscribed bool                 `json:"newsletterSubscribed"`
	IsActive             bool                 `json:"isActive"`
	CreatedAt            time.Time            `json:"createdAt"`
	UpdatedAt            time.Time            `json:"updatedAt"`
}

func summarizeUser(u *models.User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Avatar: u.Avatar}
}

func NewUserView(u *models.User) UserView {
	bookmarks := u.Bookmarks
	if bookmarks == nil {
		bookmarks = []primitive.ObjectID{}
	}
	return UserView{
		ID:                   u.ID,
		Name:                 u.Name,
		Email:                u.Email,
		Role:                 u.Role,
		Bio:                  u.Bio,
		Avatar:               u.Avatar,
		Bookmarks:            bookmarks,
		PostsCount:           len(u.Posts),
		CommentsCount:        len(u.Comments),
		NewsletterSubscribed: u.NewsletterSubscribed,
		IsActive:             u.IsActive,
		CreatedAt:            u.CreatedAt,
		UpdatedAt:            u.UpdatedAt,
	}
}

// viewAssembler batch-loads the documents a set of posts or comments refers to.
type viewAssembler struct {
	users      repository.UserRepository
	categories repository.TaxonomyRepository
	tags       repository.TaxonomyRepository
}

func (a *viewAssembler) userIndex(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	users, err := a.users.GetByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	index := make(map[primitive.ObjectID]*models.User, len(users))
	for i := range users {
		index[users[i].ID] = &users[i]
	}
	return index, nil
}

func termIndex(ctx context.Context, repo repository.TaxonomyRepository, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Term, error) {
	terms, err := repo.GetByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	index := make(map[primitive.ObjectID]models.Term, len(terms))
	for _, t := range terms {
		index[t.ID] = t
	}
	return index, nil
}

// Posts assembles views in the order of posts. References to documents that
// no longer exist are dropped.
func (a *viewAssembler) Posts(ctx context.Context, posts []models.Post) ([]PostView, error) {
	views := make([]PostView, 0, len(posts))
	if len(posts) == 0 {
		return views, nil
	}

	var authorIDs, categoryIDs, tagIDs []primitive.ObjectID
	for i := range posts {
		authorIDs = append(authorIDs, posts[i].Author)
		categoryIDs = append(categoryIDs, posts[i].Categories...)
		tagIDs = append(tagIDs, posts[i].Tags...)
	}

	authors, err := a.userIndex(ctx, authorIDs)
	if err != nil {
		return nil, err
	}
	categories, err := termIndex(ctx, a.categories, categoryIDs)
	if err != nil {
		return nil, err
	}
	tags, err := termIndex(ctx, a.tags, tagIDs)
	if err != nil {
		return nil, err
	}

	for i := range posts {
		views = append(views, buildPostView(&posts[i], authors, categories, tags))
	}
	return views, nil
}

func (a *viewAssembler) Post(ctx context.Context, post *models.Post) (*PostView, error) {
	views, err := a.Posts(ctx, []models.Post{*post})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func buildPostView(p *models.Post, authors map[primitive.ObjectID]*models.User, categories, tags map[primitive.ObjectID]models.Term) PostView {
	likes := p.Likes
	if likes == nil {
		likes = []primitive.ObjectID{}
	}
	media := p.Media
	if media == nil {
		media = []models.Media{}
	}
	return PostView{
		ID:            p.ID,
		Title:         p.Title,
		Content:       p.Content,
		Media:         media,
		Avatar:        p.Avatar,
		Author:        summarizeUser(authors[p.Author]),
		Categories:    resolveTerms(p.Categories, categories),
		Tags:          resolveTerms(p.Tags, tags),
		Likes:         likes,
		LikesCount:    len(p.Likes),
		Views:         p.Views,
		CommentsCount: len(p.Comments),
		IsPublished:   p.IsPublished,
		PublishedAt:   p.PublishedAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func resolveTerms(ids []primitive.ObjectID, index map[primitive.ObjectID]models.Term) []TermSummary {
	out := make([]TermSummary, 0, len(ids))
	for _, id := range ids {
		if t, ok := index[id]; ok {
			out = append(out, TermSummary{ID: t.ID, Name: t.Name})
		}
	}
	return out
}

// Comments assembles comment views with author summaries. postTitles is
// optional and fills PostTitle when present.
func (a *viewAssembler) Comments(ctx context.Context, comments []models.Comment, postTitles map[primitive.ObjectID]string) ([]CommentView, error) {
	views := make([]CommentView, 0, len(comments))
	if len(comments) == 0 {
		return views, nil
	}

	userIDs := make([]primitive.ObjectID, 0, len(comments))
	for _, c := range comments {
		userIDs = append(userIDs, c.User)
	}
	users, err := a.userIndex(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	for _, c := range comments {
		views = append(views, CommentView{
			ID:        c.ID,
			Content:   c.Content,
			Post:      c.Post,
			PostTitle: postTitles[c.Post],
			User:      summarizeUser(users[c.User]),
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}
	return views, nil
}

func uniqueIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
