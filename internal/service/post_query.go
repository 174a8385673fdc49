package service

import (
	"context"
	"strings"

	"inkwell/internal/cache"
	"inkwell/internal/featureflags"
	"inkwell/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
	relatedLimit    = 6
)

// maxPage keeps the computed skip inside int64 and past any real collection,
// so oversized pages come back empty.
const maxPage = 1_000_000

type ListPostsInput struct {
	Published *bool
	// Categories is a comma-separated list of category names.
	Categories string
	Page       int
	Limit      int
}

type PostPage struct {
	Items         []PostView `json:"items"`
	CurrentPage   int        `json:"currentPage"`
	TotalPages    int        `json:"totalPages"`
	TotalItems    int64      `json:"totalItems"`
	ResultsOnPage int        `json:"resultsOnPage"`
}

type SearchPostsInput struct {
	Tag      string
	Category string
	Search   string
	Page     int
	Limit    int
}

type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalItems   int64 `json:"totalItems"`
	ItemsPerPage int   `json:"itemsPerPage"`
	HasNext      bool  `json:"hasNext"`
	HasPrev      bool  `json:"hasPrev"`
}

type SearchResult struct {
	Items      []PostView `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// normalizePage applies the default page size and clamps both values.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if limit == 0 {
		limit = defaultPageSize
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func pageSkip(page, limit int) int64 {
	return int64(page-1) * int64(limit)
}

func totalPages(total int64, limit int) int {
	if total == 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// ListPosts pages through posts newest first. Category names match ignoring
// case; a filter that names no existing category is a NotFoundError.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) (*PostPage, error) {
	page, limit := normalizePage(in.Page, in.Limit)
	filter := models.PostFilter{Published: in.Published}

	if names := splitCSV(in.Categories); len(names) > 0 {
		terms, err := s.categories.terms.FindByNames(ctx, names)
		if err != nil {
			return nil, err
		}
		if len(terms) == 0 {
			return nil, &models.AppError{Code: models.CodeNotFound, Message: "No categories match " + strings.Join(names, ", ")}
		}
		for _, t := range terms {
			filter.CategoryIDs = append(filter.CategoryIDs, t.ID)
		}
	}

	posts, total, err := s.posts.List(ctx, filter, pageSkip(page, limit), int64(limit))
	if err != nil {
		return nil, err
	}
	items, err := s.views.Posts(ctx, posts)
	if err != nil {
		return nil, err
	}
	return &PostPage{
		Items:         items,
		CurrentPage:   page,
		TotalPages:    totalPages(total, limit),
		TotalItems:    total,
		ResultsOnPage: len(items),
	}, nil
}

// SearchPosts filters published posts by tag, category and free text. The
// search text is matched literally against title or content.
func (s *PostService) SearchPosts(ctx context.Context, in SearchPostsInput) (*SearchResult, error) {
	page, limit := normalizePage(in.Page, in.Limit)
	published := true
	filter := models.PostFilter{Published: &published, Search: strings.TrimSpace(in.Search)}

	if in.Tag != "" {
		id, err := models.ParseID(in.Tag, "tag")
		if err != nil {
			return nil, err
		}
		filter.TagID = &id
	}
	if in.Category != "" {
		id, err := models.ParseID(in.Category, "category")
		if err != nil {
			return nil, err
		}
		filter.CategoryID = &id
	}

	posts, total, err := s.posts.List(ctx, filter, pageSkip(page, limit), int64(limit))
	if err != nil {
		return nil, err
	}
	items, err := s.views.Posts(ctx, posts)
	if err != nil {
		return nil, err
	}

	pages := totalPages(total, limit)
	return &SearchResult{
		Items: items,
		Pagination: Pagination{
			CurrentPage:  page,
			TotalPages:   pages,
			TotalItems:   total,
			ItemsPerPage: limit,
			HasNext:      page < pages,
			HasPrev:      page > 1,
		},
	}, nil
}

// RelatedPosts returns up to six published posts sharing a category or tag
// with the published post rawID.
func (s *PostService) RelatedPosts(ctx context.Context, rawID string) ([]PostView, error) {
	id, err := models.ParseID(rawID, "id")
	if err != nil {
		return nil, err
	}
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.IsPublished {
		return nil, models.NewNotFoundError("Post", rawID)
	}

	load := func() ([]PostView, error) {
		related, err := s.posts.Related(ctx, post, relatedLimit)
		if err != nil {
			return nil, err
		}
		return s.views.Posts(ctx, related)
	}
	if !s.flags.EnabledOr(featureflags.RelatedCache, "", true) {
		return load()
	}

	var views []PostView
	err = cache.Aside(ctx, cache.RelatedPostsKey(id.Hex()), &views, cache.RelatedPostsTTL, func() error {
		var err error
		views, err = load()
		return err
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// IncrementView counts one view of a published post and returns the new total.
func (s *PostService) IncrementView(ctx context.Context, rawID string) (int64, error) {
	id, err := models.ParseID(rawID, "id")
	if err != nil {
		return 0, err
	}
	return s.posts.IncrementViews(ctx, id)
}

// GetPost returns the post with its comment thread. Drafts are visible only
// to their author and admins. Fetching a published post counts a view.
func (s *PostService) GetPost(ctx context.Context, actor *models.Actor, rawID string) (*PostDetail, error) {
	id, err := models.ParseID(rawID, "id")
	if err != nil {
		return nil, err
	}
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !post.IsPublished {
		if actor == nil || (!actor.IsAdmin() && actor.ID != post.Author) {
			return nil, models.NewNotFoundError("Post", rawID)
		}
	} else if s.flags.EnabledOr(featureflags.ViewCounting, "", true) {
		views, err := s.posts.IncrementViews(ctx, id)
		if err != nil {
			return nil, err
		}
		post.Views = views
	}

	view, err := s.views.Post(ctx, post)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByPost(ctx, id)
	if err != nil {
		return nil, err
	}
	commentViews, err := s.views.Comments(ctx, comments, nil)
	if err != nil {
		return nil, err
	}
	return &PostDetail{PostView: *view, Comments: commentViews}, nil
}

// PostsByIDs returns views for ids in the given order, skipping missing posts.
func (s *PostService) PostsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]PostView, error) {
	posts, err := s.posts.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	ordered := make([]models.Post, 0, len(posts))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return s.views.Posts(ctx, ordered)
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
