package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/database"
	"inkwell/internal/featureflags"
	"inkwell/internal/media"
	"inkwell/internal/models"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memStore is an in-memory document store shared by the fake repositories.
// Failures can be injected per operation name, e.g. "posts.PullComments".
type memStore struct {
	mu       sync.Mutex
	users    map[primitive.ObjectID]*models.User
	posts    map[primitive.ObjectID]*models.Post
	comments map[primitive.ObjectID]*models.Comment
	terms    map[models.TaxonomyKind]map[primitive.ObjectID]*models.Term
	failOn   map[string]error
	clock    time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[primitive.ObjectID]*models.User{},
		posts:    map[primitive.ObjectID]*models.Post{},
		comments: map[primitive.ObjectID]*models.Comment{},
		terms: map[models.TaxonomyKind]map[primitive.ObjectID]*models.Term{
			models.KindCategory: {},
			models.KindTag:      {},
		},
		failOn: map[string]error{},
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp so ordering is deterministic.
func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) fail(op string) error {
	return s.failOn[op]
}

func (s *memStore) failNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[op] = err
}

func (s *memStore) post(id primitive.ObjectID) *models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.posts[id]; ok {
		return clonePost(p)
	}
	return nil
}

func (s *memStore) user(id primitive.ObjectID) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return cloneUser(u)
	}
	return nil
}

func cloneIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, len(ids))
	copy(out, ids)
	return out
}

func clonePost(p *models.Post) *models.Post {
	c := *p
	c.Media = append([]models.Media{}, p.Media...)
	c.Categories = cloneIDs(p.Categories)
	c.Tags = cloneIDs(p.Tags)
	c.Likes = cloneIDs(p.Likes)
	c.Comments = cloneIDs(p.Comments)
	return &c
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Bookmarks = cloneIDs(u.Bookmarks)
	c.Posts = cloneIDs(u.Posts)
	c.Comments = cloneIDs(u.Comments)
	return &c
}

func addID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	if models.ContainsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

func pullIDs(ids []primitive.ObjectID, remove ...primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0:0]
	for _, id := range ids {
		if !models.ContainsID(remove, id) {
			out = append(out, id)
		}
	}
	return out
}

func toggleID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	if models.ContainsID(ids, id) {
		return pullIDs(ids, id)
	}
	return append(ids, id)
}

type memUsers struct{ s *memStore }

func (r memUsers) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.GetByID"); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, models.NewNotFoundError("User", id.Hex())
	}
	return cloneUser(u), nil
}

func (r memUsers) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out = append(out, *cloneUser(u))
		}
	}
	return out, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r memUsers) GetByResetToken(_ context.Context, hash string, at time.Time) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.ForgetPasswordToken == hash && u.ForgetPasswordExpiry != nil && u.ForgetPasswordExpiry.After(at) {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r memUsers) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.Create"); err != nil {
		return err
	}
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return models.NewConflictError("User already exists")
		}
	}
	ts := r.s.tick()
	user.ID = primitive.NewObjectID()
	user.CreatedAt, user.UpdatedAt = ts, ts
	for _, ids := range []*[]primitive.ObjectID{&user.Bookmarks, &user.Posts, &user.Comments} {
		if *ids == nil {
			*ids = []primitive.ObjectID{}
		}
	}
	r.s.users[user.ID] = cloneUser(user)
	return nil
}

func (r memUsers) update(id primitive.ObjectID, fn func(u *models.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return models.NewNotFoundError("User", id.Hex())
	}
	fn(u)
	return nil
}

func (r memUsers) UpdateProfile(_ context.Context, user *models.User) error {
	return r.update(user.ID, func(u *models.User) {
		u.Name, u.Bio, u.Avatar = user.Name, user.Bio, user.Avatar
		u.NewsletterSubscribed = user.NewsletterSubscribed
	})
}

func (r memUsers) UpdatePassword(_ context.Context, id primitive.ObjectID, hash string) error {
	return r.update(id, func(u *models.User) {
		u.Password = hash
		u.ForgetPasswordToken, u.ForgetPasswordExpiry = "", nil
	})
}

func (r memUsers) SetResetToken(_ context.Context, id primitive.ObjectID, hash string, expiry time.Time) error {
	return r.update(id, func(u *models.User) {
		u.ForgetPasswordToken, u.ForgetPasswordExpiry = hash, &expiry
	})
}

func (r memUsers) ClearResetToken(_ context.Context, id primitive.ObjectID) error {
	_ = r.update(id, func(u *models.User) {
		u.ForgetPasswordToken, u.ForgetPasswordExpiry = "", nil
	})
	return nil
}

func (r memUsers) Delete(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.Delete"); err != nil {
		return err
	}
	delete(r.s.users, id)
	return nil
}

func (r memUsers) List(_ context.Context) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.User{}
	for _, u := range r.s.users {
		out = append(out, *cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memUsers) ToggleBookmark(_ context.Context, userID, postID primitive.ObjectID) (*models.User, error) {
	var out *models.User
	err := r.update(userID, func(u *models.User) {
		u.Bookmarks = toggleID(u.Bookmarks, postID)
		out = cloneUser(u)
	})
	return out, err
}

func (r memUsers) AddPost(_ context.Context, userID, postID primitive.ObjectID) error {
	if err := r.s.fail("users.AddPost"); err != nil {
		return err
	}
	return r.update(userID, func(u *models.User) { u.Posts = addID(u.Posts, postID) })
}

func (r memUsers) PullPost(_ context.Context, postID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		u.Posts = pullIDs(u.Posts, postID)
		u.Bookmarks = pullIDs(u.Bookmarks, postID)
	}
	return nil
}

func (r memUsers) AddComment(_ context.Context, userID, commentID primitive.ObjectID) error {
	return r.update(userID, func(u *models.User) { u.Comments = addID(u.Comments, commentID) })
}

func (r memUsers) PullComments(_ context.Context, ids []primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.PullComments"); err != nil {
		return err
	}
	for _, u := range r.s.users {
		u.Comments = pullIDs(u.Comments, ids...)
	}
	return nil
}

type memPosts struct{ s *memStore }

func sortNewestFirst(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID.Hex() > posts[j].ID.Hex()
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}

func (r memPosts) Create(_ context.Context, post *models.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("posts.Create"); err != nil {
		return err
	}
	ts := r.s.tick()
	post.ID = primitive.NewObjectID()
	post.CreatedAt, post.UpdatedAt = ts, ts
	if post.IsPublished && post.PublishedAt == nil {
		post.PublishedAt = &ts
	}
	r.s.posts[post.ID] = clonePost(post)
	return nil
}

func (r memPosts) GetByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok {
		return nil, models.NewNotFoundError("Post", id.Hex())
	}
	return clonePost(p), nil
}

func (r memPosts) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Post{}
	for _, id := range ids {
		if p, ok := r.s.posts[id]; ok {
			out = append(out, *clonePost(p))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r memPosts) match(fn func(p *models.Post) bool) []models.Post {
	out := []models.Post{}
	for _, p := range r.s.posts {
		if fn(p) {
			out = append(out, *clonePost(p))
		}
	}
	sortNewestFirst(out)
	return out
}

func (r memPosts) ListByAuthor(_ context.Context, authorID primitive.ObjectID) ([]models.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.match(func(p *models.Post) bool { return p.Author == authorID }), nil
}

func (r memPosts) List(_ context.Context, f models.PostFilter, skip, limit int64) ([]models.Post, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	search := strings.ToLower(f.Search)
	all := r.match(func(p *models.Post) bool {
		if f.Published != nil && p.IsPublished != *f.Published {
			return false
		}
		if f.Author != nil && p.Author != *f.Author {
			return false
		}
		if len(f.CategoryIDs) > 0 {
			found := false
			for _, id := range f.CategoryIDs {
				found = found || models.ContainsID(p.Categories, id)
			}
			if !found {
				return false
			}
		}
		if f.CategoryID != nil && !models.ContainsID(p.Categories, *f.CategoryID) {
			return false
		}
		if f.TagID != nil && !models.ContainsID(p.Tags, *f.TagID) {
			return false
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Title), search) &&
			!strings.Contains(strings.ToLower(p.Content), search) {
			return false
		}
		return true
	})

	total := int64(len(all))
	if skip >= total {
		return []models.Post{}, total, nil
	}
	end := skip + limit
	if end > total {
		end = total
	}
	return all[skip:end], total, nil
}

func (r memPosts) Related(_ context.Context, post *models.Post, limit int64) ([]models.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if len(post.Categories) == 0 && len(post.Tags) == 0 {
		return []models.Post{}, nil
	}
	out := r.match(func(p *models.Post) bool {
		if p.ID == post.ID || !p.IsPublished {
			return false
		}
		for _, id := range post.Categories {
			if models.ContainsID(p.Categories, id) {
				return true
			}
		}
		for _, id := range post.Tags {
			if models.ContainsID(p.Tags, id) {
				return true
			}
		}
		return false
	})
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memPosts) Update(_ context.Context, post *models.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("posts.Update"); err != nil {
		return err
	}
	p, ok := r.s.posts[post.ID]
	if !ok {
		return models.NewNotFoundError("Post", post.ID.Hex())
	}
	p.Title, p.Content, p.Avatar = post.Title, post.Content, post.Avatar
	p.Media = append([]models.Media{}, post.Media...)
	p.Categories, p.Tags = cloneIDs(post.Categories), cloneIDs(post.Tags)
	p.IsPublished, p.PublishedAt = post.IsPublished, post.PublishedAt
	p.UpdatedAt = r.s.tick()
	return nil
}

func (r memPosts) Delete(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.posts, id)
	return nil
}

func (r memPosts) ToggleLike(_ context.Context, postID, userID primitive.ObjectID) (*models.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[postID]
	if !ok {
		return nil, models.NewNotFoundError("Post", postID.Hex())
	}
	p.Likes = toggleID(p.Likes, userID)
	return clonePost(p), nil
}

func (r memPosts) IncrementViews(_ context.Context, id primitive.ObjectID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok || !p.IsPublished {
		return 0, models.NewNotFoundError("Post", id.Hex())
	}
	p.Views++
	return p.Views, nil
}

func (r memPosts) AddComment(_ context.Context, postID, commentID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("posts.AddComment"); err != nil {
		return err
	}
	p, ok := r.s.posts[postID]
	if !ok {
		return models.NewNotFoundError("Post", postID.Hex())
	}
	p.Comments = addID(p.Comments, commentID)
	return nil
}

func (r memPosts) PullComments(_ context.Context, ids []primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("posts.PullComments"); err != nil {
		return err
	}
	for _, p := range r.s.posts {
		p.Comments = pullIDs(p.Comments, ids...)
	}
	return nil
}

func (r memPosts) PullLiker(_ context.Context, userID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.posts {
		p.Likes = pullIDs(p.Likes, userID)
	}
	return nil
}

func (r memPosts) PullTaxonomy(_ context.Context, kind models.TaxonomyKind, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("posts.PullTaxonomy"); err != nil {
		return err
	}
	for _, p := range r.s.posts {
		if kind == models.KindTag {
			p.Tags = pullIDs(p.Tags, id)
		} else {
			p.Categories = pullIDs(p.Categories, id)
		}
	}
	return nil
}

type memComments struct{ s *memStore }

func (r memComments) Create(_ context.Context, c *models.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ts := r.s.tick()
	c.ID = primitive.NewObjectID()
	c.CreatedAt, c.UpdatedAt = ts, ts
	cp := *c
	r.s.comments[c.ID] = &cp
	return nil
}

func (r memComments) GetByID(_ context.Context, id primitive.ObjectID) (*models.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.comments[id]
	if !ok {
		return nil, models.NewNotFoundError("Comment", id.Hex())
	}
	cp := *c
	return &cp, nil
}

func (r memComments) UpdateContent(_ context.Context, id primitive.ObjectID, content string) (*models.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.comments[id]
	if !ok {
		return nil, models.NewNotFoundError("Comment", id.Hex())
	}
	c.Content = content
	c.UpdatedAt = r.s.tick()
	cp := *c
	return &cp, nil
}

func (r memComments) Delete(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.comments, id)
	return nil
}

func (r memComments) filter(fn func(c *models.Comment) bool, newestFirst bool) []models.Comment {
	out := []models.Comment{}
	for _, c := range r.s.comments {
		if fn(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r memComments) ListByPost(_ context.Context, postID primitive.ObjectID) ([]models.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.filter(func(c *models.Comment) bool { return c.Post == postID }, false), nil
}

func (r memComments) ListByPosts(_ context.Context, postIDs []primitive.ObjectID) ([]models.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.filter(func(c *models.Comment) bool { return models.ContainsID(postIDs, c.Post) }, false), nil
}

func (r memComments) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.filter(func(c *models.Comment) bool { return c.User == userID }, false), nil
}

func (r memComments) ListAll(_ context.Context) ([]models.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.filter(func(*models.Comment) bool { return true }, true), nil
}

func (r memComments) DeleteMany(_ context.Context, ids []primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("comments.DeleteMany"); err != nil {
		return err
	}
	for _, id := range ids {
		delete(r.s.comments, id)
	}
	return nil
}

type memTerms struct {
	s    *memStore
	kind models.TaxonomyKind
}

func (r memTerms) Kind() models.TaxonomyKind { return r.kind }

func (r memTerms) all() map[primitive.ObjectID]*models.Term { return r.s.terms[r.kind] }

func (r memTerms) byName(name string) *models.Term {
	for _, t := range r.all() {
		if strings.EqualFold(t.Name, strings.TrimSpace(name)) {
			return t
		}
	}
	return nil
}

func (r memTerms) Create(_ context.Context, term *models.Term) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	term.Name = strings.TrimSpace(term.Name)
	if r.byName(term.Name) != nil {
		return models.NewConflictError(fmt.Sprintf("%s %q already exists", r.kind, term.Name))
	}
	ts := r.s.tick()
	term.ID = primitive.NewObjectID()
	term.CreatedAt, term.UpdatedAt = ts, ts
	cp := *term
	r.all()[term.ID] = &cp
	return nil
}

func (r memTerms) GetByID(_ context.Context, id primitive.ObjectID) (*models.Term, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.all()[id]
	if !ok {
		return nil, models.NewNotFoundError(string(r.kind), id.Hex())
	}
	cp := *t
	return &cp, nil
}

func (r memTerms) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Term, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Term{}
	for _, id := range ids {
		if t, ok := r.all()[id]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r memTerms) FindByName(_ context.Context, name string) (*models.Term, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t := r.byName(name); t != nil {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (r memTerms) FindByNames(_ context.Context, names []string) ([]models.Term, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Term{}
	for _, t := range r.all() {
		for _, n := range names {
			if strings.EqualFold(t.Name, strings.TrimSpace(n)) {
				out = append(out, *t)
				break
			}
		}
	}
	return out, nil
}

func (r memTerms) FindOrCreate(ctx context.Context, name string) (*models.Term, error) {
	if t, _ := r.FindByName(ctx, name); t != nil {
		return t, nil
	}
	term := &models.Term{Name: name}
	if err := r.Create(ctx, term); err != nil {
		return nil, err
	}
	return term, nil
}

func (r memTerms) List(_ context.Context) ([]models.Term, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Term{}
	for _, t := range r.all() {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (r memTerms) Update(_ context.Context, term *models.Term) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if other := r.byName(term.Name); other != nil && other.ID != term.ID {
		return models.NewConflictError(fmt.Sprintf("%s %q already exists", r.kind, term.Name))
	}
	t, ok := r.all()[term.ID]
	if !ok {
		return models.NewNotFoundError(string(r.kind), term.ID.Hex())
	}
	t.Name, t.Description = term.Name, term.Description
	t.UpdatedAt = r.s.tick()
	return nil
}

func (r memTerms) Delete(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.all(), id)
	return nil
}

// hostStub is a media.Host recording uploads and destroys.
type hostStub struct {
	mu        sync.Mutex
	uploadFn  func(ctx context.Context, f media.File, opts media.UploadOptions) (*models.Media, error)
	destroyFn func(ctx context.Context, publicID string) error
	uploads   []media.UploadOptions
	destroyed []string
}

func (h *hostStub) Upload(ctx context.Context, f media.File, opts media.UploadOptions) (*models.Media, error) {
	h.mu.Lock()
	h.uploads = append(h.uploads, opts)
	n := len(h.uploads)
	h.mu.Unlock()
	if h.uploadFn != nil {
		return h.uploadFn(ctx, f, opts)
	}
	id := fmt.Sprintf("%s/asset-%d", opts.Folder, n)
	return &models.Media{PublicID: id, SecureURL: "https://cdn.test/" + id}, nil
}

func (h *hostStub) Destroy(ctx context.Context, publicID string) error {
	h.mu.Lock()
	h.destroyed = append(h.destroyed, publicID)
	h.mu.Unlock()
	if h.destroyFn != nil {
		return h.destroyFn(ctx, publicID)
	}
	return nil
}

type sentMail struct {
	to, subject, html string
}

// mailStub is a mailer.Mailer recording every message.
type mailStub struct {
	sendFn func(ctx context.Context, to, subject, html string) error
	sent   []sentMail
}

func (m *mailStub) Send(ctx context.Context, to, subject, html string) error {
	m.sent = append(m.sent, sentMail{to, subject, html})
	if m.sendFn != nil {
		return m.sendFn(ctx, to, subject, html)
	}
	return nil
}

type tokenStub struct {
	revoked []string
}

func (t *tokenStub) Issue(actor *models.Actor) (string, error) {
	return "token-" + actor.ID.Hex(), nil
}

func (t *tokenStub) Revoke(_ context.Context, claims *auth.Claims) error {
	t.revoked = append(t.revoked, claims.RegisteredClaims.ID)
	return nil
}

type testEnv struct {
	store      *memStore
	host       *hostStub
	mail       *mailStub
	tokens     *tokenStub
	integrity  *IntegrityManager
	categories *TaxonomyService
	tags       *TaxonomyService
	posts      *PostService
	comments   *CommentService
	users      *UserService
}

func newTestEnv(t *testing.T, flags string) *testEnv {
	t.Helper()
	env := &testEnv{
		store:  newMemStore(),
		host:   &hostStub{},
		mail:   &mailStub{},
		tokens: &tokenStub{},
	}
	users := memUsers{env.store}
	posts := memPosts{env.store}
	comments := memComments{env.store}
	uploads := UploadPolicy{Host: env.host, Folder: "inkwell", MaxBytes: 1 << 20}

	env.integrity = NewIntegrityManager(database.NoopTransactor{}, users, posts, comments, env.host)
	env.categories = NewTaxonomyService(memTerms{env.store, models.KindCategory}, env.integrity)
	env.tags = NewTaxonomyService(memTerms{env.store, models.KindTag}, env.integrity)
	env.posts = NewPostService(posts, users, comments, env.categories, env.tags, env.integrity,
		uploads, nil, featureflags.NewManager(flags))
	env.comments = NewCommentService(comments, posts, users, env.integrity)
	env.users = NewUserService(users, env.posts, env.integrity, env.tokens, env.mail, uploads, "https://blog.test/")
	return env
}

// seedUser stores a user directly and returns the matching actor.
func (env *testEnv) seedUser(t *testing.T, name string, role models.Role) *models.Actor {
	t.Helper()
	u := &models.User{
		Name:     name,
		Email:    strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, memUsers{env.store}.Create(context.Background(), u))
	return models.ActorFromUser(u)
}

func (env *testEnv) seedPost(t *testing.T, author *models.Actor, title string, published bool, categories ...string) *PostView {
	t.Helper()
	view, err := env.posts.CreatePost(context.Background(), author, CreatePostInput{
		Title:       title,
		Content:     "Content of " + title,
		Categories:  categories,
		IsPublished: &published,
	})
	require.NoError(t, err)
	return view
}

func pngFile(t *testing.T, name string) *media.File {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &media.File{Name: name, ContentType: "image/png", Content: buf.Bytes()}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, models.IsCode(err, code), "expected %s, got %v", code, err)
}
