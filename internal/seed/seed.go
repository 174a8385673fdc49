package seed

import (
	"context"
	"fmt"
	"log"

	"inkwell/internal/database"
	"inkwell/internal/media"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// Options configure a seeding run.
type Options struct {
	Preset Preset
	// Seed makes the generated content reproducible. Zero picks a random seed.
	Seed int64
	// FastHash hashes the demo password with the minimum bcrypt cost.
	FastHash bool
}

// Stores are the repositories a Seeder writes through.
type Stores struct {
	Users      repository.UserRepository
	Posts      repository.PostRepository
	Comments   repository.CommentRepository
	Categories repository.TaxonomyRepository
	Tags       repository.TaxonomyRepository
}

// Summary counts what a run created.
type Summary struct {
	Categories int
	Tags       int
	Users      int
	Posts      int
	Drafts     int
	Comments   int
	Likes      int
	Bookmarks  int
}

// Seeder fills the database with demo content. Posts and comments go through
// the integrity cascades so every reference stays consistent.
type Seeder struct {
	stores    Stores
	integrity *service.IntegrityManager
	factory   *Factory
	catalog   *Catalog
	opts      Options
}

// NewStores builds the MongoDB repositories for db.
func NewStores(db *mongo.Database) Stores {
	return Stores{
		Users:      repository.NewUserRepository(db),
		Posts:      repository.NewPostRepository(db),
		Comments:   repository.NewCommentRepository(db),
		Categories: repository.NewCategoryRepository(db),
		Tags:       repository.NewTagRepository(db),
	}
}

// NewSeeder creates a Seeder. Seeded media are placeholder URLs, so the media
// host is never called.
func NewSeeder(stores Stores, tx database.Transactor, catalog *Catalog, opts Options) *Seeder {
	return &Seeder{
		stores:    stores,
		integrity: service.NewIntegrityManager(tx, stores.Users, stores.Posts, stores.Comments, media.Disabled{}),
		factory:   NewFactory(opts.Seed),
		catalog:   catalog,
		opts:      opts,
	}
}

// ClearAll drops every application collection and recreates the indexes.
func ClearAll(ctx context.Context, db *mongo.Database) error {
	log.Println("🗑️  Clearing existing data...")
	for _, ci := range database.PersistentIndexes() {
		if err := db.Collection(ci.Collection).Drop(ctx); err != nil {
			return fmt.Errorf("drop %s: %w", ci.Collection, err)
		}
	}
	return database.EnsureIndexes(ctx, db)
}

// Run seeds taxonomy, users, posts and engagement in that order.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	p := s.opts.Preset
	log.Printf("🌱 Seeding %d users and %d posts...", p.Users, p.Posts)
	sum := &Summary{}

	categories, err := s.seedTerms(ctx, s.stores.Categories, s.catalog.Categories)
	if err != nil {
		return nil, fmt.Errorf("failed to seed categories: %w", err)
	}
	sum.Categories = len(categories)
	tags, err := s.seedTerms(ctx, s.stores.Tags, s.catalog.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to seed tags: %w", err)
	}
	sum.Tags = len(tags)
	log.Printf("✓ %d categories and %d tags available", sum.Categories, sum.Tags)

	users, err := s.seedUsers(ctx, p.Users)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	sum.Users = len(users)
	log.Printf("✓ %d users created", sum.Users)
	if len(users) == 0 {
		return sum, nil
	}

	published, err := s.seedPosts(ctx, users, categories, tags, sum)
	if err != nil {
		return nil, fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("✓ %d posts created (%d drafts)", sum.Posts, sum.Drafts)

	if err := s.seedEngagement(ctx, users, published, sum); err != nil {
		return nil, fmt.Errorf("failed to seed engagement: %w", err)
	}
	log.Printf("✓ %d comments, %d likes, %d bookmarks", sum.Comments, sum.Likes, sum.Bookmarks)

	log.Println("🎉 Database seeding completed successfully!")
	return sum, nil
}

func (s *Seeder) seedTerms(ctx context.Context, repo repository.TaxonomyRepository, names []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(names))
	for _, name := range names {
		term, err := repo.FindOrCreate(ctx, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, term.ID)
	}
	return ids, nil
}

func (s *Seeder) seedUsers(ctx context.Context, count int) ([]primitive.ObjectID, error) {
	cost := bcrypt.DefaultCost
	if s.opts.FastHash {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, count)
	for i := 0; i < count; i++ {
		var overrides []func(*models.User)
		if i == 0 {
			// A stable account to log in with.
			overrides = append(overrides, func(u *models.User) {
				u.Name = "Demo Author"
				u.Email = "demo@inkwell.dev"
			})
		}
		user := s.factory.User(string(hash), overrides...)
		if err := s.stores.Users.Create(ctx, user); err != nil {
			if models.IsCode(err, models.CodeConflict) {
				log.Printf("Skipping existing user %s", user.Email)
				continue
			}
			return nil, err
		}
		ids = append(ids, user.ID)

		if (i+1)%100 == 0 {
			log.Printf("Created %d users...", i+1)
		}
	}
	return ids, nil
}

func (s *Seeder) seedPosts(ctx context.Context, users, categories, tags []primitive.ObjectID, sum *Summary) ([]primitive.ObjectID, error) {
	p := s.opts.Preset
	published := make([]primitive.ObjectID, 0, p.Posts)
	for i := 0; i < p.Posts; i++ {
		author := users[s.factory.Intn(len(users))]
		post := s.factory.Post(author, func(post *models.Post) {
			post.Categories = s.factory.Sample(categories, 1+s.factory.Intn(2))
			post.Tags = s.factory.Sample(tags, s.factory.Intn(4))
			post.IsPublished = !s.factory.Chance(p.DraftRatio)
		})
		if err := s.integrity.CreatePost(ctx, post); err != nil {
			return nil, err
		}
		sum.Posts++
		if post.IsPublished {
			published = append(published, post.ID)
		} else {
			sum.Drafts++
		}

		if (i+1)%100 == 0 {
			log.Printf("Created %d posts...", i+1)
		}
	}
	return published, nil
}

// seedEngagement adds comments and likes to published posts and bookmarks
// them. Counts per post vary around the preset value.
func (s *Seeder) seedEngagement(ctx context.Context, users, posts []primitive.ObjectID, sum *Summary) error {
	p := s.opts.Preset
	for _, postID := range posts {
		for n := s.factory.Intn(2*p.CommentsPerPost + 1); n > 0; n-- {
			comment := s.factory.Comment(postID, users[s.factory.Intn(len(users))])
			if err := s.integrity.AddComment(ctx, comment); err != nil {
				return err
			}
			sum.Comments++
		}

		for _, userID := range s.factory.Sample(users, s.factory.Intn(2*p.LikesPerPost+1)) {
			if _, err := s.stores.Posts.ToggleLike(ctx, postID, userID); err != nil {
				return err
			}
			sum.Likes++
		}
	}

	for _, userID := range users {
		for _, postID := range s.factory.Sample(posts, s.factory.Intn(p.BookmarksPerUser+1)) {
			if _, err := s.stores.Users.ToggleBookmark(ctx, userID, postID); err != nil {
				return err
			}
			sum.Bookmarks++
		}
	}
	return nil
}
