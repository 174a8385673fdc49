// Package seed provides helpers to create demo data for development. These
// helpers are intended for local databases only.
package seed

import (
	"fmt"
	"strings"

	"inkwell/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "InkwellDemo123"

// Factory builds domain documents filled with fake content. It never touches
// the database; the Seeder persists what it builds.
type Factory struct {
	faker *gofakeit.Faker
}

// NewFactory returns a Factory. A zero seed picks a random one.
func NewFactory(seed int64) *Factory {
	return &Factory{faker: gofakeit.New(seed)}
}

// User builds an author account. passwordHash is stored as is.
func (f *Factory) User(passwordHash string, overrides ...func(*models.User)) *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	handle := strings.ToLower(fmt.Sprintf("%s.%s%d", first, last, f.faker.Number(10, 9999)))
	user := &models.User{
		Name:                 first + " " + last,
		Email:                handle + "@example.com",
		Password:             passwordHash,
		Role:                 models.RoleAuthor,
		Bio:                  f.faker.Sentence(12),
		Avatar:               models.Media{SecureURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID())},
		NewsletterSubscribed: f.faker.Bool(),
		IsActive:             true,
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// Post builds a post by author. Thumbnails and media point at placeholder
// images rather than the media host.
func (f *Factory) Post(author primitive.ObjectID, overrides ...func(*models.Post)) *models.Post {
	title := strings.TrimSuffix(f.faker.Sentence(f.faker.Number(4, 9)), ".")
	post := &models.Post{
		Title:       title,
		Content:     f.faker.Paragraph(f.faker.Number(2, 6), f.faker.Number(3, 6), 12, "\n\n"),
		Author:      author,
		Avatar:      models.Media{SecureURL: fmt.Sprintf("https://picsum.photos/seed/%s/800/450", f.faker.UUID())},
		IsPublished: true,
	}
	for i := f.faker.Number(0, 2); i > 0; i-- {
		post.Media = append(post.Media, models.Media{
			SecureURL: fmt.Sprintf("https://picsum.photos/seed/%s/1200/800", f.faker.UUID()),
		})
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// Comment builds a comment by user on post.
func (f *Factory) Comment(post, user primitive.ObjectID) *models.Comment {
	content := f.faker.Sentence(f.faker.Number(5, 30))
	if runes := []rune(content); len(runes) > models.MaxCommentLength {
		content = string(runes[:models.MaxCommentLength])
	}
	return &models.Comment{Content: content, Post: post, User: user}
}

// Chance reports true with probability p.
func (f *Factory) Chance(p float64) bool {
	return f.faker.Float64Range(0, 1) < p
}

// Intn returns a number in [0, n).
func (f *Factory) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return f.faker.Number(0, n-1)
}

// Sample picks up to n distinct ids from ids in random order.
func (f *Factory) Sample(ids []primitive.ObjectID, n int) []primitive.ObjectID {
	if n > len(ids) {
		n = len(ids)
	}
	if n <= 0 {
		return nil
	}
	shuffled := append([]primitive.ObjectID(nil), ids...)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := f.faker.Number(0, i)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:n]
}
