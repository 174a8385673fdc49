// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post limits.
const (
	MaxPostTitleLength   = 300
	MaxPostContentLength = 100000
	MaxPostMediaFiles    = 5
)

// Post represents a blog post document.
type Post struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Title       string               `bson:"title" json:"title"`
	Content     string               `bson:"content" json:"content"`
	Media       []Media              `bson:"media" json:"media"`
	Avatar      Media                `bson:"avatar" json:"avatar"`
	Author      primitive.ObjectID   `bson:"author" json:"author"`
	Categories  []primitive.ObjectID `bson:"categories" json:"categories"`
	Tags        []primitive.ObjectID `bson:"tags" json:"tags"`
	Likes       []primitive.ObjectID `bson:"likes" json:"likes"`
	Views       int64                `bson:"views" json:"views"`
	IsPublished bool                 `bson:"isPublished" json:"isPublished"`
	PublishedAt *time.Time           `bson:"publishedAt,omitempty" json:"publishedAt,omitempty"`
	Comments    []primitive.ObjectID `bson:"comments" json:"comments"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// MediaPublicIDs lists every media host asset owned by the post.
func (p *Post) MediaPublicIDs() []string {
	var ids []string
	if p.Avatar.PublicID != "" {
		ids = append(ids, p.Avatar.PublicID)
	}
	for _, m := range p.Media {
		if m.PublicID != "" {
			ids = append(ids, m.PublicID)
		}
	}
	return ids
}

// PostFilter narrows post listings. Zero values mean "no constraint".
type PostFilter struct {
	Published   *bool
	CategoryIDs []primitive.ObjectID
	TagID       *primitive.ObjectID
	CategoryID  *primitive.ObjectID
	Search      string
	Author      *primitive.ObjectID
}
