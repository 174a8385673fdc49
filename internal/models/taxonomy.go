package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaxonomyKind distinguishes categories from tags. Both share one document shape.
type TaxonomyKind string

const (
	KindCategory TaxonomyKind = "Category"
	KindTag      TaxonomyKind = "Tag"
)

// MaxNameLength is the longest name accepted for the kind.
func (k TaxonomyKind) MaxNameLength() int {
	if k == KindTag {
		return 50
	}
	return 100
}

// PostField is the Post array that references documents of this kind.
func (k TaxonomyKind) PostField() string {
	if k == KindTag {
		return "tags"
	}
	return "categories"
}

// Term is a Category or Tag document.
type Term struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Category groups posts by subject.
type Category = Term

// Tag labels posts with keywords.
type Tag = Term
