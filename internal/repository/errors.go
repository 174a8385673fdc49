// Package repository implements the data access layer for the application.
package repository

import (
	"errors"
	"time"

	"inkwell/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// mapError translates driver errors into application errors.
func mapError(err error, resource string, id interface{}) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}

// isDuplicateKey reports a unique index violation.
func isDuplicateKey(err error) bool {
	return err != nil && mongo.IsDuplicateKeyError(err)
}

func idFilter(id primitive.ObjectID) bson.M {
	return bson.M{"_id": id}
}

func inIDs(ids []primitive.ObjectID) bson.M {
	return bson.M{"$in": ids}
}

// now is stubbed in tests.
var now = func() time.Time {
	return time.Now().UTC()
}

// toggleMember returns an aggregation-pipeline update that removes value from
// field when present and appends it otherwise. The single-document update is
// atomic, so concurrent toggles never leave a duplicate.
func toggleMember(field string, value primitive.ObjectID) mongo.Pipeline {
	current := bson.M{"$ifNull": bson.A{"$" + field, bson.A{}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			field: bson.M{"$cond": bson.M{
				"if": bson.M{"$in": bson.A{value, current}},
				"then": bson.M{"$filter": bson.M{
					"input": current,
					"as":    "member",
					"cond":  bson.M{"$ne": bson.A{"$$member", value}},
				}},
				"else": bson.M{"$concatArrays": bson.A{current, bson.A{value}}},
			}},
			"updatedAt": "$$NOW",
		}}},
	}
}
