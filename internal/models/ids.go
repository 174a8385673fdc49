package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ParseID validates a 24-character hex identifier before it reaches the store.
// field names the input in the resulting InvalidIdentifier error.
func ParseID(raw, field string) (primitive.ObjectID, error) {
	if len(raw) != 24 {
		return primitive.NilObjectID, NewInvalidIDError(field)
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, NewInvalidIDError(field)
	}
	return id, nil
}

// ParseIDs validates every identifier in raw.
func ParseIDs(raw []string, field string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, r := range raw {
		id, err := ParseID(r, field)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ContainsID reports whether id is present in ids.
func ContainsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
