// Package service implements the business operations behind the HTTP API.
package service

import (
	"inkwell/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequireActor fails with UnauthenticatedError when no identity is present.
func RequireActor(actor *models.Actor) error {
	if actor == nil || actor.ID.IsZero() {
		return models.NewUnauthenticatedError("Authentication required")
	}
	return nil
}

// OwnerOrAdmin allows actor when it owns the target or holds the Admin role.
// The actor check runs before ownership is compared.
func OwnerOrAdmin(actor *models.Actor, ownerID primitive.ObjectID, action string) error {
	if err := RequireActor(actor); err != nil {
		return err
	}
	if actor.IsAdmin() || actor.ID == ownerID {
		return nil
	}
	return models.NewForbiddenError("You are not authorized to " + action)
}

// AdminOnly allows actor only when it holds the Admin role.
func AdminOnly(actor *models.Actor) error {
	if err := RequireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return models.NewForbiddenError("Admin access required")
	}
	return nil
}
