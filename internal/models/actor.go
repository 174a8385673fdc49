package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Actor is the authenticated identity decoded from a token. Its role is
// trusted as issued and is not re-read from the store.
type Actor struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Email string             `json:"email"`
	Role  Role               `json:"role"`
}

// IsAdmin reports whether the actor holds the Admin role.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// ActorFromUser builds the token identity of u.
func ActorFromUser(u *User) *Actor {
	return &Actor{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}
