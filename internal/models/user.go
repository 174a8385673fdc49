package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the authorization role of a user.
type Role string

const (
	// RoleAdmin may moderate every entity and manage taxonomy.
	RoleAdmin Role = "Admin"
	// RoleAuthor is the default role for registered users.
	RoleAuthor Role = "Author"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleAuthor
}

// DefaultAvatarURL is shown until a user uploads an avatar.
const DefaultAvatarURL = "https://tse2.mm.bing.net/th?id=OIP.rBroxJeka0Jj81uw9g2PwAHaHa&pid=Api&P=0&h=220"

// User represents a registered account.
type User struct {
	ID                   primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Name                 string               `bson:"name" json:"name"`
	Email                string               `bson:"email" json:"email"`
	Password             string               `bson:"password" json:"-"`
	Role                 Role                 `bson:"role" json:"role"`
	Bio                  string               `bson:"bio" json:"bio"`
	Avatar               Media                `bson:"avatar" json:"avatar"`
	Bookmarks            []primitive.ObjectID `bson:"bookmarks" json:"bookmarks"`
	Posts                []primitive.ObjectID `bson:"posts" json:"posts"`
	Comments             []primitive.ObjectID `bson:"comments" json:"comments"`
	NewsletterSubscribed bool                 `bson:"newsletterSubscribed" json:"newsletterSubscribed"`
	IsActive             bool                 `bson:"isActive" json:"isActive"`
	ForgetPasswordToken  string               `bson:"forgetPasswordToken,omitempty" json:"-"`
	ForgetPasswordExpiry *time.Time           `bson:"forgetPasswordExpiry,omitempty" json:"-"`
	CreatedAt            time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// IsAdmin reports whether the user holds the Admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
