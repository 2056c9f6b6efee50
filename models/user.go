package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Generation string

const (
	GenerationOlder   Generation = "older"
	GenerationYounger Generation = "younger"
)

var ErrInvalidGeneration = errors.New("generation must be 'older' or 'younger'")

func ParseGeneration(s string) (Generation, error) {
	switch Generation(s) {
	case GenerationOlder, GenerationYounger:
		return Generation(s), nil
	}
	return "", ErrInvalidGeneration
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Username       string               `bson:"username" json:"username"`
	Password       string               `bson:"password" json:"-"` // bcrypt hash, never serialized
	Role           Role                 `bson:"role" json:"role"`
	Generation     Generation           `bson:"generation" json:"generation"`
	Bio            string               `bson:"bio" json:"bio"`
	Interests      []string             `bson:"interests" json:"interests"`
	Achievements   []string             `bson:"achievements" json:"achievements"`
	ProfilePicture string               `bson:"profilePicture" json:"profilePicture"`
	Followers      []primitive.ObjectID `bson:"followers" json:"followers"`
	Following      []primitive.ObjectID `bson:"following" json:"following"`
	IsActive       bool                 `bson:"isActive" json:"isActive"`
	CreatedAt      time.Time            `bson:"createdAt" json:"createdAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsFollowing reports whether the user currently follows the given id.
func (u *User) IsFollowing(id primitive.ObjectID) bool {
	for _, f := range u.Following {
		if f == id {
			return true
		}
	}
	return false
}

// PublicUser is the projection returned by every listing and lookup that
// is not the caller's own profile.
type PublicUser struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	Username       string             `bson:"username" json:"username"`
	Generation     Generation         `bson:"generation" json:"generation"`
	ProfilePicture string             `bson:"profilePicture" json:"profilePicture"`
	Bio            string             `bson:"bio" json:"bio"`
	Achievements   []string           `bson:"achievements" json:"achievements"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:             u.ID,
		Username:       u.Username,
		Generation:     u.Generation,
		ProfilePicture: u.ProfilePicture,
		Bio:            u.Bio,
		Achievements:   u.Achievements,
	}
}

// NewUser builds a registration-ready user document. The password must
// already be hashed by the caller.
func NewUser(username, passwordHash string, generation Generation, interests []string) *User {
	if interests == nil {
		interests = []string{}
	}
	return &User{
		ID:           primitive.NewObjectID(),
		Username:     username,
		Password:     passwordHash,
		Role:         RoleUser,
		Generation:   generation,
		Interests:    interests,
		Achievements: []string{},
		Followers:    []primitive.ObjectID{},
		Following:    []primitive.ObjectID{},
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
}
