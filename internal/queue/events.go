package queue

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Exchange and routing keys for auth events.
const (
	Exchange          = "auth.events"
	KeyUserRegistered = "user.registered"
	KeyUserLoggedIn   = "user.loggedin"
)

// UserRegistered is emitted when a first social login creates a local user.
type UserRegistered struct {
	UserID   primitive.ObjectID `json:"user_id"`
	Username string             `json:"username"`
	Email    string             `json:"email"`
	Provider string             `json:"provider"`
}

// UserLoggedIn is emitted on every successful social login.
type UserLoggedIn struct {
	UserID   primitive.ObjectID `json:"user_id"`
	Username string             `json:"username"`
	Provider string             `json:"provider"`
}
