package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Social login providers. The value is stored as-is in the user document
// and used as the path segment in /api/oauth/:provider routes.
const (
	ProviderGoogle = "google"
	ProviderKakao  = "kakao"
)

// User is the local account a provider identity maps onto.
// (Provider, ExternalID) identifies at most one user; Username is globally
// unique and doubles as the session token subject.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username"      json:"username"`
	Email        string             `bson:"email"         json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"` // unusable random hash for federated accounts
	Provider     string             `bson:"provider"      json:"provider"`
	ExternalID   string             `bson:"external_id"   json:"external_id"` // provider-side user id
	ProfileImage string             `bson:"profile_image,omitempty" json:"profile_image,omitempty"`
	CreatedAt    time.Time          `bson:"created_at"    json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"    json:"updated_at"`
}
