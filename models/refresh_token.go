package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RefreshToken is a live refresh credential. ID is an HMAC of the raw token; the raw token is never stored.
type RefreshToken struct {
	ID        string             `bson:"_id"`
	JTI       string             `bson:"jti"`
	UserID    primitive.ObjectID `bson:"userId"`
	ExpiresAt time.Time          `bson:"expiresAt"`
	CreatedAt time.Time          `bson:"createdAt"`
}
