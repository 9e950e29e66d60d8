package store

import (
	"context"

	"github.com/kevinaaaquil/library/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (db *DB) SaveRefreshToken(ctx context.Context, tok models.RefreshToken) error {
	_, err := db.RefreshTokens().InsertOne(ctx, tok)
	return translate(err)
}

// RefreshTokenByID returns ErrNotFound once the token is revoked or the TTL monitor has reaped it.
func (db *DB) RefreshTokenByID(ctx context.Context, id string) (*models.RefreshToken, error) {
	var tok models.RefreshToken
	if err := db.RefreshTokens().FindOne(ctx, bson.M{"_id": id}).Decode(&tok); err != nil {
		return nil, translate(err)
	}
	return &tok, nil
}

func (db *DB) DeleteRefreshToken(ctx context.Context, id string) error {
	_, err := db.RefreshTokens().DeleteOne(ctx, bson.M{"_id": id})
	return translate(err)
}

func (db *DB) DeleteRefreshTokensForUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := db.RefreshTokens().DeleteMany(ctx, bson.M{"userId": userID})
	if err != nil {
		return 0, translate(err)
	}
	return res.DeletedCount, nil
}
