package store

import (
	"context"
	"time"

	"github.com/kevinaaaquil/library/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (db *DB) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := db.Users().FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (db *DB) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := db.Users().FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// CreateUser inserts user and fills in its ID. A unique-index violation on email returns ErrDuplicate.
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Borrowed == nil {
		user.Borrowed = []models.BorrowRecord{}
	}
	if _, err := db.Users().InsertOne(ctx, user); err != nil {
		return translate(err)
	}
	return nil
}

func (db *DB) DeleteUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := db.Users().FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// AppendBorrow pushes rec onto the user's borrowed list and returns the updated user.
func (db *DB) AppendBorrow(ctx context.Context, userID primitive.ObjectID, rec models.BorrowRecord) (*models.User, error) {
	var u models.User
	update := bson.M{
		"$push": bson.M{"borrowed": rec},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	if err := db.Users().FindOneAndUpdate(ctx, bson.M{"_id": userID}, update, returnAfter).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}
