package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Book struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Title       string               `bson:"title" json:"title"`
	Description string               `bson:"description" json:"description"`
	Nonstock    bool                 `bson:"nonstock" json:"nonstock"` // true while the book is lent out
	Likes       []primitive.ObjectID `bson:"likes" json:"likes"`
	Reviews     []Review             `bson:"reviews" json:"reviews"`
	CoverKey    string               `bson:"coverKey,omitempty" json:"-"` // object key in S3
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

type Review struct {
	ID     primitive.ObjectID `bson:"_id" json:"_id"`
	UserID primitive.ObjectID `bson:"userId" json:"userId"`
	Review string             `bson:"review" json:"review"`
}
