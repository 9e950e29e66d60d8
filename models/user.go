package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role constants for user authorization.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var ValidRoles = []string{RoleUser, RoleAdmin}

func RoleValid(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Role      string             `bson:"role" json:"role"`
	Password  string             `bson:"password" json:"-"` // bcrypt hash
	Borrowed  []BorrowRecord     `bson:"borrowed" json:"borrowed"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// BorrowRecord links a user to a borrowed book. Date is the issue time; Due is caller supplied.
type BorrowRecord struct {
	ID     primitive.ObjectID `bson:"_id" json:"_id"`
	BookID primitive.ObjectID `bson:"bookId" json:"bookId"`
	Date   time.Time          `bson:"date" json:"date"`
	Due    time.Time          `bson:"due" json:"due"`
}

// BookSummary is the slice of a book shown inside a user's profile.
type BookSummary struct {
	ID          primitive.ObjectID `json:"_id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
}

// ProfileBorrow is a borrow record with its book resolved. Book is nil when the book no longer exists.
type ProfileBorrow struct {
	ID     primitive.ObjectID `json:"_id"`
	BookID *BookSummary       `json:"bookId"`
	Date   time.Time          `json:"date"`
	Due    time.Time          `json:"due"`
}

// Profile is a user as returned by GET /user/profile/{id}.
type Profile struct {
	ID        primitive.ObjectID `json:"_id"`
	Name      string             `json:"name"`
	Email     string             `json:"email"`
	Role      string             `json:"role"`
	Borrowed  []ProfileBorrow    `json:"borrowed"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
