package service

import (
	"context"

	"github.com/kevinaaaquil/library/backend/models"
	"github.com/kevinaaaquil/library/backend/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserStore interface {
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	AppendBorrow(ctx context.Context, userID primitive.ObjectID, rec models.BorrowRecord) (*models.User, error)
}

type BookStore interface {
	InsertBook(ctx context.Context, book *models.Book) error
	AllBooks(ctx context.Context) ([]models.Book, error)
	BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error)
	BookByTitle(ctx context.Context, title string) (*models.Book, error)
	BooksByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Book, error)
	DeleteBook(ctx context.Context, id primitive.ObjectID) (*models.Book, error)
	AddReview(ctx context.Context, id primitive.ObjectID, review models.Review) (*models.Book, error)
	AddLike(ctx context.Context, id, userID primitive.ObjectID, allowDuplicates bool) (*models.Book, error)
	RemoveLike(ctx context.Context, id, userID primitive.ObjectID) (*models.Book, error)
	SetStock(ctx context.Context, id primitive.ObjectID, nonstock bool) (*models.Book, error)
	MarkBorrowed(ctx context.Context, id primitive.ObjectID) (*models.Book, error)
	SetCoverKey(ctx context.Context, id primitive.ObjectID, key string) (*models.Book, error)
	PullUserReferences(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// TokenStore is the refresh-token registry.
type TokenStore interface {
	SaveRefreshToken(ctx context.Context, tok models.RefreshToken) error
	RefreshTokenByID(ctx context.Context, id string) (*models.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, id string) error
	DeleteRefreshTokensForUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// Store is satisfied by both *store.DB and *store.Memory.
type Store interface {
	UserStore
	BookStore
	TokenStore
}

var (
	_ Store = (*store.DB)(nil)
	_ Store = (*store.Memory)(nil)
)
