package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/kevinaaaquil/library/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory is an in-process store with the same method set as DB. Each call is atomic on its own;
// nothing spans calls, so it exhibits the same per-document guarantees as MongoDB.
type Memory struct {
	mu      sync.RWMutex
	users   map[primitive.ObjectID]models.User
	books   map[primitive.ObjectID]models.Book
	refresh map[string]models.RefreshToken
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:   make(map[primitive.ObjectID]models.User),
		books:   make(map[primitive.ObjectID]models.Book),
		refresh: make(map[string]models.RefreshToken),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func cloneUser(u models.User) *models.User {
	u.Borrowed = append([]models.BorrowRecord{}, u.Borrowed...)
	return &u
}

func cloneBook(b models.Book) *models.Book {
	b.Likes = append([]primitive.ObjectID{}, b.Likes...)
	b.Reviews = append([]models.Review{}, b.Reviews...)
	return &b
}

func (m *Memory) UserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *Memory) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Borrowed == nil {
		user.Borrowed = []models.BorrowRecord{}
	}
	m.users[user.ID] = *cloneUser(*user)
	return nil
}

func (m *Memory) DeleteUser(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.users, id)
	return cloneUser(u), nil
}

func (m *Memory) AppendBorrow(_ context.Context, userID primitive.ObjectID, rec models.BorrowRecord) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	u.Borrowed = append(append([]models.BorrowRecord{}, u.Borrowed...), rec)
	u.UpdatedAt = m.now()
	m.users[userID] = u
	return cloneUser(u), nil
}

func (m *Memory) InsertBook(_ context.Context, book *models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.books {
		if b.Title == book.Title {
			return ErrDuplicate
		}
	}
	if book.ID.IsZero() {
		book.ID = primitive.NewObjectID()
	}
	if book.Likes == nil {
		book.Likes = []primitive.ObjectID{}
	}
	if book.Reviews == nil {
		book.Reviews = []models.Review{}
	}
	m.books[book.ID] = *cloneBook(*book)
	return nil
}

func (m *Memory) AllBooks(_ context.Context) ([]models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	books := make([]models.Book, 0, len(m.books))
	for _, b := range m.books {
		books = append(books, *cloneBook(b))
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].CreatedAt.Equal(books[j].CreatedAt) {
			return books[i].ID.Hex() < books[j].ID.Hex()
		}
		return books[i].CreatedAt.Before(books[j].CreatedAt)
	})
	return books, nil
}

func (m *Memory) BookByID(_ context.Context, id primitive.ObjectID) (*models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBook(b), nil
}

func (m *Memory) BookByTitle(_ context.Context, title string) (*models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.books {
		if b.Title == title {
			return cloneBook(b), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) BooksByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[primitive.ObjectID]models.Book, len(ids))
	for _, id := range ids {
		if b, ok := m.books[id]; ok {
			out[id] = models.Book{ID: b.ID, Title: b.Title, Description: b.Description}
		}
	}
	return out, nil
}

func (m *Memory) DeleteBook(_ context.Context, id primitive.ObjectID) (*models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.books, id)
	return cloneBook(b), nil
}

// mutateBook applies fn to a copy of the book under the write lock and stores the result.
// fn returning false leaves the book untouched and yields ErrPreconditionFailed.
func (m *Memory) mutateBook(id primitive.ObjectID, fn func(b *models.Book) bool) (*models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	b := cloneBook(cur)
	if !fn(b) {
		return nil, ErrPreconditionFailed
	}
	b.UpdatedAt = m.now()
	m.books[id] = *b
	return cloneBook(*b), nil
}

func (m *Memory) AddReview(_ context.Context, id primitive.ObjectID, review models.Review) (*models.Book, error) {
	return m.mutateBook(id, func(b *models.Book) bool {
		b.Reviews = append(b.Reviews, review)
		return true
	})
}

func (m *Memory) AddLike(_ context.Context, id, userID primitive.ObjectID, allowDuplicates bool) (*models.Book, error) {
	return m.mutateBook(id, func(b *models.Book) bool {
		if allowDuplicates || !slices.Contains(b.Likes, userID) {
			b.Likes = append(b.Likes, userID)
		}
		return true
	})
}

func (m *Memory) RemoveLike(_ context.Context, id, userID primitive.ObjectID) (*models.Book, error) {
	return m.mutateBook(id, func(b *models.Book) bool {
		b.Likes = slices.DeleteFunc(b.Likes, func(l primitive.ObjectID) bool { return l == userID })
		return true
	})
}

func (m *Memory) SetStock(_ context.Context, id primitive.ObjectID, nonstock bool) (*models.Book, error) {
	return m.mutateBook(id, func(b *models.Book) bool {
		b.Nonstock = nonstock
		return true
	})
}

func (m *Memory) MarkBorrowed(_ context.Context, id primitive.ObjectID) (*models.Book, error) {
	return m.mutateBook(id, func(b *models.Book) bool {
		if b.Nonstock {
			return false
		}
		b.Nonstock = true
		return true
	})
}

func (m *Memory) SetCoverKey(_ context.Context, id primitive.ObjectID, key string) (*models.Book, error) {
	return m.mutateBook(id, func(b *models.Book) bool {
		b.CoverKey = key
		return true
	})
}

func (m *Memory) PullUserReferences(_ context.Context, userID primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, cur := range m.books {
		b := cloneBook(cur)
		likes := len(b.Likes)
		reviews := len(b.Reviews)
		b.Likes = slices.DeleteFunc(b.Likes, func(l primitive.ObjectID) bool { return l == userID })
		b.Reviews = slices.DeleteFunc(b.Reviews, func(r models.Review) bool { return r.UserID == userID })
		if len(b.Likes) == likes && len(b.Reviews) == reviews {
			continue
		}
		b.UpdatedAt = m.now()
		m.books[id] = *b
		n++
	}
	return n, nil
}

func (m *Memory) SaveRefreshToken(_ context.Context, tok models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.refresh[tok.ID]; ok {
		return ErrDuplicate
	}
	m.refresh[tok.ID] = tok
	return nil
}

// RefreshTokenByID treats expired entries as absent, standing in for MongoDB's TTL monitor.
func (m *Memory) RefreshTokenByID(_ context.Context, id string) (*models.RefreshToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tok, ok := m.refresh[id]
	if !ok || !tok.ExpiresAt.After(m.now()) {
		return nil, ErrNotFound
	}
	return &tok, nil
}

func (m *Memory) DeleteRefreshToken(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refresh, id)
	return nil
}

func (m *Memory) DeleteRefreshTokensForUser(_ context.Context, userID primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, tok := range m.refresh {
		if tok.UserID == userID {
			delete(m.refresh, id)
			n++
		}
	}
	return n, nil
}
