package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kevinaaaquil/library/backend/config"
	"github.com/kevinaaaquil/library/backend/models"
	"github.com/kevinaaaquil/library/backend/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var due = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestAdd_DuplicateTitle(t *testing.T) {
	f := newFixture(t)
	f.addBook(t, "Dune")

	_, err := f.lib.Add(context.Background(), AddBookInput{Title: "Dune"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAdd_Defaults(t *testing.T) {
	f := newFixture(t)
	b := f.addBook(t, "Dune")

	assert.False(t, b.Nonstock)
	assert.NotNil(t, b.Likes)
	assert.NotNil(t, b.Reviews)
	assert.False(t, b.ID.IsZero())
}

type stubMetadata struct {
	meta *BookMetadata
	err  error
}

func (s stubMetadata) FetchByISBN(context.Context, string) (*BookMetadata, error) {
	return s.meta, s.err
}

func TestAdd_FillsDescriptionFromCatalogue(t *testing.T) {
	f := newFixture(t)
	f.lib.WithMetadata(stubMetadata{meta: &BookMetadata{Title: "Dune", Description: "Spice."}})

	b, err := f.lib.Add(context.Background(), AddBookInput{ISBN: "9780441172719"})
	require.NoError(t, err)
	assert.Equal(t, "Dune", b.Title)
	assert.Equal(t, "Spice.", b.Description)

	b, err = f.lib.Add(context.Background(), AddBookInput{Title: "Mine", Description: "kept", ISBN: "1"})
	require.NoError(t, err)
	assert.Equal(t, "kept", b.Description)
}

func TestAdd_CatalogueFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.lib.WithMetadata(stubMetadata{err: errors.New("boom")})

	b, err := f.lib.Add(context.Background(), AddBookInput{Title: "Dune", ISBN: "1"})
	require.NoError(t, err)
	assert.Empty(t, b.Description)
}

func TestGetByID_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.lib.GetByID(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLike_IsIdempotentByDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBook(t, "Dune")
	u := primitive.NewObjectID()

	_, err := f.lib.Like(ctx, b.ID, u)
	require.NoError(t, err)
	got, err := f.lib.Like(ctx, b.ID, u)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{u}, got.Likes)
}

func TestLike_LegacyDuplicates(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.LegacyDuplicateLikes = true })
	ctx := context.Background()
	b := f.addBook(t, "Dune")
	u := primitive.NewObjectID()
	other := primitive.NewObjectID()

	_, err := f.lib.Like(ctx, b.ID, u)
	require.NoError(t, err)
	_, err = f.lib.Like(ctx, b.ID, other)
	require.NoError(t, err)
	got, err := f.lib.Like(ctx, b.ID, u)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{u, other, u}, got.Likes)

	got, err = f.lib.Unlike(ctx, b.ID, u)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{other}, got.Likes)
}

func TestLike_MissingBook(t *testing.T) {
	f := newFixture(t)
	_, err := f.lib.Like(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddReview_AppendsUnconditionally(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBook(t, "Dune")
	u := primitive.NewObjectID()

	_, err := f.lib.AddReview(ctx, b.ID, ReviewInput{UserID: u, Review: "good"})
	require.NoError(t, err)
	got, err := f.lib.AddReview(ctx, b.ID, ReviewInput{UserID: u, Review: "good"})
	require.NoError(t, err)
	require.Len(t, got.Reviews, 2)
	assert.NotEqual(t, got.Reviews[0].ID, got.Reviews[1].ID)

	_, err = f.lib.AddReview(ctx, b.ID, ReviewInput{UserID: u})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBorrow_FlipsStockAndRecordsBorrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := f.register(t, "Ann", "a@x.com")
	b := f.addBook(t, "Dune")

	book, user, err := f.lib.Borrow(ctx, b.ID, ann.ID, due)
	require.NoError(t, err)
	assert.True(t, book.Nonstock)
	require.Len(t, user.Borrowed, 1)
	assert.Equal(t, b.ID, user.Borrowed[0].BookID)
	assert.True(t, due.Equal(user.Borrowed[0].Due))
	assert.False(t, user.Borrowed[0].Date.IsZero())

	f.lib.Wait()
	receipts := f.notes.all()
	require.Len(t, receipts, 1)
	assert.Equal(t, "a@x.com", receipts[0].Email)
	assert.Equal(t, "Dune", receipts[0].BookTitle)
}

func TestBorrow_OutOfStockLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := f.register(t, "Ann", "a@x.com")
	b := f.addBook(t, "Dune")
	_, err := f.lib.UpdateStock(ctx, b.ID, true)
	require.NoError(t, err)

	_, _, err = f.lib.Borrow(ctx, b.ID, ann.ID, due)
	assert.ErrorIs(t, err, ErrOutOfStock)

	user, err := f.store.UserByID(ctx, ann.ID)
	require.NoError(t, err)
	assert.Empty(t, user.Borrowed)
	book, err := f.lib.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, book.Nonstock)
}

func TestBorrow_CheckOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := f.register(t, "Ann", "a@x.com")
	b := f.addBook(t, "Dune")

	_, _, err := f.lib.Borrow(ctx, primitive.NewObjectID(), ann.ID, due)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = f.lib.Borrow(ctx, b.ID, primitive.NewObjectID(), due)
	assert.ErrorIs(t, err, ErrNotFound)
	book, _ := f.lib.GetByID(ctx, b.ID)
	assert.False(t, book.Nonstock, "missing user must not lock the book")

	_, err = f.lib.UpdateStock(ctx, b.ID, true)
	require.NoError(t, err)
	_, _, err = f.lib.Borrow(ctx, b.ID, primitive.NewObjectID(), due)
	assert.ErrorIs(t, err, ErrOutOfStock, "stock is checked before the user")
}

func TestBorrow_CompensatesWhenUserWriteFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := f.register(t, "Ann", "a@x.com")
	b := f.addBook(t, "Dune")
	f.store.failAppendBorrow = errDriver

	_, _, err := f.lib.Borrow(ctx, b.ID, ann.ID, due)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartialFailure)
	assert.ErrorIs(t, err, errDriver)

	var pf *PartialFailureError
	require.True(t, errors.As(err, &pf))
	assert.True(t, pf.Compensated)
	assert.Equal(t, b.ID, pf.BookID)

	book, err := f.lib.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, book.Nonstock, "book is released again")
	assert.Empty(t, f.notes.all())
}

func TestBorrow_CompensationFailureIsReported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := f.register(t, "Ann", "a@x.com")
	b := f.addBook(t, "Dune")
	f.store.failAppendBorrow = errDriver
	f.store.failSetStock = errors.New("still down")

	_, _, err := f.lib.Borrow(ctx, b.ID, ann.ID, due)
	var pf *PartialFailureError
	require.True(t, errors.As(err, &pf))
	assert.False(t, pf.Compensated)
	assert.EqualError(t, pf.CompensationErr, "still down")

	book, err := f.lib.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, book.Nonstock, "orphaned lock is visible for manual reconciliation")
}

func TestBorrow_ConcurrentAttemptsGuarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBook(t, "Dune")

	const n = 16
	users := make([]primitive.ObjectID, n)
	for i := range users {
		users[i] = f.register(t, "U", primitive.NewObjectID().Hex()+"@x.com").ID
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(uid primitive.ObjectID) {
			defer wg.Done()
			if _, _, err := f.lib.Borrow(ctx, b.ID, uid, due); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrOutOfStock)
			}
		}(users[i])
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

// gatedStore holds the first n BookByID calls until all n have arrived, so concurrent
// borrows all pass the stock check before any of them writes.
type gatedStore struct {
	*store.Memory
	n       int32
	arrived atomic.Int32
	release chan struct{}
}

func newGatedStore(n int32) *gatedStore {
	return &gatedStore{Memory: store.NewMemory(), n: n, release: make(chan struct{})}
}

func (g *gatedStore) BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	if k := g.arrived.Add(1); k <= g.n {
		if k == g.n {
			close(g.release)
		}
		<-g.release
	}
	return g.Memory.BookByID(ctx, id)
}

// racedBorrow runs two simultaneous borrows of one book by two users.
func racedBorrow(t *testing.T, legacy bool) (st *gatedStore, bookID primitive.ObjectID, users [2]primitive.ObjectID, errs [2]error) {
	t.Helper()
	ctx := context.Background()
	cfg := testConfig()
	cfg.LegacyBorrowRace = legacy
	st = newGatedStore(2)
	lib := NewLibraryService(cfg, st, discardLogger()).WithNotifier(&recordingNotifier{})

	book := &models.Book{Title: "Dune"}
	require.NoError(t, st.InsertBook(ctx, book))
	for i := range users {
		u := &models.User{Name: "U", Email: primitive.NewObjectID().Hex() + "@x.com", Role: models.RoleUser}
		require.NoError(t, st.CreateUser(ctx, u))
		users[i] = u.ID
	}

	var wg sync.WaitGroup
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = lib.Borrow(ctx, book.ID, users[i], due)
		}(i)
	}
	wg.Wait()
	lib.Wait()
	return st, book.ID, users, errs
}

func TestBorrow_LegacyModeLendsTwice(t *testing.T) {
	st, _, users, errs := racedBorrow(t, true)

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	for _, id := range users {
		u, err := st.UserByID(context.Background(), id)
		require.NoError(t, err)
		assert.Len(t, u.Borrowed, 1)
	}
}

func TestBorrow_GuardedModeLendsOnce(t *testing.T) {
	st, bookID, users, errs := racedBorrow(t, false)

	wins := 0
	for i, err := range errs {
		u, uerr := st.UserByID(context.Background(), users[i])
		require.NoError(t, uerr)
		if err == nil {
			wins++
			assert.Len(t, u.Borrowed, 1)
			continue
		}
		assert.ErrorIs(t, err, ErrOutOfStock)
		assert.Empty(t, u.Borrowed)
	}
	assert.Equal(t, 1, wins)

	book, err := st.Memory.BookByID(context.Background(), bookID)
	require.NoError(t, err)
	assert.True(t, book.Nonstock)
}

func TestBorrow_UserDeletedMidway(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := f.register(t, "Ann", "a@x.com")
	b := f.addBook(t, "Dune")
	f.store.failAppendBorrow = store.ErrNotFound

	_, _, err := f.lib.Borrow(ctx, b.ID, ann.ID, due)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrPartialFailure)

	book, err := f.lib.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, book.Nonstock)
}

func TestBorrow_LegacyModeDoesNotRevert(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.LegacyBorrowRace = true })
	ctx := context.Background()
	ann := f.register(t, "Ann", "a@x.com")
	b := f.addBook(t, "Dune")
	f.store.failAppendBorrow = errDriver

	_, _, err := f.lib.Borrow(ctx, b.ID, ann.ID, due)
	var pf *PartialFailureError
	require.True(t, errors.As(err, &pf))
	assert.False(t, pf.Compensated)
	assert.ErrorIs(t, pf.CompensationErr, errRevertSkipped)

	book, err := f.lib.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, book.Nonstock, "flag may belong to a concurrent borrower")
}

func TestProfile_ExpandsBorrowedBooks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := f.register(t, "Ann", "a@x.com")
	dune, err := f.lib.Add(ctx, AddBookInput{Title: "Dune", Description: "Spice"})
	require.NoError(t, err)
	gone := f.addBook(t, "Gone")

	_, _, err = f.lib.Borrow(ctx, dune.ID, ann.ID, due)
	require.NoError(t, err)
	_, _, err = f.lib.Borrow(ctx, gone.ID, ann.ID, due)
	require.NoError(t, err)
	_, err = f.lib.Delete(ctx, gone.ID)
	require.NoError(t, err)

	p, err := f.lib.Profile(ctx, ann.ID)
	require.NoError(t, err)
	require.Len(t, p.Borrowed, 2)
	require.NotNil(t, p.Borrowed[0].BookID)
	assert.Equal(t, "Dune", p.Borrowed[0].BookID.Title)
	assert.Equal(t, "Spice", p.Borrowed[0].BookID.Description)
	assert.Nil(t, p.Borrowed[1].BookID)

	_, err = f.lib.Profile(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

// memCovers is an in-memory CoverStorage.
type memCovers struct {
	objects map[string][]byte
	deleted []string
}

func (m *memCovers) Upload(_ context.Context, prefix, name string, body io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	key := prefix + primitive.NewObjectID().Hex() + "-" + name
	m.objects[key] = data
	return key, nil
}

func (m *memCovers) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memCovers) PresignedGetURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://covers.example.com/" + key, nil
}

func TestCovers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBook(t, "Dune")

	_, err := f.lib.CoverURL(ctx, b.ID)
	assert.ErrorIs(t, err, ErrUnavailable)

	covers := &memCovers{objects: map[string][]byte{}}
	f.lib.WithCovers(covers)

	_, err = f.lib.CoverURL(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := f.lib.UploadCover(ctx, b.ID, "a.jpg", "image/jpeg", bytes.NewReader([]byte("one")))
	require.NoError(t, err)
	second, err := f.lib.UploadCover(ctx, b.ID, "b.jpg", "image/jpeg", bytes.NewReader([]byte("two")))
	require.NoError(t, err)
	assert.Equal(t, []string{first.CoverKey}, covers.deleted, "previous cover is removed")

	url, err := f.lib.CoverURL(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://covers.example.com/"+second.CoverKey, url)

	_, err = f.lib.Delete(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, covers.objects)
}
