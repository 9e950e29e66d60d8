package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kevinaaaquil/library/backend/auth"
	"github.com/kevinaaaquil/library/backend/config"
	"github.com/kevinaaaquil/library/backend/models"
	"github.com/kevinaaaquil/library/backend/notifications"
	"github.com/kevinaaaquil/library/backend/store"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testConfig() *config.Config {
	return &config.Config{
		StoreDriver:        config.DriverMemory,
		JWTSecret:          "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     time.Hour,
		RefreshTokenTTL:    24 * time.Hour,
		CascadeUserDelete:  true,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// faultyStore wraps the memory store and fails selected writes.
type faultyStore struct {
	*store.Memory
	failAppendBorrow error
	failSetStock     error
}

func (f *faultyStore) AppendBorrow(ctx context.Context, userID primitive.ObjectID, rec models.BorrowRecord) (*models.User, error) {
	if f.failAppendBorrow != nil {
		return nil, f.failAppendBorrow
	}
	return f.Memory.AppendBorrow(ctx, userID, rec)
}

func (f *faultyStore) SetStock(ctx context.Context, id primitive.ObjectID, nonstock bool) (*models.Book, error) {
	if f.failSetStock != nil && !nonstock {
		return nil, f.failSetStock
	}
	return f.Memory.SetStock(ctx, id, nonstock)
}

var errDriver = errors.New("connection reset by peer")

// recordingNotifier captures receipts.
type recordingNotifier struct {
	mu       sync.Mutex
	receipts []notifications.BorrowReceipt
	err      error
}

func (n *recordingNotifier) SendBorrowReceipt(_ context.Context, r notifications.BorrowReceipt) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts = append(n.receipts, r)
	return n.err
}

func (n *recordingNotifier) all() []notifications.BorrowReceipt {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifications.BorrowReceipt{}, n.receipts...)
}

type fixture struct {
	cfg   *config.Config
	store *faultyStore
	auth  *AuthService
	lib   *LibraryService
	jwt   *auth.Manager
	notes *recordingNotifier
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}
	st := &faultyStore{Memory: store.NewMemory()}
	jwt := auth.NewManager(cfg)
	notes := &recordingNotifier{}
	log := discardLogger()
	return &fixture{
		cfg:   cfg,
		store: st,
		auth:  NewAuthService(cfg, st, jwt, log),
		lib:   NewLibraryService(cfg, st, log).WithNotifier(notes),
		jwt:   jwt,
		notes: notes,
	}
}

func (f *fixture) register(t *testing.T, name, email string) *models.User {
	t.Helper()
	u, err := f.auth.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: "pw", Role: models.RoleUser})
	require.NoError(t, err)
	return u
}

func (f *fixture) addBook(t *testing.T, title string) *models.Book {
	t.Helper()
	b, err := f.lib.Add(context.Background(), AddBookInput{Title: title})
	require.NoError(t, err)
	return b
}
