package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kevinaaaquil/library/backend/config"
	"github.com/kevinaaaquil/library/backend/models"
	"github.com/kevinaaaquil/library/backend/notifications"
	"github.com/kevinaaaquil/library/backend/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	coverPrefix      = "covers/"
	coverURLExpiry   = 15 * time.Minute
	compensateWithin = 10 * time.Second
	notifyWithin     = 30 * time.Second
)

type LibraryService struct {
	cfg      *config.Config
	store    Store
	covers   CoverStorage
	metadata MetadataFetcher
	notifier notifications.Notifier
	log      *slog.Logger
	now      func() time.Time

	// pending tracks receipts still being delivered.
	pending sync.WaitGroup
}

func NewLibraryService(cfg *config.Config, st Store, log *slog.Logger) *LibraryService {
	return &LibraryService{
		cfg:      cfg,
		store:    st,
		notifier: notifications.NewLogNotifier(log),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *LibraryService) WithCovers(c CoverStorage) *LibraryService {
	s.covers = c
	return s
}

func (s *LibraryService) WithMetadata(f MetadataFetcher) *LibraryService {
	s.metadata = f
	return s
}

func (s *LibraryService) WithNotifier(n notifications.Notifier) *LibraryService {
	s.notifier = n
	return s
}

// Wait blocks until in-flight borrow receipts have been handed off.
func (s *LibraryService) Wait() { s.pending.Wait() }

func (s *LibraryService) ListAll(ctx context.Context) ([]models.Book, error) {
	return s.store.AllBooks(ctx)
}

func (s *LibraryService) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	book, err := s.store.BookByID(ctx, id)
	return book, bookErr(err)
}

type ReviewInput struct {
	UserID primitive.ObjectID
	Review string
}

type AddBookInput struct {
	Title       string
	Description string
	Nonstock    bool
	Likes       []primitive.ObjectID
	Reviews     []ReviewInput
	ISBN        string
}

func (s *LibraryService) Add(ctx context.Context, in AddBookInput) (*models.Book, error) {
	if in.ISBN != "" && s.metadata != nil && (in.Description == "" || in.Title == "") {
		s.fillFromCatalogue(ctx, &in)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	_, err := s.store.BookByTitle(ctx, in.Title)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: book with the same title already exists", ErrConflict)
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("lookup book: %w", err)
	}

	now := s.now()
	book := &models.Book{
		Title:       in.Title,
		Description: in.Description,
		Nonstock:    in.Nonstock,
		Likes:       append([]primitive.ObjectID{}, in.Likes...),
		Reviews:     make([]models.Review, 0, len(in.Reviews)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, r := range in.Reviews {
		book.Reviews = append(book.Reviews, models.Review{ID: primitive.NewObjectID(), UserID: r.UserID, Review: r.Review})
	}
	if err := s.store.InsertBook(ctx, book); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: book with the same title already exists", ErrConflict)
		}
		return nil, fmt.Errorf("insert book: %w", err)
	}
	s.log.InfoContext(ctx, "book created", "book_id", book.ID.Hex())
	return book, nil
}

func (s *LibraryService) fillFromCatalogue(ctx context.Context, in *AddBookInput) {
	meta, err := s.metadata.FetchByISBN(ctx, in.ISBN)
	if err != nil {
		s.log.WarnContext(ctx, "metadata lookup failed", "isbn", in.ISBN, "error", err)
		return
	}
	if in.Title == "" {
		in.Title = meta.Title
	}
	if in.Description == "" {
		in.Description = meta.Description
	}
}

func (s *LibraryService) AddReview(ctx context.Context, bookID primitive.ObjectID, in ReviewInput) (*models.Book, error) {
	if strings.TrimSpace(in.Review) == "" {
		return nil, fmt.Errorf("%w: review is required", ErrInvalidInput)
	}
	book, err := s.store.AddReview(ctx, bookID, models.Review{ID: primitive.NewObjectID(), UserID: in.UserID, Review: in.Review})
	return book, bookErr(err)
}

// Like adds userID to the book's likes. Repeated likes are a no-op unless legacy duplicates are enabled.
func (s *LibraryService) Like(ctx context.Context, bookID, userID primitive.ObjectID) (*models.Book, error) {
	book, err := s.store.AddLike(ctx, bookID, userID, s.cfg.LegacyDuplicateLikes)
	return book, bookErr(err)
}

// Unlike removes every occurrence of userID from the book's likes.
func (s *LibraryService) Unlike(ctx context.Context, bookID, userID primitive.ObjectID) (*models.Book, error) {
	book, err := s.store.RemoveLike(ctx, bookID, userID)
	return book, bookErr(err)
}

// UpdateStock overwrites the nonstock flag without looking at outstanding borrow records.
func (s *LibraryService) UpdateStock(ctx context.Context, bookID primitive.ObjectID, nonstock bool) (*models.Book, error) {
	book, err := s.store.SetStock(ctx, bookID, nonstock)
	return book, bookErr(err)
}

func (s *LibraryService) Delete(ctx context.Context, bookID primitive.ObjectID) (*models.Book, error) {
	book, err := s.store.DeleteBook(ctx, bookID)
	if err != nil {
		return nil, bookErr(err)
	}
	if book.CoverKey != "" && s.covers != nil {
		if err := s.covers.Delete(ctx, book.CoverKey); err != nil {
			s.log.WarnContext(ctx, "delete cover", "book_id", bookID.Hex(), "key", book.CoverKey, "error", err)
		}
	}
	return book, nil
}

// Borrow lends a book to a user. It touches two documents: the book's nonstock flag first,
// then the user's borrowed list. If the second write fails the first is reverted and a
// *PartialFailureError is returned.
func (s *LibraryService) Borrow(ctx context.Context, bookID, userID primitive.ObjectID, due time.Time) (*models.Book, *models.User, error) {
	book, err := s.store.BookByID(ctx, bookID)
	if err != nil {
		return nil, nil, bookErr(err)
	}
	if book.Nonstock {
		return nil, nil, ErrOutOfStock
	}
	if _, err := s.store.UserByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, notFound("user")
		}
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}

	if s.cfg.LegacyBorrowRace {
		book, err = s.store.SetStock(ctx, bookID, true)
	} else {
		book, err = s.store.MarkBorrowed(ctx, bookID)
	}
	switch {
	case errors.Is(err, store.ErrPreconditionFailed):
		return nil, nil, ErrOutOfStock
	case err != nil:
		return nil, nil, bookErr(err)
	}

	rec := models.BorrowRecord{
		ID:     primitive.NewObjectID(),
		BookID: bookID,
		Date:   s.now(),
		Due:    due,
	}
	user, err := s.store.AppendBorrow(ctx, userID, rec)
	if err != nil {
		return nil, nil, s.compensateBorrow(ctx, bookID, userID, err)
	}

	s.log.InfoContext(ctx, "book borrowed", "book_id", bookID.Hex(), "user_id", userID.Hex(), "due", due)
	s.sendReceipt(ctx, book, user, due)
	return book, user, nil
}

func (s *LibraryService) compensateBorrow(ctx context.Context, bookID, userID primitive.ObjectID, cause error) error {
	pf := &PartialFailureError{Op: "borrow", BookID: bookID, UserID: userID, Cause: cause}
	if s.cfg.LegacyBorrowRace {
		// the unconditional write may have landed on a flag another borrow already holds
		pf.CompensationErr = errRevertSkipped
		s.log.ErrorContext(ctx, "borrow left book out of stock, manual reconciliation needed",
			"book_id", bookID.Hex(), "user_id", userID.Hex(), "cause", cause, "error", errRevertSkipped)
		return pf
	}
	// the request context may be the reason the write failed
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateWithin)
	defer cancel()
	if _, err := s.store.SetStock(cctx, bookID, false); err != nil {
		pf.CompensationErr = err
		s.log.ErrorContext(ctx, "borrow compensation failed, manual reconciliation needed",
			"book_id", bookID.Hex(), "user_id", userID.Hex(), "cause", cause, "error", err)
		return pf
	}
	pf.Compensated = true
	s.log.WarnContext(ctx, "borrow reverted", "book_id", bookID.Hex(), "user_id", userID.Hex(), "cause", cause)
	if errors.Is(cause, store.ErrNotFound) {
		// user deleted after the existence check; nothing is left half done
		return notFound("user")
	}
	return pf
}

func (s *LibraryService) sendReceipt(ctx context.Context, book *models.Book, user *models.User, due time.Time) {
	if s.notifier == nil {
		return
	}
	receipt := notifications.BorrowReceipt{
		Email:     user.Email,
		Name:      user.Name,
		BookID:    book.ID.Hex(),
		BookTitle: book.Title,
		Due:       due,
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyWithin)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer cancel()
		if err := s.notifier.SendBorrowReceipt(nctx, receipt); err != nil {
			s.log.WarnContext(nctx, "borrow receipt not sent", "book_id", receipt.BookID, "error", err)
		}
	}()
}

// Profile returns the user without the password hash, each borrow record expanded with its book.
// Books deleted since the borrow show up as a nil book.
func (s *LibraryService) Profile(ctx context.Context, userID primitive.ObjectID) (*models.Profile, error) {
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("user")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	ids := make([]primitive.ObjectID, 0, len(user.Borrowed))
	for _, b := range user.Borrowed {
		ids = append(ids, b.BookID)
	}
	books, err := s.store.BooksByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve borrowed books: %w", err)
	}

	p := &models.Profile{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		Borrowed:  make([]models.ProfileBorrow, 0, len(user.Borrowed)),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
	for _, b := range user.Borrowed {
		pb := models.ProfileBorrow{ID: b.ID, Date: b.Date, Due: b.Due}
		if book, ok := books[b.BookID]; ok {
			pb.BookID = &models.BookSummary{ID: book.ID, Title: book.Title, Description: book.Description}
		}
		p.Borrowed = append(p.Borrowed, pb)
	}
	return p, nil
}

// UploadCover stores a cover image and points the book at it, replacing any previous cover.
func (s *LibraryService) UploadCover(ctx context.Context, bookID primitive.ObjectID, filename, contentType string, body io.Reader) (*models.Book, error) {
	if s.covers == nil {
		return nil, fmt.Errorf("cover storage: %w", ErrUnavailable)
	}
	existing, err := s.store.BookByID(ctx, bookID)
	if err != nil {
		return nil, bookErr(err)
	}
	key, err := s.covers.Upload(ctx, coverPrefix, filename, body, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload cover: %w", err)
	}
	book, err := s.store.SetCoverKey(ctx, bookID, key)
	if err != nil {
		_ = s.covers.Delete(ctx, key)
		return nil, bookErr(err)
	}
	if existing.CoverKey != "" && existing.CoverKey != key {
		if err := s.covers.Delete(ctx, existing.CoverKey); err != nil {
			s.log.WarnContext(ctx, "delete previous cover", "key", existing.CoverKey, "error", err)
		}
	}
	return book, nil
}

func (s *LibraryService) CoverURL(ctx context.Context, bookID primitive.ObjectID) (string, error) {
	if s.covers == nil {
		return "", fmt.Errorf("cover storage: %w", ErrUnavailable)
	}
	book, err := s.store.BookByID(ctx, bookID)
	if err != nil {
		return "", bookErr(err)
	}
	if book.CoverKey == "" {
		return "", notFound("cover")
	}
	return s.covers.PresignedGetURL(ctx, book.CoverKey, coverURLExpiry)
}

func bookErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound("book")
	}
	if err != nil {
		return fmt.Errorf("book store: %w", err)
	}
	return nil
}
