package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kevinaaaquil/library/backend/models"
	"github.com/kevinaaaquil/library/backend/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultMaxCoverBytes = 5 << 20

// BorrowObserver is notified of every borrow outcome.
type BorrowObserver interface {
	ObserveBorrow(err error)
}

type BooksHandler struct {
	Library       *service.LibraryService
	Log           *slog.Logger
	Borrows       BorrowObserver
	MaxCoverBytes int64
}

type ReviewRequest struct {
	UserID string `json:"userId" validate:"required,objectid"`
	Review string `json:"review" validate:"required"`
}

type AddBookRequest struct {
	Title       string          `json:"title" validate:"required_without=ISBN"`
	Description string          `json:"description"`
	Nonstock    bool            `json:"nonstock"`
	Likes       []string        `json:"likes" validate:"omitempty,dive,objectid"`
	Reviews     []ReviewRequest `json:"reviews" validate:"omitempty,dive"`
	ISBN        string          `json:"isbn"`
}

type UserRefRequest struct {
	UserID string `json:"userId" validate:"required,objectid"`
}

type StockRequest struct {
	Nonstock *bool `json:"nonstock" validate:"required"`
}

type BorrowRequest struct {
	UserID  string `json:"userId" validate:"required,objectid"`
	DueDate string `json:"dueDate" validate:"required"`
}

type BookMessageResponse struct {
	Message string       `json:"message"`
	Book    *models.Book `json:"book"`
}

type BorrowResponse struct {
	Message string       `json:"message"`
	Book    *models.Book `json:"book"`
	User    *models.User `json:"user"`
}

type CoverURLResponse struct {
	URL string `json:"url"`
}

func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.Library.ListAll(r.Context())
	if err != nil {
		respondServiceError(w, r, h.Log, err, "Failed to retrieve all books")
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseObjectID(w, r, chi.URLParam(r, "id"), "book")
	if !ok {
		return
	}
	book, err := h.Library.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.Log, err, "Failed to retrieve book by ID")
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *BooksHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddBookRequest
	if !bindJSON(w, r, &req) {
		return
	}
	in := service.AddBookInput{
		Title:       req.Title,
		Description: req.Description,
		Nonstock:    req.Nonstock,
		ISBN:        req.ISBN,
	}
	// ids were checked by the validator
	for _, l := range req.Likes {
		id, _ := primitive.ObjectIDFromHex(l)
		in.Likes = append(in.Likes, id)
	}
	for _, rv := range req.Reviews {
		id, _ := primitive.ObjectIDFromHex(rv.UserID)
		in.Reviews = append(in.Reviews, service.ReviewInput{UserID: id, Review: rv.Review})
	}
	book, err := h.Library.Add(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, h.Log, err, "Adding book failed")
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (h *BooksHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, ok := parseObjectID(w, r, chi.URLParam(r, "id"), "book")
	if !ok {
		return
	}
	var req ReviewRequest
	if !bindJSON(w, r, &req) {
		return
	}
	userID, _ := primitive.ObjectIDFromHex(req.UserID)
	book, err := h.Library.AddReview(r.Context(), id, service.ReviewInput{UserID: userID, Review: req.Review})
	if err != nil {
		respondServiceError(w, r, h.Log, err, "Failed to add review")
		return
	}
	writeJSON(w, http.StatusOK, BookMessageResponse{Message: "Review added successfully", Book: book})
}

func (h *BooksHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.likeOrUnlike(w, r, h.Library.Like, "Book liked successfully", "Failed to like book")
}

func (h *BooksHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.likeOrUnlike(w, r, h.Library.Unlike, "Book unliked successfully", "Failed to unlike book")
}

func (h *BooksHandler) likeOrUnlike(w http.ResponseWriter, r *http.Request,
	op func(context.Context, primitive.ObjectID, primitive.ObjectID) (*models.Book, error),
	okMsg, failMsg string,
) {
	id, ok := parseObjectID(w, r, chi.URLParam(r, "id"), "book")
	if !ok {
		return
	}
	var req UserRefRequest
	if !bindJSON(w, r, &req) {
		return
	}
	userID, _ := primitive.ObjectIDFromHex(req.UserID)
	book, err := op(r.Context(), id, userID)
	if err != nil {
		respondServiceError(w, r, h.Log, err, failMsg)
		return
	}
	writeJSON(w, http.StatusOK, BookMessageResponse{Message: okMsg, Book: book})
}

func (h *BooksHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	id, ok := parseObjectID(w, r, chi.URLParam(r, "id"), "book")
	if !ok {
		return
	}
	var req StockRequest
	if !bindJSON(w, r, &req) {
		return
	}
	book, err := h.Library.UpdateStock(r.Context(), id, *req.Nonstock)
	if err != nil {
		respondServiceError(w, r, h.Log, err, "Failed to update book stock status")
		return
	}
	writeJSON(w, http.StatusOK, BookMessageResponse{Message: "Book stock status updated successfully", Book: book})
}

func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseObjectID(w, r, chi.URLParam(r, "id"), "book")
	if !ok {
		return
	}
	book, err := h.Library.Delete(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.Log, err, "Failed to delete book")
		return
	}
	writeJSON(w, http.StatusOK, BookMessageResponse{Message: "Book deleted successfully", Book: book})
}

func (h *BooksHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	id, ok := parseObjectID(w, r, chi.URLParam(r, "id"), "book")
	if !ok {
		return
	}
	var req BorrowRequest
	if !bindJSON(w, r, &req) {
		return
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body", []FieldError{{
			Field:   "dueDate",
			Rule:    "date",
			Message: "must be RFC 3339 or YYYY-MM-DD",
		}})
		return
	}
	userID, _ := primitive.ObjectIDFromHex(req.UserID)

	book, user, err := h.Library.Borrow(r.Context(), id, userID, due)
	if h.Borrows != nil {
		h.Borrows.ObserveBorrow(err)
	}
	if err != nil {
		respondServiceError(w, r, h.Log, err, "Failed to borrow book")
		return
	}
	writeJSON(w, http.StatusOK, BorrowResponse{Message: "Book borrowed successfully", Book: book, User: user})
}

func parseDueDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, raw)
}

// UploadCover accepts a multipart "file" field holding a jpeg, png or webp image.
func (h *BooksHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	id, ok := parseObjectID(w, r, chi.URLParam(r, "id"), "book")
	if !ok {
		return
	}
	maxBytes := h.MaxCoverBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxCoverBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		respondBadRequest(w, r, "Failed to parse multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondBadRequest(w, r, "Missing file")
		return
	}
	defer file.Close()

	contentType, ok := coverContentType(header.Filename, header.Header.Get("Content-Type"))
	if !ok {
		respondBadRequest(w, r, "Only jpeg, png and webp covers are allowed")
		return
	}
	book, err := h.Library.UploadCover(r.Context(), id, header.Filename, contentType, file)
	if err != nil {
		respondServiceError(w, r, h.Log, err, "Failed to upload cover")
		return
	}
	writeJSON(w, http.StatusOK, BookMessageResponse{Message: "Cover uploaded successfully", Book: book})
}

func coverContentType(filename, partType string) (string, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg", true
	case ".png":
		return "image/png", true
	case ".webp":
		return "image/webp", true
	}
	switch {
	case strings.HasPrefix(partType, "image/jpeg"), strings.HasPrefix(partType, "image/png"), strings.HasPrefix(partType, "image/webp"):
		ct, _, _ := strings.Cut(partType, ";")
		return ct, true
	}
	return "", false
}

func (h *BooksHandler) CoverURL(w http.ResponseWriter, r *http.Request) {
	id, ok := parseObjectID(w, r, chi.URLParam(r, "id"), "book")
	if !ok {
		return
	}
	url, err := h.Library.CoverURL(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.Log, err, "Failed to get cover")
		return
	}
	writeJSON(w, http.StatusOK, CoverURLResponse{URL: url})
}
