package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier writes receipts to the log instead of delivering them.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier { return &LogNotifier{log: log} }

func (n *LogNotifier) SendBorrowReceipt(ctx context.Context, r BorrowReceipt) error {
	n.log.InfoContext(ctx, "notification.borrow_receipt",
		"email", r.Email,
		"name", r.Name,
		"book_id", r.BookID,
		"book_title", r.BookTitle,
		"due", r.Due.Format("2006-01-02"),
	)
	return nil
}
