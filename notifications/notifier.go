package notifications

import (
	"context"
	"time"
)

type BorrowReceipt struct {
	Email     string
	Name      string
	BookID    string
	BookTitle string
	Due       time.Time
}

type Notifier interface {
	SendBorrowReceipt(ctx context.Context, receipt BorrowReceipt) error
}
