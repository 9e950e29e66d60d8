package notifications

import (
	"context"
	"fmt"
	"time"

	mail "github.com/go-mail/mail/v2"
	"github.com/kevinaaaquil/library/backend/config"
)

// MailNotifier delivers receipts over SMTP with STARTTLS.
type MailNotifier struct {
	dialer *mail.Dialer
	from   string
}

func NewMailNotifier(cfg *config.Config) *MailNotifier {
	d := mail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.Timeout = 10 * time.Second
	return &MailNotifier{dialer: d, from: cfg.SMTPFrom}
}

func (n *MailNotifier) SendBorrowReceipt(ctx context.Context, r BorrowReceipt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.dialer.DialAndSend(buildReceipt(n.from, r)); err != nil {
		return fmt.Errorf("send borrow receipt to %s: %w", r.Email, err)
	}
	return nil
}

func buildReceipt(from string, r BorrowReceipt) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", from)
	m.SetAddressHeader("To", r.Email, r.Name)
	m.SetHeader("Subject", "You borrowed "+r.BookTitle)
	m.SetBody("text/plain", fmt.Sprintf(
		"Hi %s,\n\nYou borrowed %q. Please return it by %s.\n",
		r.Name, r.BookTitle, r.Due.Format("Monday, 2 January 2006"),
	))
	return m
}
