package application

import "context"

// Notifier performs the side-effecting notify call. The shipped
// implementation writes the email to the log; a real mailer drops in
// unchanged.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ContactStore resolves an order's contact address inside the runtime's
// transaction. ok is false when the order does not exist.
type ContactStore interface {
	Email(ctx context.Context, orderID string) (email string, ok bool, err error)
}
