package email

import (
	"context"
	"log/slog"
)

// LogNotifier stands in for a real mail provider: it records the email
// in the structured log. Swapping in SES or SMTP means replacing this
// type behind the application.Notifier port.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(_ context.Context, to, subject, body string) error {
	n.log.Info("email sent",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", body))
	return nil
}
