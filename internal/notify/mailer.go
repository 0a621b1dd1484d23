package notify

import (
	"context"
	"log"
)

// Mailer sends a single plain-text email.
type Mailer interface {
	Send(ctx context.Context, toName, toEmail, subject, body string) error
}

// ConsoleMailer writes emails to the log instead of sending them. Used in
// development and tests.
type ConsoleMailer struct {
	Log *log.Logger
}

func NewConsoleMailer(logger *log.Logger) *ConsoleMailer {
	if logger == nil {
		logger = log.Default()
	}
	return &ConsoleMailer{Log: logger}
}

func (m *ConsoleMailer) Send(_ context.Context, toName, toEmail, subject, body string) error {
	m.Log.Printf("mail to %s <%s>\nsubject: %s\n%s\n", toName, toEmail, subject, body)
	return nil
}
