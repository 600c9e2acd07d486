// Package email delivers transactional mail. Two senders exist: SMTP for
// real delivery and a console sender for development.
package email

import "context"

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers email messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
