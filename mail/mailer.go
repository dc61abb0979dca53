// Package mail is the boundary to the mail-delivery subsystem. The server
// only needs to hand off a fully built message; delivery, retries and queueing
// belong to the implementation behind the Mailer interface.
package mail

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Message is one outbound mail.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers messages. Implementations must be safe for concurrent use.
type Mailer interface {
	SendMail(ctx context.Context, msg Message) error
}

// LoginMessage builds the magic-link mail sent by the login operation.
func LoginMessage(to, link, appOrigin string) Message {
	return Message{
		To:      to,
		Subject: "Magic link 🎩",
		HTML:    fmt.Sprintf(`<h1>Magic link 🎩 !</h1><a href="%s">Login to %s</a>`, link, appOrigin),
		Text:    "Magic link: " + link,
	}
}

// LogMailer writes messages to the log instead of delivering them. Useful in
// development, where clicking the logged link stands in for a mailbox.
type LogMailer struct {
	Logger zerolog.Logger
}

// SendMail implements Mailer.
func (m LogMailer) SendMail(ctx context.Context, msg Message) error {
	m.Logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg(msg.Text)
	return nil
}
