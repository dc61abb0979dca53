// Package mailfake provides an in-memory Mailer for tests.
package mailfake

import (
	"context"
	"sync"

	"github.com/etienne-dldc/lomasi/mail"
	"github.com/pkg/errors"
)

// FakeMailer records every message it is asked to send.
type FakeMailer struct {
	mu       sync.Mutex
	sent     []mail.Message
	failWith error
}

// NewFakeMailer creates an empty recorder.
func NewFakeMailer() *FakeMailer {
	return &FakeMailer{}
}

// FailWith makes subsequent SendMail calls return err. Pass nil to recover.
func (f *FakeMailer) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

// SendMail implements mail.Mailer.
func (f *FakeMailer) SendMail(ctx context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return errors.Wrap(f.failWith, "fake mailer")
	}
	f.sent = append(f.sent, msg)
	return nil
}

// Sent returns a copy of every recorded message.
func (f *FakeMailer) Sent() []mail.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]mail.Message, len(f.sent))
	copy(out, f.sent)
	return out
}

// Last returns the most recent message, or false when nothing was sent.
func (f *FakeMailer) Last() (mail.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return mail.Message{}, false
	}
	return f.sent[len(f.sent)-1], true
}
