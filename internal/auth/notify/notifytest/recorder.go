// Package notifytest provides a Sender that records messages.
package notifytest

import (
	"context"
	"regexp"
	"sync"

	"github.com/aussiebroadwan/twostep/internal/auth/notify"
)

// Recorder captures every message it is asked to send. Err, when set, is
// returned instead of recording.
type Recorder struct {
	mu       sync.Mutex
	messages []notify.Message

	Err error
}

var _ notify.Sender = (*Recorder)(nil)

func (r *Recorder) Send(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of what was sent.
func (r *Recorder) Messages() []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Message(nil), r.messages...)
}

// Last returns the most recent message and whether there was one.
func (r *Recorder) Last() (notify.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return notify.Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}

var codePattern = regexp.MustCompile(`\b\d{6,8}\b`)

// LastCode extracts the verification code from the most recent message.
func (r *Recorder) LastCode() string {
	msg, ok := r.Last()
	if !ok {
		return ""
	}
	return codePattern.FindString(msg.Body)
}
