// Package transcript holds the ordered, append-only list of chat messages.
package transcript

import (
	"errors"
	"strings"
	"sync"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleBot   Role = "bot"
	RoleError Role = "error"
)

var (
	ErrEmptyMessage     = errors.New("transcript: empty message")
	ErrRevealInProgress = errors.New("transcript: a message is already revealing")
	ErrNoReveal         = errors.New("transcript: no message is revealing")
)

// Message is one transcript entry. While Revealing is set, Shown holds the
// visible prefix of Text and At is zero.
type Message struct {
	ID        int
	Role      Role
	Text      string
	Shown     string
	Revealing bool
	At        time.Time
}

// Visible returns the text a renderer should draw.
func (m Message) Visible() string {
	if m.Revealing {
		return m.Shown
	}
	return m.Text
}

// Transcript is safe for concurrent use. Insertion order is display order and
// at most one message is revealing at a time.
type Transcript struct {
	mu        sync.RWMutex
	messages  []Message
	revealing int
}

func New() *Transcript {
	return &Transcript{revealing: -1}
}

// Append adds a completed message stamped with at.
func (t *Transcript) Append(role Role, text string, at time.Time) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyMessage
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	msg := Message{ID: len(t.messages) + 1, Role: role, Text: text, At: at}
	t.messages = append(t.messages, msg)
	return msg, nil
}

// BeginReveal appends a message in the revealing state with nothing shown yet.
func (t *Transcript) BeginReveal(role Role, text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyMessage
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.revealing >= 0 {
		return Message{}, ErrRevealInProgress
	}

	msg := Message{ID: len(t.messages) + 1, Role: role, Text: text, Revealing: true}
	t.messages = append(t.messages, msg)
	t.revealing = len(t.messages) - 1
	return msg, nil
}

// UpdateReveal replaces the visible prefix of the revealing message.
func (t *Transcript) UpdateReveal(shown string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.revealing < 0 {
		return ErrNoReveal
	}
	t.messages[t.revealing].Shown = shown
	return nil
}

// CompleteReveal shows the full text of the revealing message and stamps it.
func (t *Transcript) CompleteReveal(at time.Time) (Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.revealing < 0 {
		return Message{}, ErrNoReveal
	}

	msg := &t.messages[t.revealing]
	msg.Shown = msg.Text
	msg.Revealing = false
	msg.At = at
	t.revealing = -1
	return *msg, nil
}

// Revealing returns the message currently being revealed, if any.
func (t *Transcript) Revealing() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.revealing < 0 {
		return Message{}, false
	}
	return t.messages[t.revealing], true
}

// List returns a copy of every message in display order.
func (t *Transcript) List() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.messages) == 0 {
		return nil
	}

	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}
