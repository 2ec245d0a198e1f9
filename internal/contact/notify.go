package contact

import (
	"sync"
	"time"
)

// Kind distinguishes toast styles.
type Kind string

const (
	KindSuccess Kind = "success"
	KindFailure Kind = "failure"
)

const (
	SuccessText = "Message sent successfully! I'll get back to you soon."
	FailureText = "Sorry, there was an error sending your message. Please try again later."
)

// Notification is a one-shot message for the visitor, shown as a toast.
type Notification struct {
	Kind Kind      `json:"kind"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Notifier receives notifications. Implementations must not block.
type Notifier interface {
	Notify(Notification)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}

// DefaultInboxSize bounds how many undrained toasts a session keeps.
const DefaultInboxSize = 8

// Inbox buffers notifications until the browser polls for them. When full
// the oldest entry is dropped.
type Inbox struct {
	mu    sync.Mutex
	items []Notification
	limit int
}

func NewInbox(limit int) *Inbox {
	if limit <= 0 {
		limit = DefaultInboxSize
	}
	return &Inbox{limit: limit}
}

func (b *Inbox) Notify(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == b.limit {
		b.items = b.items[1:]
	}
	b.items = append(b.items, n)
}

// Drain returns and clears everything buffered so far.
func (b *Inbox) Drain() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	return out
}

// Len is the number of undrained notifications.
func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
