package contact

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultIdleTTL is how long an untouched form session survives.
const DefaultIdleTTL = 30 * time.Minute

// NewSessionID returns a fresh form-session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// ValidSessionID reports whether id looks like one NewSessionID produced.
func ValidSessionID(id string) bool {
	return uuid.Validate(id) == nil
}

// Session pairs a visitor's controller with the inbox its toasts land in.
type Session struct {
	ID         string
	Controller *Controller
	Inbox      *Inbox
	lastSeen   time.Time
}

// Factory builds the controller for a new session. The inbox must be used
// as (or wrapped into) the controller's notifier.
type Factory func(id string, inbox *Inbox) *Controller

type RegistryOption func(*Registry)

func IdleTTL(d time.Duration) RegistryOption { return func(r *Registry) { r.ttl = d } }

func RegistryLogger(l *zap.Logger) RegistryOption { return func(r *Registry) { r.log = l } }

func RegistryClock(now func() time.Time) RegistryOption { return func(r *Registry) { r.now = now } }

// Registry keeps one controller per form session and tears down the ones
// nobody has touched for a while.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	factory  Factory
	ttl      time.Duration
	now      func() time.Time
	log      *zap.Logger
	closed   bool
}

func NewRegistry(factory Factory, opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		factory:  factory,
		ttl:      DefaultIdleTTL,
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.factory == nil {
		r.factory = func(_ string, inbox *Inbox) *Controller {
			return New(WithNotifier(inbox))
		}
	}
	return r
}

// Get returns the session for id, mounting a new controller if there is none
// or the previous one was torn down.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	s, ok := r.sessions[id]
	if !ok || s.Controller.Closed() {
		inbox := NewInbox(DefaultInboxSize)
		s = &Session{ID: id, Controller: r.factory(id, inbox), Inbox: inbox}
		r.sessions[id] = s
		r.log.Debug("Contact session mounted", zap.Int("sessions", len(r.sessions)))
	}
	s.lastSeen = r.now()
	return s, nil
}

// Lookup returns an existing session without creating or touching it.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove tears down and forgets a session.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Controller.Teardown()
	}
	return ok
}

// Sweep tears down sessions idle for longer than the TTL and returns how
// many went.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)
	var stale []*Session

	r.mu.Lock()
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Controller.Teardown()
	}
	if len(stale) > 0 {
		r.log.Info("Swept idle contact sessions", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close tears down every session. Later Gets fail with ErrClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.closed = true
	r.mu.Unlock()

	for _, s := range sessions {
		s.Controller.Teardown()
	}
	r.log.Info("Contact sessions closed", zap.Int("count", len(sessions)))
}
