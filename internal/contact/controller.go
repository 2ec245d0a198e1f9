// Package contact holds the server-side state of a visitor's contact form.
//
// A Controller moves through three states:
//
//	Editing --submit--> Submitting --latency--> Submitted --reset delay--> Editing
//
// Both timed transitions run on the injected Scheduler, never inside the call
// that caused them. Teardown revokes whatever is pending.
package contact

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	DefaultSubmitLatency = 2 * time.Second
	DefaultResetDelay    = 3 * time.Second
)

var tracer = otel.Tracer("github.com/Zachkp/portfolio/internal/contact")

// Snapshot is what the presentation layer renders.
type Snapshot struct {
	State   State   `json:"state"`
	Message Message `json:"message"`
}

// Editable reports whether inputs and the submit button should be enabled.
func (s Snapshot) Editable() bool { return s.State == Editing }

// Transition describes one state change. Err is set when a delivery failed
// and the form went back to Editing.
type Transition struct {
	From State
	To   State
	Err  error
	At   time.Time
}

// Observer is told about every transition, outside the controller's lock.
type Observer func(Transition)

type Option func(*Controller)

func WithScheduler(s Scheduler) Option { return func(c *Controller) { c.sched = s } }

func WithNotifier(n Notifier) Option { return func(c *Controller) { c.notifier = n } }

func WithTransport(t Transport) Option { return func(c *Controller) { c.transport = t } }

func WithLogger(l *zap.Logger) Option { return func(c *Controller) { c.log = l } }

func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

// WithObserver adds a transition observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observers = append(c.observers, o) }
}

// WithSubmitLatency sets how long Submitting lasts before delivery.
func WithSubmitLatency(d time.Duration) Option {
	return func(c *Controller) { c.latency = d }
}

// WithResetDelay sets how long Submitted lasts before the form clears.
func WithResetDelay(d time.Duration) Option {
	return func(c *Controller) { c.resetDelay = d }
}

// Controller owns one contact form. It is safe for concurrent use.
type Controller struct {
	mu      sync.Mutex
	state   State
	msg     Message
	pending Timer
	epoch   uint64
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc

	sched      Scheduler
	notifier   Notifier
	transport  Transport
	observers  []Observer
	latency    time.Duration
	resetDelay time.Duration
	log        *zap.Logger
	now        func() time.Time
}

// New returns a controller in Editing with an empty message.
func New(opts ...Option) *Controller {
	c := &Controller{
		sched:      ClockScheduler(),
		notifier:   nopNotifier{},
		latency:    DefaultSubmitLatency,
		resetDelay: DefaultResetDelay,
		log:        zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = SimulatedTransport{Log: c.log}
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// SetField replaces one field. Edits are only accepted while Editing.
func (c *Controller) SetField(field Field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.state != Editing {
		return ErrLocked
	}
	msg, err := c.msg.With(field, value)
	if err != nil {
		return err
	}
	c.msg = msg
	return nil
}

// Submit starts delivery of the current message. A submit while one is
// already in flight returns ErrInProgress and changes nothing.
func (c *Controller) Submit() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != Editing {
		c.mu.Unlock()
		return ErrInProgress
	}
	if !c.msg.Complete() {
		c.mu.Unlock()
		return ErrIncomplete
	}
	c.epoch++
	epoch, snapshot := c.epoch, c.msg
	c.state = Submitting
	c.pending = c.sched.AfterFunc(c.latency, func() { c.deliver(epoch, snapshot) })
	c.mu.Unlock()

	c.observe(Transition{From: Editing, To: Submitting, At: c.now()})
	return nil
}

// Snapshot returns the current state and field values.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{State: c.state, Message: c.msg}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Closed reports whether Teardown has run.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Teardown stops any pending transition and freezes the controller. Safe to
// call more than once.
func (c *Controller) Teardown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	state := c.state
	c.mu.Unlock()

	c.cancel()
	c.log.Debug("Contact form torn down", zap.Stringer("state", state))
}

// live must be called with mu held.
func (c *Controller) live(epoch uint64, want State) bool {
	return !c.closed && c.epoch == epoch && c.state == want
}

func (c *Controller) deliver(epoch uint64, msg Message) {
	c.mu.Lock()
	if !c.live(epoch, Submitting) {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	ctx := c.ctx
	c.mu.Unlock()

	ctx, span := tracer.Start(ctx, "contact.deliver")
	err := c.transport.Deliver(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.Bool("contact.delivered", err == nil))
	span.End()

	c.mu.Lock()
	if !c.live(epoch, Submitting) {
		c.mu.Unlock()
		return
	}
	at := c.now()
	tr := Transition{From: Submitting, At: at}
	note := Notification{At: at}
	if err != nil {
		c.state = Editing
		tr.To, tr.Err = Editing, err
		note.Kind, note.Text = KindFailure, FailureText
	} else {
		c.state = Submitted
		c.pending = c.sched.AfterFunc(c.resetDelay, func() { c.clear(epoch) })
		tr.To = Submitted
		note.Kind, note.Text = KindSuccess, SuccessText
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("Contact delivery failed", zap.Error(err))
	}
	c.observe(tr)
	c.notifier.Notify(note)
}

func (c *Controller) clear(epoch uint64) {
	c.mu.Lock()
	if !c.live(epoch, Submitted) {
		c.mu.Unlock()
		return
	}
	c.state = Editing
	c.msg = Message{}
	c.pending = nil
	c.mu.Unlock()

	c.observe(Transition{From: Submitted, To: Editing, At: c.now()})
}

func (c *Controller) observe(t Transition) {
	c.log.Debug("Contact form transition",
		zap.Stringer("from", t.From),
		zap.Stringer("to", t.To),
	)
	for _, o := range c.observers {
		o(t)
	}
}
