package contact

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recordingNotifier) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

type harness struct {
	sched *manualScheduler
	notes *recordingNotifier
	trans []Transition
	ctrl  *Controller
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{sched: newManualScheduler(), notes: &recordingNotifier{}}
	base := []Option{
		WithScheduler(h.sched),
		WithNotifier(h.notes),
		WithClock(h.sched.Now),
		WithObserver(func(tr Transition) { h.trans = append(h.trans, tr) }),
	}
	h.ctrl = New(append(base, opts...)...)
	t.Cleanup(h.ctrl.Teardown)
	return h
}

func (h *harness) fill(t *testing.T, name, email, body string) {
	t.Helper()
	require.NoError(t, h.ctrl.SetField(FieldName, name))
	require.NoError(t, h.ctrl.SetField(FieldEmail, email))
	require.NoError(t, h.ctrl.SetField(FieldBody, body))
}

func TestController_StartsEditingAndEmpty(t *testing.T) {
	h := newHarness(t)
	snap := h.ctrl.Snapshot()
	assert.Equal(t, Editing, snap.State)
	assert.True(t, snap.Message.IsZero())
	assert.True(t, snap.Editable())
}

func TestController_LastWriteWinsPerField(t *testing.T) {
	h := newHarness(t)
	edits := []struct {
		field Field
		value string
	}{
		{FieldName, "A"},
		{FieldName, "Ad"},
		{FieldBody, "Hi"},
		{FieldEmail, "ada@"},
		{FieldName, "Ada"},
		{FieldEmail, "ada@example.com"},
		{FieldBody, ""},
		{FieldBody, "Hello"},
	}
	for _, e := range edits {
		require.NoError(t, h.ctrl.SetField(e.field, e.value))
	}

	snap := h.ctrl.Snapshot()
	assert.Equal(t, Editing, snap.State)
	assert.Equal(t, Message{Name: "Ada", Email: "ada@example.com", Body: "Hello"}, snap.Message)
}

func TestController_SetFieldUnknown(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.ctrl.SetField(Field("phone"), "1"), ErrUnknownField)
	assert.True(t, h.ctrl.Snapshot().Message.IsZero())
}

func TestController_SubmitIncompleteStaysEditing(t *testing.T) {
	cases := map[string]Message{
		"all empty":     {},
		"missing name":  {Email: "ada@example.com", Body: "Hello"},
		"missing email": {Name: "Ada", Body: "Hello"},
		"missing body":  {Name: "Ada", Email: "ada@example.com"},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			h.fill(t, msg.Name, msg.Email, msg.Body)

			assert.ErrorIs(t, h.ctrl.Submit(), ErrIncomplete)
			assert.Equal(t, Editing, h.ctrl.State())
			assert.Equal(t, msg, h.ctrl.Snapshot().Message)
			assert.Equal(t, 0, h.sched.Pending())
			assert.Empty(t, h.trans)
		})
	}
}

func TestController_FullLifecycle(t *testing.T) {
	h := newHarness(t)
	h.fill(t, "Ada", "ada@example.com", "Hello")

	require.NoError(t, h.ctrl.Submit())
	assert.Equal(t, Submitting, h.ctrl.State(), "submit must transition synchronously")

	h.sched.Advance(DefaultSubmitLatency - time.Millisecond)
	assert.Equal(t, Submitting, h.ctrl.State())
	assert.Empty(t, h.notes.All())

	h.sched.Advance(time.Millisecond)
	assert.Equal(t, Submitted, h.ctrl.State())
	notes := h.notes.All()
	require.Len(t, notes, 1)
	assert.Equal(t, KindSuccess, notes[0].Kind)
	assert.Equal(t, SuccessText, notes[0].Text)
	assert.Equal(t, Message{Name: "Ada", Email: "ada@example.com", Body: "Hello"}, h.ctrl.Snapshot().Message)

	h.sched.Advance(DefaultResetDelay - time.Millisecond)
	assert.Equal(t, Submitted, h.ctrl.State())

	h.sched.Advance(time.Millisecond)
	snap := h.ctrl.Snapshot()
	assert.Equal(t, Editing, snap.State)
	assert.Equal(t, Message{}, snap.Message)
	assert.Len(t, h.notes.All(), 1, "success is announced exactly once")

	require.Len(t, h.trans, 3)
	assert.Equal(t, Transition{From: Editing, To: Submitting}, stripTime(h.trans[0]))
	assert.Equal(t, Transition{From: Submitting, To: Submitted}, stripTime(h.trans[1]))
	assert.Equal(t, Transition{From: Submitted, To: Editing}, stripTime(h.trans[2]))
}

func stripTime(tr Transition) Transition {
	tr.At = time.Time{}
	return tr
}

func TestController_CustomDelays(t *testing.T) {
	h := newHarness(t, WithSubmitLatency(100*time.Millisecond), WithResetDelay(50*time.Millisecond))
	h.fill(t, "Ada", "ada@example.com", "Hello")
	require.NoError(t, h.ctrl.Submit())

	h.sched.Advance(100 * time.Millisecond)
	assert.Equal(t, Submitted, h.ctrl.State())
	h.sched.Advance(50 * time.Millisecond)
	assert.Equal(t, Editing, h.ctrl.State())
}

func TestController_SubmitIsNoOpWhileBusy(t *testing.T) {
	h := newHarness(t)
	h.fill(t, "Ada", "ada@example.com", "Hello")
	require.NoError(t, h.ctrl.Submit())

	before := h.ctrl.Snapshot()
	assert.ErrorIs(t, h.ctrl.Submit(), ErrInProgress)
	assert.Equal(t, before, h.ctrl.Snapshot())
	assert.Equal(t, 1, h.sched.Pending())

	h.sched.Advance(DefaultSubmitLatency)
	before = h.ctrl.Snapshot()
	require.Equal(t, Submitted, before.State)
	assert.ErrorIs(t, h.ctrl.Submit(), ErrInProgress)
	assert.Equal(t, before, h.ctrl.Snapshot())
	assert.Equal(t, 1, h.sched.Pending())
	assert.Len(t, h.notes.All(), 1)
}

func TestController_FieldsLockedWhileBusy(t *testing.T) {
	h := newHarness(t)
	h.fill(t, "Ada", "ada@example.com", "Hello")
	require.NoError(t, h.ctrl.Submit())

	assert.ErrorIs(t, h.ctrl.SetField(FieldName, "Grace"), ErrLocked)
	h.sched.Advance(DefaultSubmitLatency)
	assert.ErrorIs(t, h.ctrl.SetField(FieldName, "Grace"), ErrLocked)
	assert.Equal(t, "Ada", h.ctrl.Snapshot().Message.Name)

	h.sched.Advance(DefaultResetDelay)
	require.NoError(t, h.ctrl.SetField(FieldName, "Grace"))
	assert.Equal(t, "Grace", h.ctrl.Snapshot().Message.Name)
}

func TestController_TeardownDuringSubmitting(t *testing.T) {
	h := newHarness(t)
	h.fill(t, "Ada", "ada@example.com", "Hello")
	require.NoError(t, h.ctrl.Submit())

	h.ctrl.Teardown()
	assert.True(t, h.ctrl.Closed())
	assert.Equal(t, 0, h.sched.Pending())

	h.sched.Advance(time.Minute)
	snap := h.ctrl.Snapshot()
	assert.Equal(t, Submitting, snap.State)
	assert.Equal(t, "Ada", snap.Message.Name)
	assert.Empty(t, h.notes.All())

	assert.ErrorIs(t, h.ctrl.Submit(), ErrClosed)
	assert.ErrorIs(t, h.ctrl.SetField(FieldName, "x"), ErrClosed)
	h.ctrl.Teardown()
}

func TestController_TeardownDuringSubmitted(t *testing.T) {
	h := newHarness(t)
	h.fill(t, "Ada", "ada@example.com", "Hello")
	require.NoError(t, h.ctrl.Submit())
	h.sched.Advance(DefaultSubmitLatency)
	require.Equal(t, Submitted, h.ctrl.State())

	h.ctrl.Teardown()
	h.sched.Advance(time.Minute)
	assert.Equal(t, Submitted, h.ctrl.State())
	assert.Equal(t, "Ada", h.ctrl.Snapshot().Message.Name)
}

// A timer that already started when teardown ran must still back off.
func TestController_TeardownWhileDelivering(t *testing.T) {
	var h *harness
	h = newHarness(t, WithTransport(TransportFunc(func(ctx context.Context, _ Message) error {
		h.ctrl.Teardown()
		return ctx.Err()
	})))
	h.fill(t, "Ada", "ada@example.com", "Hello")
	require.NoError(t, h.ctrl.Submit())

	h.sched.Advance(DefaultSubmitLatency)
	assert.Equal(t, Submitting, h.ctrl.State())
	assert.Empty(t, h.notes.All())
	assert.Len(t, h.trans, 1)
}

func TestController_DeliveryFailurePreservesFields(t *testing.T) {
	boom := errors.New("smtp unreachable")
	h := newHarness(t, WithTransport(TransportFunc(func(context.Context, Message) error { return boom })))
	h.fill(t, "Ada", "ada@example.com", "Hello")
	require.NoError(t, h.ctrl.Submit())

	h.sched.Advance(DefaultSubmitLatency)
	snap := h.ctrl.Snapshot()
	assert.Equal(t, Editing, snap.State)
	assert.Equal(t, Message{Name: "Ada", Email: "ada@example.com", Body: "Hello"}, snap.Message)

	notes := h.notes.All()
	require.Len(t, notes, 1)
	assert.Equal(t, KindFailure, notes[0].Kind)
	assert.Equal(t, FailureText, notes[0].Text)

	require.Len(t, h.trans, 2)
	assert.ErrorIs(t, h.trans[1].Err, boom)
	assert.Equal(t, Editing, h.trans[1].To)
	assert.Equal(t, 0, h.sched.Pending(), "no reset is scheduled after a failure")

	// the visitor can retry straight away
	require.NoError(t, h.ctrl.Submit())
	assert.Equal(t, Submitting, h.ctrl.State())
}

func TestController_TransportSeesSnapshot(t *testing.T) {
	var got Message
	h := newHarness(t, WithTransport(TransportFunc(func(_ context.Context, m Message) error {
		got = m
		return nil
	})))
	h.fill(t, "Ada", "ada@example.com", "Hello")
	require.NoError(t, h.ctrl.Submit())
	h.sched.Advance(DefaultSubmitLatency)

	assert.Equal(t, Message{Name: "Ada", Email: "ada@example.com", Body: "Hello"}, got)
}

func TestController_SecondRoundAfterReset(t *testing.T) {
	h := newHarness(t)
	for round := 0; round < 2; round++ {
		h.fill(t, "Ada", "ada@example.com", "Hello")
		require.NoError(t, h.ctrl.Submit())
		h.sched.Advance(DefaultSubmitLatency + DefaultResetDelay)
		require.Equal(t, Editing, h.ctrl.State())
	}
	assert.Len(t, h.notes.All(), 2)
}

func TestController_LogsTransitions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := newHarness(t, WithLogger(zap.New(core)))
	h.fill(t, "Ada", "ada@example.com", "Hello")
	require.NoError(t, h.ctrl.Submit())

	entries := logs.FilterMessage("Contact form transition").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "editing", entries[0].ContextMap()["from"])
	assert.Equal(t, "submitting", entries[0].ContextMap()["to"])
}

func TestController_RealClock(t *testing.T) {
	notes := &recordingNotifier{}
	c := New(
		WithNotifier(notes),
		WithSubmitLatency(50*time.Millisecond),
		WithResetDelay(10*time.Millisecond),
	)
	defer c.Teardown()
	require.NoError(t, c.SetField(FieldName, "Ada"))
	require.NoError(t, c.SetField(FieldEmail, "ada@example.com"))
	require.NoError(t, c.SetField(FieldBody, "Hello"))
	require.NoError(t, c.Submit())
	assert.Equal(t, Submitting, c.State())

	require.Eventually(t, func() bool { return len(notes.All()) == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return c.Snapshot().Message.IsZero() }, time.Second, time.Millisecond)
	assert.Equal(t, Editing, c.State())
}
