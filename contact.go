package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Zachkp/portfolio/internal/contact"
	"github.com/Zachkp/portfolio/internal/store"
)

const sessionContactKey = "contact_id"

// fieldAliases are the form input names accepted for each field. The older
// contact template posted fullName and message.
var fieldAliases = map[contact.Field][]string{
	contact.FieldName:  {"name", "fullName"},
	contact.FieldEmail: {"email"},
	contact.FieldBody:  {"body", "message"},
}

// newController is the registry factory: one controller per form session.
func (s *server) newController(id string, inbox *contact.Inbox) *contact.Controller {
	hash := s.hasher.Hash(id)
	return contact.New(
		contact.WithNotifier(inbox),
		contact.WithTransport(s.transport),
		contact.WithSubmitLatency(s.cfg.SubmitLatency),
		contact.WithResetDelay(s.cfg.ResetDelay),
		contact.WithLogger(s.log.With(zap.String("session", hash))),
		contact.WithObserver(s.metrics.ObserveTransition),
		contact.WithObserver(s.recordOutcome(hash)),
	)
}

// recordOutcome stores how each submission ended. Only the hashed session id
// is kept, never the message.
func (s *server) recordOutcome(sessionHash string) contact.Observer {
	return func(tr contact.Transition) {
		if tr.From != contact.Submitting {
			return
		}
		outcome := store.OutcomeSubmitted
		if tr.Err != nil {
			outcome = store.OutcomeFailed
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.store.RecordContactEvent(ctx, store.ContactEvent{
			SessionHash: sessionHash,
			Outcome:     outcome,
			At:          tr.At,
		})
		if err != nil {
			s.log.Error("Error recording contact outcome", zap.Error(err))
		}
	}
}

// formSession returns the visitor's contact session, creating the cookie on
// first contact. The cookie is re-saved each time so it slides with activity.
// On failure it has already written the response.
func (s *server) formSession(c *gin.Context) (*contact.Session, bool) {
	sess := sessions.Default(c)
	id, _ := sess.Get(sessionContactKey).(string)
	if !contact.ValidSessionID(id) {
		id = contact.NewSessionID()
		sess.Set(sessionContactKey, id)
	}
	if err := sess.Save(); err != nil {
		s.log.Error("Error saving session", zap.Error(err))
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{"error": "Session unavailable"})
		return nil, false
	}
	cs, err := s.sessions.Get(id)
	if err != nil {
		c.HTML(http.StatusServiceUnavailable, "error.html", gin.H{"error": "Shutting down"})
		return nil, false
	}
	return cs, true
}

type contactView struct {
	contact.Snapshot
	Missing map[string]bool
	Error   string
}

func formView(snap contact.Snapshot, submitErr error) contactView {
	v := contactView{Snapshot: snap}
	if errors.Is(submitErr, contact.ErrIncomplete) {
		v.Missing = make(map[string]bool)
		for _, f := range snap.Message.Missing() {
			v.Missing[string(f)] = true
		}
		v.Error = "Please fill in every field."
	}
	return v
}

// HTMX Contact form endpoint - returns just the form HTML
func (s *server) contactForm(c *gin.Context) {
	sess, ok := s.formSession(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "contact.html", formView(sess.Controller.Snapshot(), nil))
}

// contactField applies a field change. It takes either field=<name>&value=<v>
// or the input's own name, which is what HTMX posts from a bare input.
func (s *server) contactField(c *gin.Context) {
	changes, err := postedChanges(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, ok := s.formSession(c)
	if !ok {
		return
	}
	for _, ch := range changes {
		err := sess.Controller.SetField(ch.field, ch.value)
		switch {
		case err == nil:
		case errors.Is(err, contact.ErrLocked), errors.Is(err, contact.ErrClosed):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "state": sess.Controller.State()})
			return
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	c.Status(http.StatusNoContent)
}

type fieldChange struct {
	field contact.Field
	value string
}

var errNoField = errors.New("no contact field in request")

func postedChanges(c *gin.Context) ([]fieldChange, error) {
	if name, ok := c.GetPostForm("field"); ok {
		field, err := contact.ParseField(name)
		if err != nil {
			return nil, err
		}
		return []fieldChange{{field: field, value: c.PostForm("value")}}, nil
	}
	var changes []fieldChange
	for _, f := range contact.Fields {
		for _, name := range fieldAliases[f] {
			if v, ok := c.GetPostForm(name); ok {
				changes = append(changes, fieldChange{field: f, value: v})
				break
			}
		}
	}
	if len(changes) == 0 {
		return nil, errNoField
	}
	return changes, nil
}

// Handle contact form submission with HTMX
func (s *server) contactSubmit(c *gin.Context) {
	sess, ok := s.formSession(c)
	if !ok {
		return
	}
	ctrl := sess.Controller
	changes, _ := postedChanges(c)
	for _, ch := range changes {
		// a locked form keeps its snapshot; Submit below reports the no-op
		if err := ctrl.SetField(ch.field, ch.value); err != nil && !errors.Is(err, contact.ErrLocked) {
			s.log.Warn("Error applying contact field", zap.String("field", string(ch.field)), zap.Error(err))
		}
	}
	err := ctrl.Submit()
	status := http.StatusOK
	switch {
	case err == nil:
		s.log.Info("Contact form submitted", zap.String("session", s.hasher.Hash(sess.ID)))
	case errors.Is(err, contact.ErrIncomplete):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, contact.ErrInProgress):
		// repeated clicks are a no-op
	default:
		status = http.StatusConflict
	}
	c.HTML(status, "contact.html", formView(ctrl.Snapshot(), err))
}

func (s *server) contactState(c *gin.Context) {
	sess, ok := s.formSession(c)
	if !ok {
		return
	}
	snap := sess.Controller.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"state": snap.State,
		"name":  snap.Message.Name,
		"email": snap.Message.Email,
		"body":  snap.Message.Body,
	})
}

func (s *server) contactToasts(c *gin.Context) {
	sess, ok := s.formSession(c)
	if !ok {
		return
	}
	notes := sess.Inbox.Drain()
	if c.GetHeader("Accept") == "application/json" {
		c.JSON(http.StatusOK, gin.H{"toasts": notes})
		return
	}
	c.HTML(http.StatusOK, "toasts.html", gin.H{"toasts": notes})
}

// contactUnmount tears the visitor's form down, cancelling anything pending.
func (s *server) contactUnmount(c *gin.Context) {
	sess := sessions.Default(c)
	id, _ := sess.Get(sessionContactKey).(string)
	if id != "" {
		s.sessions.Remove(id)
	}
	c.Status(http.StatusNoContent)
}
