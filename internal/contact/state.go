package contact

import "errors"

// State is the lifecycle position of a contact form.
type State int

const (
	Editing State = iota
	Submitting
	Submitted
)

func (s State) String() string {
	switch s {
	case Editing:
		return "editing"
	case Submitting:
		return "submitting"
	case Submitted:
		return "submitted"
	}
	return "unknown"
}

// MarshalText renders the state by name so JSON responses read "submitting"
// rather than 1.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	ErrUnknownField = errors.New("contact: unknown field")
	ErrLocked       = errors.New("contact: form is locked while a message is in flight")
	ErrIncomplete   = errors.New("contact: all fields are required")
	ErrInProgress   = errors.New("contact: submission already in progress")
	ErrClosed       = errors.New("contact: controller torn down")
)
