package contact

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Field names a single input of the contact form
type Field string

const (
	FieldName  Field = "name"
	FieldEmail Field = "email"
	FieldBody  Field = "body"
)

// Fields lists the form inputs in render order
var Fields = []Field{FieldName, FieldEmail, FieldBody}

// ParseField maps an inbound field name to a Field. The page template posts
// the body as "message", so that spelling is accepted too.
func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "name", "fullname":
		return FieldName, nil
	case "email":
		return FieldEmail, nil
	case "body", "message":
		return FieldBody, nil
	}
	return "", ErrUnknownField
}

// Message is what a visitor types into the contact form. It is never stored.
//
// Only presence is checked. An address like "not-an-email" is accepted.
type Message struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required"`
	Body  string `json:"body" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// With returns a copy of m with field replaced by value.
func (m Message) With(field Field, value string) (Message, error) {
	switch field {
	case FieldName:
		m.Name = value
	case FieldEmail:
		m.Email = value
	case FieldBody:
		m.Body = value
	default:
		return m, ErrUnknownField
	}
	return m, nil
}

// Missing reports the fields that would fail the required check, in form order.
func (m Message) Missing() []Field {
	err := validate.Struct(m)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Fields
	}
	missing := make(map[Field]bool, len(verrs))
	for _, fe := range verrs {
		missing[Field(fe.Field())] = true
	}
	out := make([]Field, 0, len(missing))
	for _, f := range Fields {
		if missing[f] {
			out = append(out, f)
		}
	}
	return out
}

// Complete reports whether every field is non-empty.
func (m Message) Complete() bool {
	return len(m.Missing()) == 0
}

// IsZero reports whether the message is in its freshly mounted state.
func (m Message) IsZero() bool {
	return m == Message{}
}
