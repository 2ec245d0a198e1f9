package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageWith_ReturnsCopy(t *testing.T) {
	orig := Message{Name: "Ada"}
	next, err := orig.With(FieldEmail, "ada@example.com")
	require.NoError(t, err)

	assert.Equal(t, "", orig.Email, "original must not be aliased")
	assert.Equal(t, Message{Name: "Ada", Email: "ada@example.com"}, next)
}

func TestMessageWith_UnknownField(t *testing.T) {
	_, err := Message{}.With(Field("phone"), "555")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestMessageMissing(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want []Field
	}{
		{"empty", Message{}, []Field{FieldName, FieldEmail, FieldBody}},
		{"body only missing", Message{Name: "Ada", Email: "ada@example.com"}, []Field{FieldBody}},
		{"email missing", Message{Name: "Ada", Body: "Hello"}, []Field{FieldEmail}},
		{"complete", Message{Name: "Ada", Email: "ada@example.com", Body: "Hello"}, nil},
		{"email format is not checked", Message{Name: "Ada", Email: "not-an-email", Body: "Hello"}, nil},
		{"whitespace counts as present", Message{Name: " ", Email: " ", Body: " "}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.Missing())
			assert.Equal(t, tt.want == nil, tt.msg.Complete())
		})
	}
}

func TestParseField(t *testing.T) {
	for in, want := range map[string]Field{
		"name":     FieldName,
		"fullName": FieldName,
		"EMAIL":    FieldEmail,
		"body":     FieldBody,
		"message":  FieldBody,
	} {
		got, err := ParseField(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseField("subject")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestStateJSONName(t *testing.T) {
	b, err := Submitting.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "submitting", string(b))
	assert.Equal(t, "unknown", State(42).String())
}
