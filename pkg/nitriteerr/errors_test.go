package nitriteerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_MessageIncludesKindAndCause(t *testing.T) {
	err := Wrap(KindIO, "write failed", errors.New("disk full"))
	assert.Equal(t, "io_error: write failed: disk full", err.Error())
}

func TestError_MessageWithoutCause(t *testing.T) {
	err := New(KindNotFound, "no such document")
	assert.Equal(t, "not_found: no such document", err.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindIO, "write failed", cause)
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestError_IsMatchesOnKindOnly(t *testing.T) {
	err := Wrap(KindValidation, "bad field", errors.New("detail"))
	assert.True(t, errors.Is(err, New(KindValidation, "different message")))
	assert.False(t, errors.Is(err, New(KindNotFound, "bad field")))
}

func TestError_IsRejectsNonErrorTarget(t *testing.T) {
	err := New(KindClosed, "store closed")
	assert.False(t, errors.Is(err, errors.New("store closed")))
}

func TestConstructors_ProduceExpectedKind(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		want Kind
	}{
		{"InvalidOperation", InvalidOperation("x"), KindInvalidOperation},
		{"NotIdentifiable", NotIdentifiable("x"), KindNotIdentifiable},
		{"NotFound", NotFound("x"), KindNotFound},
		{"Validation", Validation("x"), KindValidation},
		{"Filter", Filter("x"), KindFilter},
		{"InvalidFieldName", InvalidFieldName("x"), KindInvalidFieldName},
		{"InvalidDataType", InvalidDataType("x"), KindInvalidDataType},
		{"Corruption", Corruption("x"), KindCorruption},
		{"Closed", Closed("x"), KindClosed},
		{"Security", Security("x"), KindSecurity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Kind)
		})
	}
}

func TestIO_WrapsCause(t *testing.T) {
	cause := errors.New("eof")
	err := IO("read failed", cause)
	assert.Equal(t, KindIO, err.Kind)
	assert.Same(t, cause, err.Cause)
}

func TestObjectMapping_WrapsCause(t *testing.T) {
	cause := errors.New("bad tag")
	err := ObjectMapping("mapping failed", cause)
	assert.Equal(t, KindObjectMapping, err.Kind)
	assert.Same(t, cause, err.Cause)
}

func TestKindOf_ReadsKindFromErrorNotFromMessageText(t *testing.T) {
	base := New(KindCorruption, "bad page")
	wrapped := errors.New("context: " + base.Error())

	_, ok := KindOf(wrapped)
	assert.False(t, ok)

	kind, ok := KindOf(base)
	require := assert.New(t)
	require.True(ok)
	require.Equal(KindCorruption, kind)
}

func TestKindOf_FalseForPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}
