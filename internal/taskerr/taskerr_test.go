package taskerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("bad input")))
	assert.Equal(t, KindTransient, KindOf(Transient(errors.New("boom"))))
	assert.Equal(t, KindTimeout, KindOf(Timeout(errors.New("deadline"))))
	assert.Equal(t, KindConflict, KindOf(Conflict("busy")))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("stage failed: %w", Transient(errors.New("boom")))
	assert.Equal(t, KindTransient, KindOf(err))
	assert.True(t, Retryable(err))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(Transient(errors.New("x"))))
	assert.True(t, Retryable(Timeout(errors.New("x"))))
	assert.False(t, Retryable(Validation("x")))
	assert.False(t, Retryable(Conflict("x")))
	assert.False(t, Retryable(errors.New("x")))
}

func TestUnwrapToSentinel(t *testing.T) {
	err := &Error{Kind: KindValidation, Err: fmt.Errorf("%w: .pptx", ErrUnsupportedFormat)}
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestTransientNil(t *testing.T) {
	assert.NoError(t, Transient(nil))
}
