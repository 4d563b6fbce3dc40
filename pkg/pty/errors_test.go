package pty

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestWrapErr_RoundTripsThroughResultOf(t *testing.T) {
	cause := errors.New("boom")
	err := wrapErr(ErrSpawn, cause)

	assert.True(t, errors.Is(err, ErrSpawn))
	assert.False(t, errors.Is(err, ErrKill))
	assert.Equal(t, ErrSpawn, ResultOf(err, ErrOpen))
	assert.Contains(t, err.Error(), "ErrSpawn")
	assert.Contains(t, err.Error(), "boom")
}

func TestWrapErr_NilCauseReturnsBareKind(t *testing.T) {
	err := wrapErr(ErrWait, nil)
	assert.Equal(t, ErrWait, err)
}

func TestResultOf_UnknownErrorFallsBack(t *testing.T) {
	assert.Equal(t, ErrKill, ResultOf(errors.New("not ours"), ErrKill))
}

func TestResultOf_NilErrorIsOk(t *testing.T) {
	assert.Equal(t, Ok, ResultOf(nil, ErrOpen))
}
