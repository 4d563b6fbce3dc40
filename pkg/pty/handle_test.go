package pty

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConsole is a minimal in-memory ptyConsole double for exercising Handle's
// locking and validation logic without a real PTY.
type fakeConsole struct {
	bytes.Buffer
	size Size
}

func (f *fakeConsole) Fd() uintptr            { return 0 }
func (f *fakeConsole) Close() error           { return nil }
func (f *fakeConsole) Resize(s Size) error    { f.size = s; return nil }
func (f *fakeConsole) Size() (Size, error)    { return f.size, nil }
func (f *fakeConsole) Mode() (bool, bool, error) {
	return true, true, nil
}

func newTestHandle() *Handle {
	return &Handle{master: &fakeConsole{}, childPID: -1}
}

func TestHandle_ReadRejectsNilOrEmpty(t *testing.T) {
	h := newTestHandle()
	n, err := h.Read(nil)
	assert.Equal(t, 0, n)
	assert.Equal(t, ErrNull, err)

	n, err = h.Read([]byte{})
	assert.Equal(t, 0, n)
	assert.Equal(t, ErrNull, err)
}

func TestHandle_WriteRejectsNilOrEmpty(t *testing.T) {
	h := newTestHandle()
	n, err := h.Write(nil)
	assert.Equal(t, 0, n)
	assert.Equal(t, ErrNull, err)

	n, err = h.Write([]byte{})
	assert.Equal(t, 0, n)
	assert.Equal(t, ErrNull, err)
}

func TestHandle_WriteReadRoundTrip(t *testing.T) {
	h := newTestHandle()
	n, err := h.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = h.Read(buf)
	require.True(t, err == nil || err == io.EOF)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
}

func TestHandle_CacheExitIsWriteOnce(t *testing.T) {
	h := newTestHandle()

	code, cached := h.cachedExit()
	assert.False(t, cached)
	assert.Equal(t, 0, code)

	assert.Equal(t, 3, h.cacheExit(3))
	// A second write must not overwrite the first cached value.
	assert.Equal(t, 3, h.cacheExit(99))

	code, cached = h.cachedExit()
	assert.True(t, cached)
	assert.Equal(t, 3, code)
}

func TestHandle_ChildPIDAndHasSpawned(t *testing.T) {
	h := newTestHandle()
	assert.False(t, h.HasSpawned())
	assert.Equal(t, -1, h.ChildPID())

	h.childPID = 4242
	assert.True(t, h.HasSpawned())
	assert.Equal(t, 4242, h.ChildPID())
}

func TestHandle_MasterFdWithNilMaster(t *testing.T) {
	h := &Handle{childPID: -1}
	assert.Equal(t, ^uintptr(0), h.MasterFd())
}
