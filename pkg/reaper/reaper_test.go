//go:build (linux || darwin) && cgo

package reaper

import (
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStatus_NormalExit(t *testing.T) {
	// CLD_EXITED synthesis per spec §4.2: (status & 0xff) << 8.
	assert.Equal(t, 0, DecodeStatus(0<<8))
	assert.Equal(t, 7, DecodeStatus(7<<8))
	assert.Equal(t, 255, DecodeStatus(255<<8))
}

func TestDecodeStatus_Signaled(t *testing.T) {
	// CLD_KILLED synthesis: status & 0x7f (signal number, no core-dump bit).
	assert.Equal(t, 128+15, DecodeStatus(15))
	// CLD_DUMPED synthesis: (status & 0x7f) | 0x80; core-dump bit is ignored
	// for the exit-code value.
	assert.Equal(t, 128+11, DecodeStatus(11|0x80))
}

func TestDecodeStatus_Unknown(t *testing.T) {
	// Neither exited nor signaled: stopped/continued status words decode to -1.
	const wifStopped = 0x7f
	assert.Equal(t, -1, DecodeStatus(wifStopped))
}

func TestRegistry_RegisterLookupUnregister(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "exit 3")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid

	Register(pid)

	_, ok := Lookup(pid)
	assert.False(t, ok, "freshly registered pid should read as RUNNING, not concrete")

	// cmd.Wait reaps the child directly here, bypassing the SIGCHLD handler
	// entirely; this test only exercises register/unregister bookkeeping, not
	// the handler's own observation path (see the scenario tests in
	// pkg/pty for that).
	_ = cmd.Wait()

	Unregister(pid)
	_, ok = Lookup(pid)
	assert.False(t, ok, "unregistered pid must not be found")
}

func TestEnsureHandler_Idempotent(t *testing.T) {
	require.NoError(t, EnsureHandler())
	require.NoError(t, EnsureHandler())
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
