// Package pty wraps an underlying pseudoterminal primitive and a spawned
// child process behind a single Handle, and implements the wait/kill/close
// decision trees that keep a child's exit code observable even when a
// foreign SIGCHLD handler reaps it first.
package pty

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Size describes a PTY window, including the optional pixel dimensions.
type Size struct {
	Rows   uint16
	Cols   uint16
	PixelW uint16
	PixelH uint16
}

// Handle is the one-per-open-PTY object the C-ABI surface hands out by
// reference. All of its fields mirror spec.md §3.
type Handle struct {
	master ptyConsole

	slavePath string
	slave     io.ReadWriteCloser
	slaveFd   uintptr

	readMu  sync.Mutex
	writeMu sync.Mutex

	// proc is owned by Handle from a successful Spawn until Close; Handle
	// never calls proc.Wait itself (that would race with the registry/waitpid
	// machinery in wait_posix.go), only Kill/Release.
	proc     *os.Process
	childPID int // -1 until a successful Spawn

	// win carries the Windows-only degraded wait state (spec.md §9); it is
	// always nil on POSIX builds.
	win *windowsState

	exitMu     sync.Mutex
	exitCode   int
	exitCached bool

	log *logrus.Entry
}

// HasSpawned reports whether a child has ever been successfully spawned on
// this handle (spec.md §3 invariant: child_pid > 0 implies child present).
func (h *Handle) HasSpawned() bool {
	return h.childPID > 0
}

// ChildPID returns the spawned child's PID, or -1 if none was ever spawned.
func (h *Handle) ChildPID() int {
	if h.childPID <= 0 {
		return -1
	}
	return h.childPID
}

// MasterFd returns the master side's file descriptor.
func (h *Handle) MasterFd() uintptr {
	if h.master == nil {
		return ^uintptr(0)
	}
	return h.master.Fd()
}

func (h *Handle) cacheExit(code int) int {
	h.exitMu.Lock()
	defer h.exitMu.Unlock()
	if !h.exitCached {
		h.exitCode = code
		h.exitCached = true
	}
	return h.exitCode
}

func (h *Handle) cachedExit() (int, bool) {
	h.exitMu.Lock()
	defer h.exitMu.Unlock()
	return h.exitCode, h.exitCached
}

// Read performs one read from the master side of the PTY under the read
// mutex. A nil or zero-length buffer is rejected.
func (h *Handle) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, ErrNull
	}
	h.readMu.Lock()
	defer h.readMu.Unlock()
	n, err := h.master.Read(buf)
	if err != nil && err != io.EOF {
		return -1, wrapErr(ErrRead, err)
	}
	return n, err
}

// Write performs one write to the master side of the PTY under the write
// mutex, flushing afterward. A nil or zero-length buffer is rejected.
func (h *Handle) Write(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, ErrNull
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	n, err := h.master.Write(buf)
	if err != nil {
		return -1, wrapErr(ErrWrite, err)
	}
	if f, ok := h.master.(flusher); ok {
		_ = f.Flush()
	}
	return n, nil
}

type flusher interface {
	Flush() error
}

// ptyConsole is the minimal seam Handle needs from the underlying PTY
// library; concrete implementations live in console_posix.go / console_windows.go
// so Handle itself stays platform-free.
type ptyConsole interface {
	io.ReadWriteCloser
	Fd() uintptr
	Resize(Size) error
	Size() (Size, error)
	Mode() (canonical, echo bool, err error)
}
