//go:build (linux || darwin) && cgo

package pty

import (
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/k3s-io/native-pty/pkg/reaper"
)

// errStillWaiting is an internal sentinel for "no answer yet"; it is never
// returned to a caller, only used to drive the decision trees below.
var errStillWaiting = errors.New("still waiting")

// Wait implements the non-blocking wait decision tree of spec.md §4.6,
// without a step that delegates to a library-level non-blocking wait:
// os.Process offers none, so the direct waitpid of step 4 is the only wait.
func (h *Handle) Wait() (int, error) {
	if code, cached := h.cachedExit(); cached {
		return code, nil
	}
	if !h.HasSpawned() {
		return 0, wrapErr(ErrWait, errStillWaiting)
	}

	// Step 3: consult the registry.
	if code, ok := reaper.Lookup(h.childPID); ok {
		return h.cacheExit(code), nil
	}

	// Step 4: direct non-blocking waitpid.
	var wstatus unix.WaitStatus
	pid, err := unix.Wait4(h.childPID, &wstatus, unix.WNOHANG, nil)
	if err == nil {
		if pid == h.childPID {
			return h.cacheExit(reaper.DecodeStatus(int64(wstatus))), nil
		}
		// pid == 0: still running.
		if pid == 0 {
			return 0, wrapErr(ErrWait, errStillWaiting)
		}
	}

	// Steps 6-7: the handler may have run since step 3; re-consult
	// the registry, then fall back to an ESRCH liveness probe.
	if code, ok := reaper.Lookup(h.childPID); ok {
		return h.cacheExit(code), nil
	}
	if probeErr := unix.Kill(h.childPID, 0); probeErr == unix.ESRCH {
		return h.cacheExit(0), nil
	}
	return 0, wrapErr(ErrWait, errStillWaiting)
}

// WaitBlocking implements the blocking wait decision tree of spec.md §4.7.
func (h *Handle) WaitBlocking() (int, error) {
	if code, cached := h.cachedExit(); cached {
		return code, nil
	}
	if !h.HasSpawned() {
		return 0, wrapErr(ErrWaitBlocking, errors.New("no child spawned"))
	}

	if code, ok := reaper.Lookup(h.childPID); ok {
		return h.cacheExit(code), nil
	}

	var wstatus unix.WaitStatus
	pid, err := unix.Wait4(h.childPID, &wstatus, 0, nil)
	if err == nil && pid == h.childPID {
		return h.cacheExit(reaper.DecodeStatus(int64(wstatus))), nil
	}

	// err is typically ECHILD: a foreign handler already reaped the child.
	// By the time waitpid fails that way, our handler's siginfo-decode phase
	// has already produced a registry entry (spec.md §4.3 phase 1); fall back
	// to it, then to the ESRCH liveness probe, with no polling loop needed.
	if code, ok := reaper.Lookup(h.childPID); ok {
		return h.cacheExit(code), nil
	}
	if probeErr := unix.Kill(h.childPID, 0); probeErr == unix.ESRCH {
		return h.cacheExit(0), nil
	}
	return 0, wrapErr(ErrWaitBlocking, errors.New("child status unobservable"))
}

// Kill signals the child. ESRCH (already dead) and an already-cached exit
// are both treated as success, per spec.md §4.8/§7.
func (h *Handle) Kill(sig syscall.Signal) error {
	if _, cached := h.cachedExit(); cached {
		return nil
	}
	if !h.HasSpawned() {
		return wrapErr(ErrKill, errors.New("no child spawned"))
	}
	if _, ok := reaper.Lookup(h.childPID); ok {
		return nil
	}
	if err := unix.Kill(h.childPID, sig); err != nil && err != unix.ESRCH {
		return wrapErr(ErrKill, err)
	}
	return nil
}

// Close unregisters the PID, best-effort terminates and reaps the child,
// then drops the handle's resources. Safe to call on a nil *Handle.
func (h *Handle) Close() error {
	if h == nil {
		return nil
	}
	if h.HasSpawned() {
		reaper.Unregister(h.childPID)
		if h.proc != nil {
			_ = h.proc.Kill()
			var wstatus unix.WaitStatus
			_, _ = unix.Wait4(h.childPID, &wstatus, unix.WNOHANG, nil)
			_ = h.proc.Release()
		}
	}
	if h.slave != nil {
		_ = h.slave.Close()
	}
	if h.master != nil {
		_ = h.master.Close()
	}
	return nil
}
