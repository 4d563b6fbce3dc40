//go:build (linux || darwin) && cgo

// Package reaper owns the process-global, async-signal-safe machinery that
// makes a spawned child's exit status observable even when a foreign SIGCHLD
// handler reaps it first. Every function here that can run on the signal
// delivery path is implemented in C: no allocation, no locks, no calls
// outside the documented async-signal-safe set (atomics, waitpid, and an
// indirect call of whatever handler was previously installed).
package reaper

/*
#include <errno.h>
#include <pthread.h>
#include <signal.h>
#include <stdatomic.h>
#include <stdint.h>
#include <string.h>
#include <sys/types.h>
#include <sys/wait.h>
#include <unistd.h>

#define PTY_REGISTRY_CAPACITY 64

typedef struct {
	_Atomic int32_t pid;
	_Atomic int64_t status;
} pty_slot_t;

static pty_slot_t pty_registry[PTY_REGISTRY_CAPACITY];

static const int64_t PTY_STATUS_RUNNING = INT64_MIN;
static const int64_t PTY_STATUS_EMPTY   = INT64_MIN + 1;

static void pty_registry_register(pid_t pid) {
	for (int i = 0; i < PTY_REGISTRY_CAPACITY; i++) {
		int32_t expected = 0;
		if (atomic_compare_exchange_strong(&pty_registry[i].pid, &expected, (int32_t)pid)) {
			atomic_store(&pty_registry[i].status, PTY_STATUS_RUNNING);
			return;
		}
	}
	// Capacity exhausted: pid goes untracked, the waitpid/ESRCH fallback paths
	// in pkg/pty still find it.
}

static void pty_registry_unregister(pid_t pid) {
	for (int i = 0; i < PTY_REGISTRY_CAPACITY; i++) {
		int32_t expected = (int32_t)pid;
		if (atomic_compare_exchange_strong(&pty_registry[i].pid, &expected, 0)) {
			atomic_store(&pty_registry[i].status, PTY_STATUS_EMPTY);
			return;
		}
	}
}

// Returns 1 and fills *out with a concrete status word if one has been
// observed for pid; returns 0 if pid is RUNNING, EMPTY, or untracked.
static int pty_registry_lookup(pid_t pid, int64_t *out) {
	for (int i = 0; i < PTY_REGISTRY_CAPACITY; i++) {
		if (atomic_load(&pty_registry[i].pid) == (int32_t)pid) {
			int64_t st = atomic_load(&pty_registry[i].status);
			if (st == PTY_STATUS_RUNNING || st == PTY_STATUS_EMPTY) {
				return 0;
			}
			*out = st;
			return 1;
		}
	}
	return 0;
}

static struct sigaction pty_prev_action;
static _Atomic int pty_prev_action_valid = 0;

static void pty_chld_handler(int sig, siginfo_t *info, void *uctx) {
	if (info != NULL && info->si_pid > 0) {
		int64_t synthesized = 0;
		int have = 1;
		switch (info->si_code) {
		case CLD_EXITED:
			synthesized = ((int64_t)(info->si_status & 0xff)) << 8;
			break;
		case CLD_KILLED:
			synthesized = (int64_t)(info->si_status & 0x7f);
			break;
		case CLD_DUMPED:
			synthesized = (int64_t)((info->si_status & 0x7f) | 0x80);
			break;
		default:
			have = 0;
		}
		if (have) {
			for (int i = 0; i < PTY_REGISTRY_CAPACITY; i++) {
				if (atomic_load(&pty_registry[i].pid) == info->si_pid) {
					int64_t expected = PTY_STATUS_RUNNING;
					atomic_compare_exchange_strong(&pty_registry[i].status, &expected, synthesized);
					break;
				}
			}
		}
	}

	// Coalescing sweep: the kernel may merge several pending SIGCHLDs into a
	// single delivery, so reap every other RUNNING slot before a foreign
	// handler gets the chance to.
	for (int i = 0; i < PTY_REGISTRY_CAPACITY; i++) {
		if (atomic_load(&pty_registry[i].status) != PTY_STATUS_RUNNING) {
			continue;
		}
		int32_t pid = atomic_load(&pty_registry[i].pid);
		if (pid <= 0) {
			continue;
		}
		int wstatus = 0;
		pid_t r = waitpid((pid_t)pid, &wstatus, WNOHANG);
		if (r > 0) {
			int64_t expected = PTY_STATUS_RUNNING;
			atomic_compare_exchange_strong(&pty_registry[i].status, &expected, (int64_t)wstatus);
		}
	}

	if (pty_prev_action_valid) {
		if (pty_prev_action.sa_flags & SA_SIGINFO) {
			if (pty_prev_action.sa_sigaction != NULL) {
				pty_prev_action.sa_sigaction(sig, info, uctx);
			}
		} else if (pty_prev_action.sa_handler != SIG_DFL && pty_prev_action.sa_handler != SIG_IGN) {
			if (pty_prev_action.sa_handler != NULL) {
				pty_prev_action.sa_handler(sig);
			}
		}
	}
}

static int pty_ensure_handler(void) {
	struct sigaction current;
	if (sigaction(SIGCHLD, NULL, &current) != 0) {
		return -1;
	}
	if ((current.sa_flags & SA_SIGINFO) && current.sa_sigaction == pty_chld_handler) {
		return 0;
	}

	struct sigaction action;
	memset(&action, 0, sizeof(action));
	action.sa_sigaction = pty_chld_handler;
	action.sa_flags = SA_SIGINFO | SA_RESTART | SA_NOCLDSTOP;
	sigemptyset(&action.sa_mask);

	pty_prev_action = current;
	pty_prev_action_valid = 1;

	return sigaction(SIGCHLD, &action, NULL);
}

static int pty_block_sigchld(sigset_t *old) {
	sigset_t set;
	sigemptyset(&set);
	sigaddset(&set, SIGCHLD);
	return pthread_sigmask(SIG_BLOCK, &set, old);
}

static int pty_restore_sigmask(sigset_t *old) {
	return pthread_sigmask(SIG_SETMASK, old, NULL);
}
*/
import "C"

import (
	"runtime"
	"syscall"

	"github.com/pkg/errors"
)

// Capacity is the fixed number of slots in the PID registry (spec: N = 64).
const Capacity = 64

// EnsureHandler installs the package's SIGCHLD handler if it is not already
// the active one, chaining to whatever was previously installed. Called on
// every Spawn, per the spec's re-install-on-every-spawn rule.
func EnsureHandler() error {
	if rc := C.pty_ensure_handler(); rc != 0 {
		return errors.Wrap(syscall.Errno(-rc), "install SIGCHLD handler")
	}
	return nil
}

// Register claims a registry slot for pid. Silently a no-op if the fixed-size
// registry is full; the caller's waitpid/ESRCH fallback paths remain correct.
func Register(pid int) {
	C.pty_registry_register(C.pid_t(pid))
}

// Unregister releases pid's registry slot, if any.
func Unregister(pid int) {
	C.pty_registry_unregister(C.pid_t(pid))
}

// Lookup returns the decoded exit code for pid if the handler (or its
// coalescing sweep) has already observed it, and false otherwise.
func Lookup(pid int) (exitCode int, ok bool) {
	var raw C.int64_t
	if C.pty_registry_lookup(C.pid_t(pid), &raw) == 0 {
		return 0, false
	}
	return DecodeStatus(int64(raw)), true
}

// WithSIGCHLDBlocked blocks SIGCHLD on the calling thread's signal mask for
// the duration of fn, then restores the prior mask. Used to make the
// block/spawn/register/restore sequence (spec §4.5) atomic with respect to
// delivery of a SIGCHLD for the child being spawned.
func WithSIGCHLDBlocked(fn func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	var old C.sigset_t
	if rc := C.pty_block_sigchld(&old); rc != 0 {
		return errors.Wrap(syscall.Errno(rc), "block SIGCHLD")
	}
	defer C.pty_restore_sigmask(&old)
	return fn()
}

// DecodeStatus turns a uniform status word (either a raw waitpid status or a
// status synthesized from siginfo_t per spec §4.2) into an exit code: the
// program's exit code on normal exit, 128+signal on signal death, or -1.
// syscall.WaitStatus already implements the POSIX WIFEXITED/WIFSIGNALED bit
// layout this function needs, including for our own synthesized words, so it
// is reused rather than hand-rolled (see DESIGN.md).
func DecodeStatus(raw int64) int {
	ws := syscall.WaitStatus(uint32(raw))
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return 128 + int(ws.Signal())
	default:
		return -1
	}
}
