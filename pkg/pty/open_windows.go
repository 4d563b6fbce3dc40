//go:build windows

package pty

import (
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/containerd/console"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// On Windows the child-exit subsystem degrades to whatever the underlying
// library (ConPTY via containerd/console) and os/exec provide: no registry,
// no installed handler, no waitpid/ESRCH fallback (spec.md §9, "Windows
// branch"). Handle gains a *exec.Cmd and a cached-wait mutex instead.
type windowsState struct {
	cmd     *exec.Cmd
	waitMu  sync.Mutex
	waited  bool
	waitErr error
}

func Open(rows, cols uint16) (*Handle, error) {
	master, slavePath, err := console.NewPty()
	if err != nil {
		return nil, wrapErr(ErrOpen, err)
	}
	h := &Handle{
		master:   consoleAdapter{master},
		childPID: -1,
		log:      logrus.WithField("component", "pty"),
	}
	if err := h.master.Resize(Size{Rows: rows, Cols: cols}); err != nil {
		master.Close()
		return nil, wrapErr(ErrOpen, err)
	}
	h.slavePath = slavePath
	return h, nil
}

func (h *Handle) Spawn(cmdPath string, argv []string, envp []string) error {
	if cmdPath == "" {
		return wrapErr(ErrNull, errors.New("empty command"))
	}
	cmd := exec.Command(cmdPath, argv...)
	cmd.Stdin = h.master
	cmd.Stdout = h.master
	cmd.Stderr = h.master
	if envp != nil {
		out := make([]string, 0, len(envp))
		for _, kv := range envp {
			if strings.Contains(kv, "=") {
				out = append(out, kv)
			}
		}
		cmd.Env = out
	}
	if err := cmd.Start(); err != nil {
		return wrapErr(ErrSpawn, err)
	}
	h.childPID = cmd.Process.Pid
	h.proc = cmd.Process
	h.win = &windowsState{cmd: cmd}
	return nil
}

func (h *Handle) Resize(rows, cols uint16) error {
	if err := h.master.Resize(Size{Rows: rows, Cols: cols}); err != nil {
		return wrapErr(ErrResize, err)
	}
	return nil
}

func (h *Handle) GetSize() (Size, error) {
	s, err := h.master.Size()
	if err != nil {
		return Size{}, wrapErr(ErrSize, err)
	}
	return s, nil
}

func (h *Handle) GetMode() (canonical, echo bool, err error) {
	return false, false, wrapErr(ErrMode, errors.New("get-mode unsupported on windows"))
}

func (h *Handle) ProcessGroupLeader() (int, error) {
	return -1, wrapErr(ErrProcessGroup, errors.New("process groups unsupported on windows"))
}

func (h *Handle) waitLocked() (int, error) {
	h.win.waitMu.Lock()
	defer h.win.waitMu.Unlock()
	if !h.win.waited {
		h.win.waitErr = h.win.cmd.Wait()
		h.win.waited = true
	}
	if h.win.waitErr == nil {
		return 0, nil
	}
	if exitErr, ok := h.win.waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, h.win.waitErr
}

func (h *Handle) Wait() (int, error) {
	if code, cached := h.cachedExit(); cached {
		return code, nil
	}
	if !h.HasSpawned() || h.win == nil {
		return 0, wrapErr(ErrWait, errors.New("still waiting"))
	}
	code, err := h.waitLocked()
	if err != nil {
		return 0, wrapErr(ErrWait, err)
	}
	return h.cacheExit(code), nil
}

func (h *Handle) WaitBlocking() (int, error) {
	return h.Wait()
}

func (h *Handle) Kill(sig syscall.Signal) error {
	if _, cached := h.cachedExit(); cached {
		return nil
	}
	if h.proc == nil {
		return wrapErr(ErrKill, errors.New("no child spawned"))
	}
	if err := h.proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return wrapErr(ErrKill, err)
	}
	return nil
}

func (h *Handle) Close() error {
	if h == nil {
		return nil
	}
	if h.proc != nil {
		_ = h.proc.Kill()
		if h.win != nil {
			_, _ = h.waitLocked()
		}
	}
	if h.master != nil {
		_ = h.master.Close()
	}
	return nil
}
