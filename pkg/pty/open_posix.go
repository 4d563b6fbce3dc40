//go:build (linux || darwin) && cgo

package pty

import (
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/containerd/console"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/k3s-io/native-pty/pkg/reaper"
)

// Open allocates a PTY pair of the given size. Pixel dimensions default to 0.
func Open(rows, cols uint16) (*Handle, error) {
	master, slavePath, err := console.NewPty()
	if err != nil {
		return nil, wrapErr(ErrOpen, err)
	}

	h := &Handle{
		master:    consoleAdapter{master},
		slavePath: slavePath,
		childPID:  -1,
		log:       logrus.WithField("component", "pty"),
	}

	if err := h.master.Resize(Size{Rows: rows, Cols: cols}); err != nil {
		master.Close()
		return nil, wrapErr(ErrOpen, err)
	}

	slave, err := os.OpenFile(slavePath, os.O_RDWR, 0)
	if err != nil {
		master.Close()
		return nil, wrapErr(ErrOpen, err)
	}
	h.slave = slave
	h.slaveFd = slave.Fd()

	h.log.WithField("slave", slavePath).Debug("opened pty")
	return h, nil
}

// Spawn launches cmdPath on the handle's slave side. argv excludes argv[0]
// (cmdPath itself fills that slot, per spec.md §4.5); envp of nil inherits
// the current environment, otherwise only well-formed KEY=VALUE entries are
// applied and malformed ones are silently skipped.
func (h *Handle) Spawn(cmdPath string, argv []string, envp []string) error {
	if cmdPath == "" {
		return wrapErr(ErrNull, errors.New("empty command"))
	}

	if err := reaper.EnsureHandler(); err != nil {
		return wrapErr(ErrSpawn, err)
	}

	slaveFile, ok := h.slave.(*os.File)
	if !ok {
		return wrapErr(ErrSpawn, errors.New("handle has no open slave"))
	}

	cmd := &exec.Cmd{
		Path:   cmdPath,
		Args:   append([]string{cmdPath}, argv...),
		Stdin:  slaveFile,
		Stdout: slaveFile,
		Stderr: slaveFile,
		SysProcAttr: &syscall.SysProcAttr{
			Setsid:  true,
			Setctty: true,
			Ctty:    0, // the slave is the child's stdin
		},
	}
	if envp != nil {
		cmd.Env = filterEnv(envp)
	}

	var startErr error
	err := reaper.WithSIGCHLDBlocked(func() error {
		if err := cmd.Start(); err != nil {
			startErr = err
			return err
		}
		h.proc = cmd.Process
		h.childPID = cmd.Process.Pid
		reaper.Register(h.childPID)
		return nil
	})
	if err != nil {
		if startErr != nil {
			return wrapErr(ErrSpawn, startErr)
		}
		return wrapErr(ErrSpawn, err)
	}

	h.log.WithField("pid", h.childPID).WithField("cmd", cmdPath).Debug("spawned child")
	return nil
}

// filterEnv applies only the well-formed KEY=VALUE entries of envp,
// silently skipping entries without an '='.
func filterEnv(envp []string) []string {
	out := make([]string, 0, len(envp))
	for _, kv := range envp {
		if strings.Contains(kv, "=") {
			out = append(out, kv)
		}
	}
	return out
}

// Resize forwards to the underlying master console.
func (h *Handle) Resize(rows, cols uint16) error {
	if err := h.master.Resize(Size{Rows: rows, Cols: cols}); err != nil {
		return wrapErr(ErrResize, err)
	}
	return nil
}

// GetSize forwards to the underlying master console.
func (h *Handle) GetSize() (Size, error) {
	s, err := h.master.Size()
	if err != nil {
		return Size{}, wrapErr(ErrSize, err)
	}
	return s, nil
}

// GetMode reports the ICANON/ECHO termios bits of the master side.
func (h *Handle) GetMode() (canonical, echo bool, err error) {
	canonical, echo, err = h.master.Mode()
	if err != nil {
		return false, false, wrapErr(ErrMode, err)
	}
	return canonical, echo, nil
}

// ProcessGroupLeader reports the child's process group leader PID, or -1 if
// unavailable.
func (h *Handle) ProcessGroupLeader() (int, error) {
	if !h.HasSpawned() {
		return -1, wrapErr(ErrProcessGroup, errors.New("no child spawned"))
	}
	pgid, err := unix.Getpgid(h.childPID)
	if err != nil {
		return -1, wrapErr(ErrProcessGroup, err)
	}
	return pgid, nil
}
