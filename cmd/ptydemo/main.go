// Command ptydemo opens a PTY, spawns a shell (or the given command) on it,
// and relays stdin/stdout until the child exits, printing its exit code.
// It exists to exercise pkg/pty directly (not through the C-ABI) and to give
// the demo-only dependencies (process title, log rotation, systemd
// readiness) a concrete home, the way k3s's own
// pkg/cli/cmds.forkIfLoggingOrReaping wires the same three together.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	systemd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/erikdubbelboer/gspt"
	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"

	"github.com/k3s-io/native-pty/pkg/pty"
)

func main() {
	var (
		rows    = flag.Int("rows", 24, "initial PTY row count")
		cols    = flag.Int("cols", 80, "initial PTY column count")
		logFile = flag.String("log-file", "", "rotate a session transcript log through this path")
		debug   = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if *logFile != "" {
		logrus.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   *logFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		}))
	}

	args := flag.Args()
	if len(args) == 0 {
		shell := os.Getenv("SHELL")
		if shell == "" {
			shell = "/bin/sh"
		}
		args = []string{shell}
	}

	gspt.SetProcTitle(fmt.Sprintf("ptydemo: %s", strings.Join(args, " ")))

	if err := run(uint16(*rows), uint16(*cols), args); err != nil {
		logrus.WithError(err).Fatal("ptydemo failed")
	}
}

func run(rows, cols uint16, args []string) error {
	h, err := pty.Open(rows, cols)
	if err != nil {
		return err
	}
	defer h.Close()

	var spawnArgs []string
	if len(args) > 1 {
		spawnArgs = args[1:]
	}
	if err := h.Spawn(args[0], spawnArgs, nil); err != nil {
		return err
	}
	logrus.WithField("pid", h.ChildPID()).Info("child spawned")

	ctx := setupSignalContext(h)
	defer ctx.cancel()

	if _, err := systemd.SdNotify(false, daemonReady()); err != nil {
		logrus.WithError(err).Debug("systemd notify failed (not under systemd)")
	}

	go io.Copy(h, os.Stdin)
	go io.Copy(os.Stdout, h)

	code, err := h.WaitBlocking()
	if err != nil {
		return err
	}
	logrus.WithField("exit_code", code).Info("child exited")
	os.Exit(code)
	return nil
}

func daemonReady() string {
	return "READY=1\n"
}

// signalContext adapts k3s's pkg/signals.SetupSignalContext pattern to this
// single-PTY demo instead of a whole server process: the first SIGINT or
// SIGTERM sends SIGTERM to the child; later signals are caught and dropped.
type signalContext struct {
	cancel func()
}

func setupSignalContext(h *pty.Handle) *signalContext {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case s := <-sigs:
			logrus.WithField("signal", s).Info("shutting down child")
			_ = h.Kill(syscall.SIGTERM)
		case <-done:
		}
	}()
	return &signalContext{cancel: func() { close(done) }}
}
