//go:build linux || darwin

package pty

import (
	"github.com/containerd/console"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// consoleAdapter satisfies ptyConsole on top of containerd/console's master
// side, adding the pixel-dimension resize/get-size and the termios-based
// get-mode query that spec.md §4.10 and SPEC_FULL.md §12 (pixel dims on
// resize, not just open) call for and containerd/console's own WinSize type doesn't carry.
type consoleAdapter struct {
	console.Console
}

func (c consoleAdapter) Resize(s Size) error {
	ws := &unix.Winsize{
		Row:    s.Rows,
		Col:    s.Cols,
		Xpixel: s.PixelW,
		Ypixel: s.PixelH,
	}
	if err := unix.IoctlSetWinsize(int(c.Fd()), unix.TIOCSWINSZ, ws); err != nil {
		return errors.Wrap(err, "ioctl TIOCSWINSZ")
	}
	return nil
}

func (c consoleAdapter) Size() (Size, error) {
	ws, err := unix.IoctlGetWinsize(int(c.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return Size{}, errors.Wrap(err, "ioctl TIOCGWINSZ")
	}
	return Size{Rows: ws.Row, Cols: ws.Col, PixelW: ws.Xpixel, PixelH: ws.Ypixel}, nil
}

func (c consoleAdapter) Mode() (canonical, echo bool, err error) {
	term, err := unix.IoctlGetTermios(int(c.Fd()), ttyGetAttrRequest)
	if err != nil {
		return false, false, errors.Wrap(err, "tcgetattr")
	}
	return term.Lflag&unix.ICANON != 0, term.Lflag&unix.ECHO != 0, nil
}
