//go:build windows

package pty

import (
	"github.com/containerd/console"
	"github.com/pkg/errors"
)

// consoleAdapter on Windows only has Height/Width to work with (ConPTY has no
// termios or pixel-dimension concept), so Resize/Size ignore pixel fields and
// Mode always reports unsupported, per spec.md §4.10 and §9.
type consoleAdapter struct {
	console.Console
}

func (c consoleAdapter) Resize(s Size) error {
	if err := c.Console.Resize(console.WinSize{Height: int16(s.Rows), Width: int16(s.Cols)}); err != nil {
		return errors.Wrap(err, "resize conpty")
	}
	return nil
}

func (c consoleAdapter) Size() (Size, error) {
	ws, err := c.Console.Size()
	if err != nil {
		return Size{}, errors.Wrap(err, "conpty size")
	}
	return Size{Rows: uint16(ws.Height), Cols: uint16(ws.Width)}, nil
}

func (c consoleAdapter) Mode() (canonical, echo bool, err error) {
	return false, false, errors.New("get-mode unsupported on windows")
}
