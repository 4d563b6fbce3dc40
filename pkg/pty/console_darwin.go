//go:build darwin

package pty

import "golang.org/x/sys/unix"

const ttyGetAttrRequest = unix.TIOCGETA
