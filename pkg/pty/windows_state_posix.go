//go:build linux || darwin

package pty

// windowsState has no POSIX counterpart; Handle.win is always nil here.
type windowsState struct{}
