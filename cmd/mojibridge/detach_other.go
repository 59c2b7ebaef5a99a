//go:build !windows

package main

import "syscall"

// detachedProcAttr puts the resident in its own session.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
