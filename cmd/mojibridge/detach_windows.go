//go:build windows

package main

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// detachedProcAttr starts the resident without a console of its own, outside
// the launcher's process group so closing the terminal does not kill it.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.DETACHED_PROCESS | windows.CREATE_NEW_PROCESS_GROUP,
	}
}
