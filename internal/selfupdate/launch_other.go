//go:build !unix

package selfupdate

import (
	"os"
	"syscall"
)

func detachAttr() *syscall.SysProcAttr {
	return nil
}

func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return false
}
