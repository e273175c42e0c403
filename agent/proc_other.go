//go:build !windows

package agent

import "syscall"

func hiddenProcAttr() *syscall.SysProcAttr {
	return nil
}
