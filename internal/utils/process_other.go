//go:build !unix

package utils

import (
	"errors"
	"os/exec"
	"time"
)

var errUnsupported = errors.New("not supported on this platform")

// SetNewPG 默认实现，用于不支持的构建目标
func SetNewPG(cmd *exec.Cmd) {
}

// IsProcessRunning 检查进程是否正在运行
func IsProcessRunning(pid int) (bool, error) {
	return false, errUnsupported
}

// TerminateProcess 默认实现，用于不支持的构建目标
func TerminateProcess(pid int, grace time.Duration) error {
	return errUnsupported
}
