//go:build unix

package utils

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// SetNewPG 设置进程属性，使子进程在父进程退出后继续运行
func SetNewPG(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// IsProcessRunning 检查进程是否正在运行
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, fmt.Errorf("invalid PID %d", pid)
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, fmt.Errorf("failed to find process with PID %d: %v", pid, err)
	}
	// 发送signal 0来检查进程是否存在
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true, nil
	}
	// 进程存在但无权限发送信号
	if errors.Is(err, syscall.EPERM) {
		return true, nil
	}
	return false, nil
}

/**
 * Terminate process gracefully with SIGTERM first, then SIGKILL if needed
 * @param {int} pid - Process ID to kill
 * @param {time.Duration} grace - Time allowed to exit after SIGTERM
 * @returns {error} Returns error if the process could not be signalled
 */
func TerminateProcess(pid int, grace time.Duration) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process (PID: %d): %v", pid, err)
	}

	// 首先尝试优雅终止 (SIGTERM)
	if err := process.Signal(syscall.SIGTERM); err == nil {
		deadline := time.Now().Add(grace)
		for time.Now().Before(deadline) {
			if running, _ := IsProcessRunning(pid); !running {
				return nil
			}
			time.Sleep(100 * time.Millisecond)
		}
	} else if errors.Is(err, os.ErrProcessDone) {
		return nil
	}

	// 如果SIGTERM失败，使用强制终止 (SIGKILL)
	if err := process.Signal(syscall.SIGKILL); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill process (PID: %d): %v", pid, err)
	}
	return nil
}
