package proc

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"stack-keeper/internal/logger"
	"stack-keeper/internal/models"
	"stack-keeper/internal/utils"
)

// Handle is the caller's view of a launched process: liveness and best-effort
// terminate, no Wait.
type Handle interface {
	Pid() int
	Alive() bool
	Terminate() error
}

/**
 * ProcessInstance 后台进程实例信息
 * @property {string} title - 进程标题，用于显示
 * @property {string} command - 执行命令
 * @property {[]string} args - 命令参数
 * @property {[]string} env - 追加的环境变量 KEY=VALUE
 * @property {string} workDir - 工作目录
 * @property {string} logPath - 标准输出/错误追加写入的文件
 */
type ProcessInstance struct {
	Title     string
	Command   string
	Args      []string
	Env       []string
	WorkDir   string
	LogPath   string
	StartTime time.Time

	process *os.Process
	exited  chan struct{}
	mutex   sync.Mutex
}

/**
 * NewProcessInstance 创建新的进程实例
 * @param {string} title - 进程标题
 * @param {models.CommandSpecification} spec - 已渲染的命令
 * @param {string} logPath - 输出日志文件，空表示丢弃
 * @returns {ProcessInstance} 返回创建的进程实例
 */
func NewProcessInstance(title string, spec models.CommandSpecification, logPath string) *ProcessInstance {
	return &ProcessInstance{
		Title:   title,
		Command: spec.Command,
		Args:    spec.Args,
		Env:     EnvList(spec.Env),
		WorkDir: spec.WorkDir,
		LogPath: logPath,
	}
}

/**
 * Launch 在后台启动进程
 * @returns {error} 返回错误信息
 * @description
 * - 子进程放入新的进程组，本程序退出后继续运行
 * - 不使用 context 控制子进程，取消本次运行不会杀死已启动的服务
 * - 回收协程只记录退出，调用者拿不到 Wait 语义
 */
func (pi *ProcessInstance) Launch() error {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	if pi.process != nil {
		return fmt.Errorf("process '%s' already launched (PID: %d)", pi.Title, pi.process.Pid)
	}
	logger.Infof("Executing command: %s", pi.CommandLine())

	cmd := exec.Command(pi.Command, pi.Args...)
	if pi.WorkDir != "" {
		cmd.Dir = pi.WorkDir
	}
	cmd.Env = append(os.Environ(), pi.Env...)
	utils.SetNewPG(cmd)

	out, err := openOutput(pi.LogPath)
	if err != nil {
		return err
	}
	if out != nil {
		cmd.Stdout = out
		cmd.Stderr = out
	}

	if err := cmd.Start(); err != nil {
		if out != nil {
			out.Close()
		}
		logger.Errorf("Failed to start process '%s', error: %v", pi.Title, err)
		return err
	}
	// 子进程已持有文件描述符
	if out != nil {
		out.Close()
	}

	pi.process = cmd.Process
	pi.StartTime = time.Now()
	pi.exited = make(chan struct{})
	logger.Infof("Process '%s' started (PID: %d)", pi.Title, pi.process.Pid)

	go func(exited chan struct{}) {
		err := cmd.Wait()
		if err != nil {
			logger.Warnf("Process '%s' (PID: %d) exited with error: %v", pi.Title, cmd.Process.Pid, err)
		} else {
			logger.Infof("Process '%s' (PID: %d) exited normally", pi.Title, cmd.Process.Pid)
		}
		close(exited)
	}(pi.exited)
	return nil
}

func (pi *ProcessInstance) Pid() int {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	if pi.process == nil {
		return 0
	}
	return pi.process.Pid
}

// Alive reports whether the launched process has not exited yet.
func (pi *ProcessInstance) Alive() bool {
	pi.mutex.Lock()
	exited := pi.exited
	pid := 0
	if pi.process != nil {
		pid = pi.process.Pid
	}
	pi.mutex.Unlock()

	if exited == nil {
		return false
	}
	select {
	case <-exited:
		return false
	default:
	}
	running, err := utils.IsProcessRunning(pid)
	return err == nil && running
}

// Terminate 尽力停止进程: SIGTERM，超时后 SIGKILL
func (pi *ProcessInstance) Terminate() error {
	pid := pi.Pid()
	if pid == 0 || !pi.Alive() {
		return nil
	}
	if err := utils.TerminateProcess(pid, 5*time.Second); err != nil {
		logger.Errorf("Failed to stop process '%s' (PID: %d): %v", pi.Title, pid, err)
		return err
	}
	logger.Infof("Process '%s' (PID: %d) stopped", pi.Title, pid)
	return nil
}

func (pi *ProcessInstance) CommandLine() string {
	return strings.TrimSpace(pi.Command + " " + strings.Join(pi.Args, " "))
}

// EnvList converts a map to sorted KEY=VALUE pairs.
func EnvList(vars map[string]string) []string {
	if len(vars) == 0 {
		return nil
	}
	list := make([]string, 0, len(vars))
	for k, v := range vars {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return list
}

func openOutput(logPath string) (*os.File, error) {
	if logPath == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open process log %s: %w", logPath, err)
	}
	return f, nil
}

/**
 * Run a command to completion
 * @param {string} title - Name used in log lines
 * @param {models.CommandSpecification} spec - Rendered command
 * @param {string} logPath - File receiving stdout/stderr, empty to discard
 * @returns {error} Start error or non-zero exit
 * @description
 * - Synchronous, no timeout: relies on the command terminating
 */
func RunCommand(title string, spec models.CommandSpecification, logPath string) error {
	if spec.Command == "" {
		return fmt.Errorf("%s: empty command", title)
	}
	cmd := exec.Command(spec.Command, spec.Args...)
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	cmd.Env = append(os.Environ(), EnvList(spec.Env)...)

	out, err := openOutput(logPath)
	if err != nil {
		return err
	}
	var w io.Writer = io.Discard
	if out != nil {
		defer out.Close()
		w = out
	}
	cmd.Stdout = w
	cmd.Stderr = w

	logger.Infof("Executing command: %s", strings.TrimSpace(spec.Command+" "+strings.Join(spec.Args, " ")))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", title, err)
	}
	return nil
}
