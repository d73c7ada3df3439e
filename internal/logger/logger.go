package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stack-keeper/internal/config"
)

var (
	defaultLogger *Logger
)

// Logger 日志结构体
type Logger struct {
	debugLogger *log.Logger
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	file        *os.File
}

// LogLevel 日志级别类型
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// GetLogLevelFromString 将字符串转换为日志级别
func GetLogLevelFromString(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO // 默认级别
	}
}

/**
 * Initialize the logger for one bring-up run
 * @param {*config.LogConfig} cfg - Log configuration
 * @param {string} runID - Run identifier, prefixed to every line
 * @returns {string} Path of the per-run log file, empty if only the console is used
 * @description
 * - Every run appends to its own file <dir>/bringup-<time>-<runid>.log
 * - Lines are mirrored to stdout when cfg.Console is set
 * - Falls back to stdout if the log directory cannot be created
 */
func InitLogger(cfg *config.LogConfig, runID string) string {
	var outputs []io.Writer
	var file *os.File
	logPath := ""

	if cfg.Dir != "" {
		logPath = filepath.Join(cfg.Dir, fmt.Sprintf("bringup-%s-%s.log", time.Now().Format("20060102-150405"), shortID(runID)))
		if file = openLogFile(logPath); file != nil {
			outputs = append(outputs, file)
		} else {
			logPath = ""
		}
	}
	// 控制台输出，文件不可用时也退回到控制台
	if cfg.Console || len(outputs) == 0 {
		outputs = append(outputs, os.Stdout)
	}
	setLogger(newLogger(cfg.Level, runID, outputs, file))
	return logPath
}

func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

// InitWithWriter 直接输出到指定 writer，测试用
func InitWithWriter(w io.Writer, level string) {
	setLogger(newLogger(level, "", []io.Writer{w}, nil))
}

func newLogger(level, runID string, outputs []io.Writer, file *os.File) *Logger {
	output := io.MultiWriter(outputs...)
	logLevel := GetLogLevelFromString(level)

	prefix := ""
	if runID != "" {
		prefix = "[" + shortID(runID) + "] "
	}
	flags := log.LstdFlags | log.Lmsgprefix

	l := &Logger{
		debugLogger: log.New(io.Discard, prefix+"DEBUG: ", flags),
		infoLogger:  log.New(io.Discard, prefix+"INFO: ", flags),
		warnLogger:  log.New(io.Discard, prefix+"WARN: ", flags),
		errorLogger: log.New(io.Discard, prefix+"ERROR: ", flags),
		file:        file,
	}

	// 根据级别设置输出
	if logLevel <= DEBUG {
		l.debugLogger.SetOutput(output)
	}
	if logLevel <= INFO {
		l.infoLogger.SetOutput(output)
	}
	if logLevel <= WARN {
		l.warnLogger.SetOutput(output)
	}
	if logLevel <= ERROR {
		l.errorLogger.SetOutput(output)
	}
	return l
}

func setLogger(l *Logger) {
	if defaultLogger != nil && defaultLogger.file != nil && defaultLogger.file != l.file {
		defaultLogger.file.Close()
	}
	defaultLogger = l
}

// openLogFile 打开(追加)日志文件
func openLogFile(logPath string) *os.File {
	// 确保日志目录存在
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "create log directory failed: %v\n", err)
		return nil
	}

	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		// 在日志系统初始化失败时，暂时使用标准错误输出
		fmt.Fprintf(os.Stderr, "open log file failed: %v\n", err)
		return nil
	}
	return file
}

// Close 关闭日志文件
func Close() {
	if defaultLogger != nil && defaultLogger.file != nil {
		defaultLogger.file.Close()
		defaultLogger.file = nil
	}
}

// Debug 输出调试日志
func Debug(v ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.debugLogger.Println(v...)
	}
}

// Debugf 输出格式化调试日志
func Debugf(format string, v ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.debugLogger.Printf(format, v...)
	}
}

// Info 输出信息日志
func Info(v ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.infoLogger.Println(v...)
	}
}

// Infof 输出格式化信息日志
func Infof(format string, v ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.infoLogger.Printf(format, v...)
	}
}

// Warn 输出警告日志
func Warn(v ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.warnLogger.Println(v...)
	}
}

// Warnf 输出格式化警告日志
func Warnf(format string, v ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.warnLogger.Printf(format, v...)
	}
}

// Error 输出错误日志
func Error(v ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.errorLogger.Println(v...)
	}
}

// Errorf 输出格式化错误日志
func Errorf(format string, v ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.errorLogger.Printf(format, v...)
	}
}

// Fatal 输出致命错误日志并退出程序
func Fatal(v ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.errorLogger.Fatal(v...)
	} else {
		// 在日志系统未初始化时，使用标准错误输出
		fmt.Fprintln(os.Stderr, append([]interface{}{"FATAL:"}, v...)...)
		os.Exit(1)
	}
}
