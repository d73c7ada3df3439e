package services

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LogService locates and reads the output captured from service commands.
type LogService struct {
	dir string
}

/**
 * Create new log service instance
 * @param {string} dir - Log directory, the same one service output is written to
 * @returns {*LogService} New log service
 */
func NewLogService(dir string) *LogService {
	return &LogService{dir: dir}
}

// ServiceLog returns where a service's start command writes its output.
func (ls *LogService) ServiceLog(name string) string {
	return filepath.Join(ls.dir, name+".log")
}

// InitLog returns where a service's init action writes its output.
func (ls *LogService) InitLog(name string) string {
	return filepath.Join(ls.dir, name+"-init.log")
}

/**
 * List log files in the log directory
 * @returns {([]string, error)} Sorted file names ending in .log
 */
func (ls *LogService) List() ([]string, error) {
	entries, err := os.ReadDir(ls.dir)
	if err != nil {
		return nil, fmt.Errorf("读取日志目录失败 %s: %w", ls.dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".log") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

/**
 * Copy the last lines of a log file to out
 * @param {io.Writer} out - Destination
 * @param {string} path - Log file
 * @param {int} lines - Number of trailing lines, 0 or less for the whole file
 * @returns {error} Missing file or read error
 * @description
 * - Keeps only a ring of the requested lines in memory
 */
func (ls *LogService) Tail(out io.Writer, path string, lines int) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("日志文件不存在: %s", path)
		}
		return err
	}
	defer f.Close()

	if lines <= 0 {
		_, err = io.Copy(out, f)
		return err
	}

	ring := make([]string, lines)
	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		ring[n%lines] = scanner.Text()
		n++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	start := 0
	if n > lines {
		start = n - lines
	}
	for i := start; i < n; i++ {
		if _, err := fmt.Fprintln(out, ring[i%lines]); err != nil {
			return err
		}
	}
	return nil
}
