package utils

import (
	"bufio"
	"bytes"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ProcessEntry 进程列表中的一项
type ProcessEntry struct {
	Pid     int
	Command string
}

/**
 * Parse the output of "ps -e -o pid,command"
 * @param {[]byte} output - Raw ps output
 * @returns {[]ProcessEntry} Entries, header and malformed lines skipped
 */
func ParseProcessList(output []byte) []ProcessEntry {
	var entries []ProcessEntry
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// 跳过标题行
		if strings.HasPrefix(line, "PID") {
			continue
		}
		pidStr, command, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(pidStr)
		if err != nil {
			continue
		}
		entries = append(entries, ProcessEntry{Pid: pid, Command: strings.TrimSpace(command)})
	}
	return entries
}

/**
 * Find processes whose command line contains pattern
 * @param {string} pattern - Substring of the command line, e.g. "rag/svr/task_executor.py"
 * @returns {([]int, error)} Matching PIDs, excluding this process
 * @description
 * - Uses the ps command format compatible with Linux and Darwin
 * - The command field is used instead of comm, which truncates names
 */
func FindProcesses(pattern string) ([]int, error) {
	output, err := exec.Command("ps", "-e", "-o", "pid,command").Output()
	if err != nil {
		return nil, err
	}
	return MatchProcesses(ParseProcessList(output), pattern, os.Getpid()), nil
}

// MatchProcesses filters entries by command-line substring, skipping selfPid.
func MatchProcesses(entries []ProcessEntry, pattern string, selfPid int) []int {
	var pids []int
	for _, e := range entries {
		if e.Pid == selfPid {
			continue
		}
		if strings.Contains(e.Command, pattern) {
			pids = append(pids, e.Pid)
		}
	}
	return pids
}
