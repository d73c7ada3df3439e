package env

import (
	"os"
	"path/filepath"
	"strings"
)

// (default: $HOME/.stack-keeper, overridden by STACK_KEEPER_HOME)
var KeeperDir string = GetKeeperDir()

/**
 * Get stack-keeper home directory path
 * @returns {string} Returns the directory holding stack.yaml, state and logs
 */
func GetKeeperDir() string {
	if dir := os.Getenv("STACK_KEEPER_HOME"); dir != "" {
		return dir
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".stack-keeper")
}

/**
 * Snapshot the process environment
 * @returns {map[string]string} Variables of os.Environ() as a map
 * @description
 * - Captured once at startup and passed by value to the renderer,
 *   so rendering never reads the environment implicitly
 */
func Environ() map[string]string {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		vars[name] = value
	}
	return vars
}
