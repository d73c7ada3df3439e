package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stack-keeper/internal/env"
	"stack-keeper/internal/models"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

/**
 * Logging configuration
 * @property {string} level - Log level (debug/info/warn/error)
 * @property {string} dir - Directory of per-run log files and per-service output logs
 * @property {bool} console - Mirror log lines to stdout
 */
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Dir     string `mapstructure:"dir"`
	Console bool   `mapstructure:"console"`
}

/**
 * Metrics configuration
 * @property {string} textfile - Prometheus textfile written after each run, empty disables it
 */
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

/**
 * Trace configuration
 * @property {string} path - File receiving exported spans, empty disables export
 */
type TraceConfig struct {
	Path string `mapstructure:"path"`
}

var ErrServiceNotFound = errors.New("service not found")

type AppConfig struct {
	StateDir          string                         `mapstructure:"state_dir"`
	Loopback          string                         `mapstructure:"loopback"`
	HostVariables     []string                       `mapstructure:"host_variables"`
	PortRewrites      []models.PortRewrite           `mapstructure:"port_rewrites"`
	Variables         map[string]string              `mapstructure:"variables"`
	ReadinessInterval time.Duration                  `mapstructure:"readiness_interval"`
	Log               LogConfig                      `mapstructure:"log"`
	Metrics           MetricsConfig                  `mapstructure:"metrics"`
	Trace             TraceConfig                    `mapstructure:"trace"`
	Artifacts         []models.ArtifactSpecification `mapstructure:"artifacts"`
	Services          []models.ServiceSpecification  `mapstructure:"services"`
}

/**
 * Load stack configuration
 * @param {string} path - Explicit config file, empty means search ./stack.yaml then $HOME/.stack-keeper/stack.yaml
 * @returns {(*AppConfig, error)} Defaults overlaid with the file content; defaults alone if no file is found
 * @description
 * - Starts from Defaults()
 * - A key present in the file replaces the default (lists are replaced, not merged)
 * - An explicit path that cannot be read is an error, a missing searched file is not
 */
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("stack")
		v.AddConfigPath(".")
		v.AddConfigPath(env.KeeperDir)
	}

	cfg := Defaults()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		return collectConfig(cfg), nil
	}
	// 列表整体替换，避免与默认值逐元素合并
	for key, reset := range map[string]func(){
		"services":       func() { cfg.Services = nil },
		"artifacts":      func() { cfg.Artifacts = nil },
		"host_variables": func() { cfg.HostVariables = nil },
		"port_rewrites":  func() { cfg.PortRewrites = nil },
	} {
		if v.IsSet(key) {
			reset()
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", v.ConfigFileUsed(), err)
	}
	if err := restoreKeyCase(cfg, v.ConfigFileUsed()); err != nil {
		return nil, err
	}
	return collectConfig(cfg), nil
}

// caseSensitiveMaps mirrors the config maps whose keys are variable names.
type caseSensitiveMaps struct {
	Variables map[string]string `yaml:"variables"`
	Services  []struct {
		Init *struct {
			Action struct {
				Env map[string]string `yaml:"env"`
			} `yaml:"action"`
		} `yaml:"init"`
		Start struct {
			Env map[string]string `yaml:"env"`
		} `yaml:"start"`
	} `yaml:"services"`
}

/**
 * Restore the key case of variable maps
 * @param {*AppConfig} cfg - Config already unmarshalled by viper
 * @param {string} path - Config file
 * @returns {error} Read or parse error
 * @description
 * - viper lowercases every map key, variable names and env names are case-sensitive
 */
func restoreKeyCase(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var maps caseSensitiveMaps
	if err := yaml.Unmarshal(data, &maps); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if maps.Variables != nil {
		cfg.Variables = maps.Variables
	}
	for i, svc := range maps.Services {
		if i >= len(cfg.Services) {
			break
		}
		if svc.Start.Env != nil {
			cfg.Services[i].Start.Env = svc.Start.Env
		}
		if svc.Init != nil && svc.Init.Action.Env != nil && cfg.Services[i].Init != nil {
			cfg.Services[i].Init.Action.Env = svc.Init.Action.Env
		}
	}
	return nil
}

// collectConfig 补全缺省值
func collectConfig(cfg *AppConfig) *AppConfig {
	if cfg.StateDir == "" {
		cfg.StateDir = filepath.Join(env.KeeperDir, "state")
	}
	if cfg.Log.Dir == "" {
		cfg.Log.Dir = filepath.Join(env.KeeperDir, "logs")
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Loopback == "" {
		cfg.Loopback = "127.0.0.1"
	}
	if cfg.ReadinessInterval <= 0 {
		cfg.ReadinessInterval = time.Second
	}
	if cfg.Variables == nil {
		cfg.Variables = map[string]string{}
	}
	return cfg
}

// MarkerPath is the location of the setup marker.
func (cfg *AppConfig) MarkerPath() string {
	return filepath.Join(cfg.StateDir, "setup.done")
}

func (cfg *AppConfig) Service(name string) (*models.ServiceSpecification, error) {
	for i := range cfg.Services {
		if cfg.Services[i].Name == name {
			return &cfg.Services[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
}
