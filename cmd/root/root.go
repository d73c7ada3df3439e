package root

import (
	"github.com/spf13/cobra"

	"stack-keeper/internal/config"
)

// Flags shared by every command.
var (
	ConfigFile string
	Overrides  map[string]string
	LogLevel   string
)

var RootCmd = &cobra.Command{
	Use:   "stack-keeper",
	Short: "Single-host service stack bring-up",
	Long: `stack-keeper renders service configs, performs one-time initialization and
starts every service of the stack in rank order, waiting for each to become ready.
A second run on an initialized host only starts what is not running.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.SortFlags = false
	flags.StringVarP(&ConfigFile, "config", "c", "", "Stack config file (default ./stack.yaml or $HOME/.stack-keeper/stack.yaml)")
	flags.StringToStringVar(&Overrides, "set", nil, "Override a template variable, e.g. --set MYSQL_PASSWORD=secret")
	flags.StringVar(&LogLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// LoadConfig loads the stack config named by --config and applies --log-level.
func LoadConfig() (*config.AppConfig, error) {
	cfg, err := config.LoadConfig(ConfigFile)
	if err != nil {
		return nil, err
	}
	if LogLevel != "" {
		cfg.Log.Level = LogLevel
	}
	return cfg, nil
}
