package logs

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stack-keeper/cmd/root"
	"stack-keeper/services"
)

var (
	lines   int
	initLog bool
)

func init() {
	root.RootCmd.AddCommand(Cmd)
	Cmd.Flags().SortFlags = false
	Cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines, 0 for the whole file")
	Cmd.Flags().BoolVar(&initLog, "init", false, "Show the init action output instead of the service output")
}

var Cmd = &cobra.Command{
	Use:   "logs [service]",
	Short: "Show captured service output",
	Long:  "Print the tail of a service's output log. Without a service name, list the log files.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := root.LoadConfig()
		if err != nil {
			return err
		}
		logService := services.NewLogService(cfg.Log.Dir)

		if len(args) == 0 {
			names, err := logService.List()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		}

		if _, err := cfg.Service(args[0]); err != nil {
			return err
		}
		path := logService.ServiceLog(args[0])
		if initLog {
			path = logService.InitLog(args[0])
		}
		return logService.Tail(os.Stdout, path, lines)
	},
}
