package status

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"stack-keeper/cmd/root"
	"stack-keeper/internal/config"
	"stack-keeper/internal/env"
	"stack-keeper/services"
)

var statusTimeout time.Duration

var statusCmd = &cobra.Command{
	Use:   "status [service]",
	Short: "Show setup and service status",
	Long:  "Probe every service of the stack without starting or changing anything. With a service name, show that service in detail.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context(), args)
	},
}

func init() {
	root.RootCmd.AddCommand(statusCmd)
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 10*time.Second, "Time budget for all probes")
	statusCmd.Example = `  stack-keeper status
  stack-keeper status infinity`
}

/**
 * Show stack status
 * @param {context.Context} ctx - Parent context
 * @param {[]string} args - Optional service name
 * @returns {error} Config errors or unknown service
 * @description
 * - Lists all services with init, running and config state
 * - With a name, prints that service's details and the failing check
 */
func showStatus(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	orch, err := services.NewFromConfig(cfg, env.Environ(), nil, "")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()
	status := orch.Inspect(ctx, root.Overrides)

	if len(args) == 0 {
		status.Print(os.Stdout)
		return nil
	}
	return showServiceDetail(cfg, status, args[0])
}

func showServiceDetail(cfg *config.AppConfig, status *services.StackStatus, name string) error {
	spec, err := cfg.Service(name)
	if err != nil {
		return err
	}
	st, _ := status.Lookup(name)

	fmt.Printf("=== %s ===\n", name)
	fmt.Printf("Rank: %d\n", spec.Rank)
	if len(spec.DependsOn) > 0 {
		fmt.Printf("Depends on: %v\n", spec.DependsOn)
	}
	fmt.Printf("Start: %s %v\n", spec.Start.Command, spec.Start.Args)
	fmt.Printf("Running check: %s\n", spec.Running.Type)
	fmt.Printf("Readiness timeout: %v\n", spec.ReadinessTimeout)
	fmt.Printf("Initialized: %s\n", st.Initialized)
	if st.Running {
		fmt.Println("Running: yes")
	} else {
		fmt.Printf("Running: no (%v)\n", st.RunningErr)
	}
	for _, a := range st.StaleArtifacts {
		fmt.Printf("Stale config: %s\n", a)
	}
	return nil
}
