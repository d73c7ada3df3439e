package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"stack-keeper/cmd/root"
	"stack-keeper/internal/env"
	"stack-keeper/internal/gate"
	"stack-keeper/internal/logger"
	"stack-keeper/internal/telemetry"
	"stack-keeper/services"
)

var resetSetup bool

// ErrBringUpFailed is returned when at least one service did not reach running.
var ErrBringUpFailed = errors.New("bring-up failed")

func init() {
	root.RootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return bringUp(cmd.Context())
	}
	root.RootCmd.Flags().BoolVar(&resetSetup, "reset", false, "Delete the setup marker first, forcing full setup")

	root.RootCmd.Example = `  stack-keeper
  stack-keeper --config ./stack.yaml --set MYSQL_PASSWORD=secret
  stack-keeper --reset --log-level debug
  stack-keeper status`
}

/**
 * Run one bring-up
 * @param {context.Context} ctx - Parent context, cancelled on SIGINT/SIGTERM
 * @returns {error} ErrBringUpFailed if any service failed, config errors otherwise
 * @description
 * - Loads the stack config and applies command-line overrides
 * - Prints the run summary to stdout
 * - Writes the metrics textfile when configured
 */
func bringUp(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logPath := logger.InitLogger(&cfg.Log, runID)
	defer logger.Close()
	logger.Infof("stack-keeper %s starting run %s, log file %s", SoftwareVer, runID, logPath)

	shutdown, err := telemetry.InitTracer(cfg.Trace.Path, runID)
	if err != nil {
		logger.Warnf("Tracing disabled: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warnf("Flush traces failed: %v", err)
		}
	}()

	if resetSetup {
		marker := gate.NewMarker(cfg.MarkerPath())
		if err := marker.Reset(); err != nil {
			return err
		}
		logger.Infof("Setup marker %s removed", marker.Path())
	}

	metrics := services.NewMetrics()
	orch, err := services.NewFromConfig(cfg, env.Environ(), metrics, runID)
	if err != nil {
		logger.Errorf("Invalid stack configuration: %v", err)
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := orch.BringUp(ctx, root.Overrides)
	report.Print(os.Stdout, orch.Services())

	if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logger.Warnf("Write metrics textfile %s failed: %v", cfg.Metrics.Textfile, err)
	}
	if !report.OK() {
		return fmt.Errorf("%w: %d service(s) not running", ErrBringUpFailed, len(report.Failed))
	}
	return nil
}
