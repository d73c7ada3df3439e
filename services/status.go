package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"stack-keeper/internal/models"
)

/**
 * Observed status of one service
 * @property {string} Name - Service name
 * @property {int} Rank - Startup rank
 * @property {string} Initialized - "yes", "no", or "-" when the service has no init step
 * @property {bool} Running - Running check passed
 * @property {error} RunningErr - Why the running check failed
 * @property {[]string} StaleArtifacts - Artifacts that would be rewritten before the next start
 */
type ServiceStatus struct {
	Name           string
	Rank           int
	Initialized    string
	Running        bool
	RunningErr     error
	StaleArtifacts []string
}

/**
 * Stack status snapshot
 * @property {bool} SetupComplete - The setup marker exists
 * @property {*models.SetupState} Setup - Marker body, nil if absent or unreadable
 * @property {[]ServiceStatus} Services - Per-service status in bring-up order
 */
type StackStatus struct {
	MarkerPath    string
	SetupComplete bool
	Setup         *models.SetupState
	Services      []ServiceStatus
}

/**
 * Inspect the stack without changing anything
 * @param {context.Context} ctx - Bounds the probes
 * @param {map[string]string} overrides - Per-run variable overrides
 * @returns {*StackStatus} Marker state and every service's predicates
 * @description
 * - Runs init and running checks only, never an action, launch or write
 * - Services are probed concurrently
 */
func (o *Orchestrator) Inspect(ctx context.Context, overrides map[string]string) *StackStatus {
	vars := o.Source(overrides)
	status := &StackStatus{
		MarkerPath:    o.opts.Marker.Path(),
		SetupComplete: o.opts.Marker.IsSetupComplete(),
		Services:      make([]ServiceStatus, len(o.sorted)),
	}
	if status.SetupComplete {
		if state, err := o.opts.Marker.Load(); err == nil {
			status.Setup = state
		}
	}

	var g errgroup.Group
	for i, d := range o.sorted {
		i, d := i, d
		g.Go(func() error {
			st := ServiceStatus{Name: d.Name, Rank: d.Rank, Initialized: "-"}
			if d.HasInit() {
				st.Initialized = "no"
				if d.InitCheck.Check(ctx, vars) == nil {
					st.Initialized = "yes"
				}
			}
			if err := d.Running.Check(ctx, vars); err != nil {
				st.RunningErr = err
			} else {
				st.Running = true
			}
			for _, a := range d.Artifacts {
				if stale, reason := a.Stale(); stale {
					st.StaleArtifacts = append(st.StaleArtifacts, fmt.Sprintf("%s (%s)", a.Name, reason))
				}
			}
			status.Services[i] = st
			return nil
		})
	}
	_ = g.Wait()
	return status
}

// Lookup returns the status of one service.
func (s *StackStatus) Lookup(name string) (*ServiceStatus, bool) {
	for i := range s.Services {
		if s.Services[i].Name == name {
			return &s.Services[i], true
		}
	}
	return nil, false
}

// Print writes the status table.
func (s *StackStatus) Print(out io.Writer) {
	if s.SetupComplete {
		if s.Setup != nil {
			fmt.Fprintf(out, "setup: complete (run %s at %s)\n", s.Setup.RunID, s.Setup.CompletedAt.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Fprintf(out, "setup: complete (%s)\n", s.MarkerPath)
		}
	} else {
		fmt.Fprintln(out, "setup: pending, next run performs first-time setup")
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tRANK\tINITIALIZED\tRUNNING\tSTALE CONFIG")
	for _, st := range s.Services {
		stale := "-"
		if len(st.StaleArtifacts) > 0 {
			stale = strings.Join(st.StaleArtifacts, ", ")
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", st.Name, st.Rank, st.Initialized, yesNo(st.Running), stale)
	}
	w.Flush()
}
