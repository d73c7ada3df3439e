package services

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"stack-keeper/internal/models"
)

/**
 * Outcome of one bring-up run
 * @property {string} RunID - Run identifier, also found in log lines and the marker
 * @property {bool} SetupPerformed - The marker was absent at start
 * @property {bool} SetupCompleted - The marker was written by this run
 * @property {[]string} Succeeded - Services that reached Running
 * @property {map[string]error} Failed - Failure reason per service
 * @property {[]string} Initialized - Services whose init action ran
 * @property {[]string} Started - Services whose start action was issued
 * @property {[]string} Rewritten - Artifacts written in this run
 * @property {error} MarkerErr - Setup marker write failure
 */
type Report struct {
	RunID          string
	SetupPerformed bool
	SetupCompleted bool
	Succeeded      []string
	Failed         map[string]error
	Initialized    []string
	Started        []string
	Rewritten      []string
	States         map[string]models.ServiceState
	MarkerErr      error

	mu sync.Mutex
}

func newReport(runID string) *Report {
	return &Report{
		RunID:  runID,
		Failed: make(map[string]error),
		States: make(map[string]models.ServiceState),
	}
}

// OK is true when every service is running and no marker error occurred.
func (r *Report) OK() bool {
	return len(r.Failed) == 0 && r.MarkerErr == nil
}

func (r *Report) IsRunning(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.States[name] == models.StateRunning
}

func (r *Report) record(name string, out Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.States[name] = out.State
	if out.State == models.StateRunning {
		r.Succeeded = append(r.Succeeded, name)
	} else {
		r.Failed[name] = out.Err
	}
	if out.Initialized {
		r.Initialized = append(r.Initialized, name)
	}
	if out.Started {
		r.Started = append(r.Started, name)
	}
}

func (r *Report) fail(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.States[name] = models.StateFailed
	r.Failed[name] = err
}

func (r *Report) rewritten(artifact string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Rewritten = append(r.Rewritten, artifact)
}

func (r *Report) finish() {
	sort.Strings(r.Succeeded)
	sort.Strings(r.Initialized)
	sort.Strings(r.Started)
	sort.Strings(r.Rewritten)
}

/**
 * Print the run summary as a table
 * @param {io.Writer} out - Destination, usually stdout
 * @param {[]string} order - Service names in display order
 */
func (r *Report) Print(out io.Writer, order []string) {
	mode := "skipped (marker present)"
	if r.SetupPerformed {
		mode = "performed"
		if !r.SetupCompleted {
			mode = "incomplete"
		}
	}
	fmt.Fprintf(out, "=== bring-up %s ===\n", r.RunID)
	fmt.Fprintf(out, "setup: %s\n", mode)
	if len(r.Rewritten) > 0 {
		fmt.Fprintf(out, "configs written: %s\n", strings.Join(r.Rewritten, ", "))
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tSTATE\tINIT\tSTARTED\tERROR")
	for _, name := range order {
		state, ok := r.States[name]
		if !ok {
			continue
		}
		errText := "-"
		if err := r.Failed[name]; err != nil {
			errText = err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, state,
			yesNo(slices.Contains(r.Initialized, name)), yesNo(slices.Contains(r.Started, name)), errText)
	}
	w.Flush()

	if r.MarkerErr != nil {
		fmt.Fprintf(out, "setup marker: %v\n", r.MarkerErr)
	}
	if r.OK() {
		fmt.Fprintf(out, "all %d services running\n", len(r.Succeeded))
	} else {
		fmt.Fprintf(out, "%d running, %d failed\n", len(r.Succeeded), len(r.Failed))
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
