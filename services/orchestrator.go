package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"stack-keeper/internal/config"
	"stack-keeper/internal/gate"
	"stack-keeper/internal/logger"
	"stack-keeper/internal/models"
	"stack-keeper/internal/render"
)

const tracerName = "stack-keeper"

/**
 * Orchestrator construction options
 * @property {*gate.Marker} Marker - Setup marker
 * @property {[]*Descriptor} Descriptors - Managed services
 * @property {[]*render.Artifact} Artifacts - All artifacts, refreshed as a whole during setup
 * @property {map[string]string} Environ - Captured process environment
 * @property {map[string]string} Variables - Configured variables, overridden per run
 * @property {[]string} HostVariables - Host-identity names pinned to Loopback
 * @property {string} Loopback - Pinned address
 * @property {[]models.PortRewrite} PortRewrites - Loopback port rewrites
 * @property {time.Duration} Interval - Readiness poll interval
 * @property {*Metrics} Metrics - Optional metrics
 * @property {string} RunID - Run identifier, generated when empty
 */
type Options struct {
	Marker        *gate.Marker
	Descriptors   []*Descriptor
	Artifacts     []*render.Artifact
	Environ       map[string]string
	Variables     map[string]string
	HostVariables []string
	Loopback      string
	PortRewrites  []models.PortRewrite
	Interval      time.Duration
	Metrics       *Metrics
	RunID         string
}

type Orchestrator struct {
	opts   Options
	sorted []*Descriptor
	groups [][]*Descriptor
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Marker == nil {
		return nil, fmt.Errorf("setup marker is required")
	}
	if opts.Loopback == "" {
		opts.Loopback = "127.0.0.1"
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	names := make(map[string]int, len(opts.Descriptors))
	for _, d := range opts.Descriptors {
		if _, dup := names[d.Name]; dup {
			return nil, fmt.Errorf("service %q defined twice", d.Name)
		}
		names[d.Name] = d.Rank
	}
	for _, d := range opts.Descriptors {
		for _, dep := range d.DependsOn {
			rank, ok := names[dep]
			if !ok {
				return nil, fmt.Errorf("service %q depends on %q: %w", d.Name, dep, config.ErrServiceNotFound)
			}
			if rank >= d.Rank {
				return nil, fmt.Errorf("service %q depends on %q of rank %d: dependency rank must be lower", d.Name, dep, rank)
			}
		}
	}
	sorted := SortByRank(opts.Descriptors)
	return &Orchestrator{opts: opts, sorted: sorted, groups: groupByRank(sorted)}, nil
}

/**
 * Build an orchestrator from the stack configuration
 * @param {*config.AppConfig} cfg - Stack configuration
 * @param {map[string]string} environ - Captured environment
 * @param {*Metrics} metrics - Optional metrics
 * @param {string} runID - Run identifier
 * @returns {(*Orchestrator, error)} Orchestrator or configuration error
 */
func NewFromConfig(cfg *config.AppConfig, environ map[string]string, metrics *Metrics, runID string) (*Orchestrator, error) {
	descs, artifacts, err := BuildDescriptors(cfg)
	if err != nil {
		return nil, err
	}
	return New(Options{
		Marker:        gate.NewMarker(cfg.MarkerPath()),
		Descriptors:   descs,
		Artifacts:     artifacts,
		Environ:       environ,
		Variables:     cfg.Variables,
		HostVariables: cfg.HostVariables,
		Loopback:      cfg.Loopback,
		PortRewrites:  cfg.PortRewrites,
		Interval:      cfg.ReadinessInterval,
		Metrics:       metrics,
		RunID:         runID,
	})
}

// Services lists service names in bring-up order.
func (o *Orchestrator) Services() []string {
	names := make([]string, 0, len(o.sorted))
	for _, d := range o.sorted {
		names = append(names, d.Name)
	}
	return names
}

func (o *Orchestrator) RunID() string {
	return o.opts.RunID
}

/**
 * Compose the variable source of a run
 * @param {map[string]string} overrides - Per-run overrides, e.g. --set
 * @returns {render.Source} pinned hosts > overrides > environment > template default
 * @description
 * - Configured variables sit in the override layer, per-run overrides replace them
 */
func (o *Orchestrator) Source(overrides map[string]string) render.Source {
	merged := make(map[string]string, len(o.opts.Variables)+len(overrides))
	for k, v := range o.opts.Variables {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return render.NewSource(
		render.Layer{Name: "overrides", Values: merged},
		render.Layer{Name: "environment", Values: o.opts.Environ},
	).WithPinnedHosts(o.opts.HostVariables, o.opts.Loopback).
		WithPortRewrites(o.opts.PortRewrites...)
}

/**
 * Bring the stack up
 * @param {context.Context} ctx - Cancelling it stops the run between and within ranks
 * @param {map[string]string} overrides - Per-run variable overrides
 * @returns {*Report} Per-service outcome, never nil
 * @description
 * - Without the marker, every artifact is refreshed and init steps may run
 * - Ranks run in ascending order, services of one rank run concurrently
 * - A service whose dependency is not running fails with DependencyError and is not attempted;
 *   without depends_on every lower-rank service is a dependency
 * - One service failing never stops unrelated services
 * - The marker is written only if setup ran, every service reached Initialized and all artifacts are fresh
 * - Launched processes are never stopped, even on failure or cancellation
 */
func (o *Orchestrator) BringUp(ctx context.Context, overrides map[string]string) *Report {
	began := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "stack.bringup")
	defer span.End()

	report := newReport(o.opts.RunID)
	vars := o.Source(overrides)
	setup := !o.opts.Marker.IsSetupComplete()
	report.SetupPerformed = setup
	span.SetAttributes(
		attribute.String("run.id", o.opts.RunID),
		attribute.Bool("setup", setup),
		attribute.Int("services", len(o.sorted)),
	)

	refresher := newArtifactRefresher(vars, report, o.opts.Metrics)
	if setup {
		logger.Infof("Setup marker %s not found, performing first-time setup", o.opts.Marker.Path())
		for _, a := range o.opts.Artifacts {
			if _, err := refresher.refresh(a); err != nil {
				logger.Errorf("Config [%s] refresh failed: %v", a.Name, err)
			}
		}
	} else {
		logger.Infof("Setup marker %s found, skipping one-time init", o.opts.Marker.Path())
	}

	initSatisfied := make(map[string]bool, len(o.sorted))
	var mu sync.Mutex
	for i, group := range o.groups {
		if err := ctx.Err(); err != nil {
			o.cancelRemaining(report, o.groups[i:], err)
			break
		}
		logger.Infof("Bringing up rank %d: %d service(s)", group[0].Rank, len(group))

		// 同一 rank 内并发，失败不取消兄弟服务
		var g errgroup.Group
		for _, d := range group {
			d := d
			if dep := o.blockedBy(d, report); dep != "" {
				err := &models.DependencyError{Service: d.Name, Dependency: dep}
				logger.Warnf("Service [%s] not attempted: %v", d.Name, err)
				report.fail(d.Name, err)
				o.opts.Metrics.transition(d.Name, models.StateFailed)
				continue
			}
			g.Go(func() error {
				out := o.drive(ctx, d, vars, setup, refresher)
				report.record(d.Name, out)
				mu.Lock()
				initSatisfied[d.Name] = out.InitSatisfied
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	if setup {
		o.completeSetup(report, initSatisfied)
	}
	report.finish()

	if report.OK() {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, fmt.Sprintf("%d service(s) failed", len(report.Failed)))
	}
	o.opts.Metrics.runFinished(report.OK(), setup, time.Since(began))
	logger.Infof("Bring-up finished in %v: %d running, %d failed",
		time.Since(began).Round(time.Millisecond), len(report.Succeeded), len(report.Failed))
	return report
}

func (o *Orchestrator) drive(ctx context.Context, d *Descriptor, vars render.Source, setup bool, refresher *artifactRefresher) Outcome {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "stack.service",
		trace.WithAttributes(attribute.String("service", d.Name), attribute.Int("rank", d.Rank)))
	defer span.End()

	c := NewController(d, vars, o.opts.Interval, refresher.refresh, o.opts.Metrics)
	out := c.Run(ctx, setup)
	span.SetAttributes(
		attribute.String("state", string(out.State)),
		attribute.Bool("initialized", out.Initialized),
		attribute.Bool("started", out.Started),
	)
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
	}
	return out
}

/**
 * Find the first dependency of d that is not running
 * @param {*Descriptor} d - Service about to be attempted
 * @param {*Report} report - Outcomes of the ranks already visited
 * @returns {string} Dependency name, empty when d may start
 * @description
 * - Without depends_on every lower-rank service is a dependency
 * - depends_on narrows that set to the named services
 */
func (o *Orchestrator) blockedBy(d *Descriptor, report *Report) string {
	deps := d.DependsOn
	if len(deps) == 0 {
		deps = nil
		for _, lower := range o.sorted {
			if lower.Rank >= d.Rank {
				break
			}
			deps = append(deps, lower.Name)
		}
	}
	for _, dep := range deps {
		if !report.IsRunning(dep) {
			return dep
		}
	}
	return ""
}

func (o *Orchestrator) cancelRemaining(report *Report, groups [][]*Descriptor, cause error) {
	logger.Warnf("Bring-up cancelled: %v", cause)
	for _, group := range groups {
		for _, d := range group {
			report.fail(d.Name, fmt.Errorf("%w: %v", models.ErrCancelled, cause))
			o.opts.Metrics.transition(d.Name, models.StateFailed)
		}
	}
}

// completeSetup writes the marker once nothing is left to initialize or render.
func (o *Orchestrator) completeSetup(report *Report, initSatisfied map[string]bool) {
	for _, d := range o.sorted {
		if !initSatisfied[d.Name] {
			logger.Warnf("Setup incomplete: service [%s] never reached initialized, marker not written", d.Name)
			return
		}
	}
	for _, a := range o.opts.Artifacts {
		if stale, reason := a.Stale(); stale {
			logger.Warnf("Setup incomplete: config [%s] is %s, marker not written", a.Name, reason)
			return
		}
	}
	if err := o.opts.Marker.MarkSetupComplete(o.opts.RunID, report.Initialized); err != nil {
		logger.Errorf("Failed to write setup marker: %v", err)
		report.MarkerErr = err
		return
	}
	report.SetupCompleted = true
	logger.Infof("Setup marker written to %s", o.opts.Marker.Path())
}

// artifactRefresher refreshes each artifact at most once per run.
type artifactRefresher struct {
	vars    render.Source
	report  *Report
	metrics *Metrics

	mu   sync.Mutex
	done map[string]error
}

func newArtifactRefresher(vars render.Source, report *Report, metrics *Metrics) *artifactRefresher {
	return &artifactRefresher{
		vars:    vars,
		report:  report,
		metrics: metrics,
		done:    make(map[string]error),
	}
}

/**
 * Refresh an artifact if stale
 * @param {*render.Artifact} a - Artifact
 * @returns {(bool, error)} true if written by this call
 * @description
 * - Each artifact is handled once per run, later callers get the first result without a rewrite
 * - Calls are serialized, two services sharing an artifact never write it twice
 */
func (r *artifactRefresher) refresh(a *render.Artifact) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.done[a.Output]; ok {
		return false, err
	}
	stale, reason := a.Stale()
	if !stale {
		r.done[a.Output] = nil
		return false, nil
	}
	logger.Infof("Config [%s] is stale (%s), rendering %s -> %s", a.Name, reason, a.Template, a.Output)
	err := a.Write(r.vars)
	r.metrics.configWrite(a.Name, err)
	r.done[a.Output] = err
	if err != nil {
		return false, err
	}
	if stale, _ := a.Stale(); stale {
		logger.Warnf("Config [%s] still has unresolved placeholders after rendering", a.Name)
	}
	if missing := a.Missing(r.vars); len(missing) > 0 {
		logger.Warnf("Config [%s] rendered with empty values for %v", a.Name, missing)
	}
	r.report.rewritten(a.Name)
	return true, nil
}
