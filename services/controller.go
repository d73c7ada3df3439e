package services

import (
	"context"
	"fmt"
	"time"

	"stack-keeper/internal/logger"
	"stack-keeper/internal/models"
	"stack-keeper/internal/proc"
	"stack-keeper/internal/render"
)

// RefreshFunc brings one artifact up to date and reports whether it was rewritten.
type RefreshFunc func(a *render.Artifact) (bool, error)

/**
 * Result of driving one service
 * @property {models.ServiceState} State - Terminal state, Running or Failed
 * @property {bool} Initialized - The init action ran and succeeded in this run
 * @property {bool} InitSatisfied - Init is known done: predicate passed, action succeeded, or setup was skipped
 * @property {bool} Started - The start action was issued in this run
 * @property {[]string} Rewritten - Artifacts this service caused to be written
 * @property {error} Err - Failure reason when State is Failed
 */
type Outcome struct {
	State         models.ServiceState
	Initialized   bool
	InitSatisfied bool
	Started       bool
	Rewritten     []string
	Err           error
}

/**
 * Per-service state machine
 * @description
 * - Uninitialized -> Initializing -> Initialized -> Starting -> Running
 * - Any step may end in Failed, which is terminal for this run
 * - Each transition is logged once and counted once
 */
type Controller struct {
	desc     *Descriptor
	vars     render.Source
	interval time.Duration
	refresh  RefreshFunc
	metrics  *Metrics

	state  models.ServiceState
	handle proc.Handle
}

func NewController(desc *Descriptor, vars render.Source, interval time.Duration, refresh RefreshFunc, metrics *Metrics) *Controller {
	if interval <= 0 {
		interval = time.Second
	}
	if refresh == nil {
		refresh = func(a *render.Artifact) (bool, error) { return a.Refresh(vars) }
	}
	return &Controller{
		desc:     desc,
		vars:     vars,
		interval: interval,
		refresh:  refresh,
		metrics:  metrics,
		state:    models.StateUninitialized,
	}
}

func (c *Controller) State() models.ServiceState {
	return c.state
}

// Handle returns the launched process, nil when nothing was launched.
func (c *Controller) Handle() proc.Handle {
	return c.handle
}

func (c *Controller) transition(to models.ServiceState, detail string) {
	from := c.state
	c.state = to
	if detail != "" {
		logger.Infof("Service [%s] %s -> %s: %s", c.desc.Name, from, to, detail)
	} else {
		logger.Infof("Service [%s] %s -> %s", c.desc.Name, from, to)
	}
	c.metrics.transition(c.desc.Name, to)
}

func (c *Controller) fail(out *Outcome, err error) Outcome {
	c.state = models.StateFailed
	logger.Errorf("Service [%s] -> %s: %v", c.desc.Name, models.StateFailed, err)
	c.metrics.transition(c.desc.Name, models.StateFailed)
	out.State = models.StateFailed
	out.Err = err
	return *out
}

/**
 * Drive the service to Running or Failed
 * @param {context.Context} ctx - Cancelling it aborts the readiness wait
 * @param {bool} setup - Whether this run performs one-time setup
 * @returns {Outcome} Terminal state and what was done
 * @description
 * - Init runs only when setup is true and the init check fails
 * - A service whose running check already passes is not relaunched and its artifacts are not touched
 * - Stale artifacts are refreshed before launch; a refresh error fails the service
 * - A readiness timeout leaves the launched process alone
 */
func (c *Controller) Run(ctx context.Context, setup bool) Outcome {
	out := Outcome{}
	if err := ctx.Err(); err != nil {
		return c.fail(&out, fmt.Errorf("%w: %v", models.ErrCancelled, err))
	}

	// 一次性初始化
	if setup && c.desc.HasInit() {
		if err := c.desc.InitCheck.Check(ctx, c.vars); err == nil {
			c.transition(models.StateInitialized, "already initialized")
		} else {
			c.transition(models.StateInitializing, err.Error())
			err := c.desc.InitAction.Run(ctx, c.vars)
			c.metrics.initAction(c.desc.Name, err)
			if err != nil {
				return c.fail(&out, &models.InitError{Service: c.desc.Name, Err: err})
			}
			out.Initialized = true
			c.transition(models.StateInitialized, "")
		}
	} else {
		c.transition(models.StateInitialized, "init skipped")
	}
	out.InitSatisfied = true

	if err := c.desc.Running.Check(ctx, c.vars); err == nil {
		c.transition(models.StateRunning, "already running")
		out.State = models.StateRunning
		return out
	}

	for _, a := range c.desc.Artifacts {
		rewritten, err := c.refresh(a)
		if err != nil {
			return c.fail(&out, err)
		}
		if rewritten {
			out.Rewritten = append(out.Rewritten, a.Name)
		}
	}

	handle, err := c.desc.Start.Launch(ctx, c.vars)
	c.metrics.launch(c.desc.Name, err)
	if err != nil {
		return c.fail(&out, &models.StartError{Service: c.desc.Name, Err: err})
	}
	c.handle = handle
	out.Started = true
	if handle != nil {
		c.transition(models.StateStarting, fmt.Sprintf("pid %d", handle.Pid()))
	} else {
		c.transition(models.StateStarting, "")
	}

	if err := c.waitReady(ctx); err != nil {
		return c.fail(&out, err)
	}
	out.State = models.StateRunning
	return out
}

// waitReady polls the running check until it passes, the budget runs out, or ctx ends.
func (c *Controller) waitReady(ctx context.Context) error {
	began := time.Now()
	timer := time.NewTimer(c.desc.ReadinessTimeout)
	defer timer.Stop()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	exitLogged := false
	for {
		err := c.desc.Running.Check(ctx, c.vars)
		if err == nil {
			waited := time.Since(began)
			c.metrics.ready(c.desc.Name, waited)
			c.transition(models.StateRunning, fmt.Sprintf("ready after %v", waited.Round(time.Millisecond)))
			return nil
		}
		logger.Debugf("Service [%s] not ready yet: %v", c.desc.Name, err)
		if !exitLogged && c.handle != nil && !c.handle.Alive() {
			// 守护化的启动命令会立即退出，继续等待探测结果
			logger.Warnf("Service [%s] launched process %d has exited, still waiting for readiness",
				c.desc.Name, c.handle.Pid())
			exitLogged = true
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", models.ErrCancelled, ctx.Err())
		case <-timer.C:
			return &models.ReadinessTimeoutError{Service: c.desc.Name, Timeout: c.desc.ReadinessTimeout}
		case <-ticker.C:
		}
	}
}
