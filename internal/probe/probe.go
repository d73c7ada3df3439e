// Package probe implements the predicates used as init checks and running checks.
// A probe reports true by returning nil.
package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"stack-keeper/internal/models"
	"stack-keeper/internal/render"
	"stack-keeper/internal/utils"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 3 * time.Second

var ErrUnknownType = errors.New("unknown probe type")

// Probe is a predicate over the host. String fields of its specification are
// rendered against vars at check time.
type Probe interface {
	Check(ctx context.Context, vars render.Source) error
}

// Func adapts a plain function to Probe.
type Func func(ctx context.Context, vars render.Source) error

func (f Func) Check(ctx context.Context, vars render.Source) error {
	return f(ctx, vars)
}

/**
 * Build a probe from its specification
 * @param {models.ProbeSpecification} spec - Probe configuration
 * @returns {(Probe, error)} ErrUnknownType for an unsupported type, or a missing required field
 */
func New(spec models.ProbeSpecification) (Probe, error) {
	switch spec.Type {
	case "path":
		if spec.Path == "" {
			return nil, fmt.Errorf("path probe: path is required")
		}
		return &pathProbe{path: spec.Path}, nil
	case "process":
		if spec.Process == "" {
			return nil, fmt.Errorf("process probe: process is required")
		}
		return &processProbe{pattern: spec.Process, find: utils.FindProcesses}, nil
	case "tcp":
		if spec.Port <= 0 {
			return nil, fmt.Errorf("tcp probe: port is required")
		}
		return &tcpProbe{host: spec.Host, port: spec.Port}, nil
	case "http":
		if spec.URL == "" {
			return nil, fmt.Errorf("http probe: url is required")
		}
		return newHTTPProbe(spec), nil
	case "redis":
		return newRedisProbe(spec), nil
	case "mysql":
		return newMySQLProbe(spec), nil
	case "postgres":
		return newPostgresProbe(spec), nil
	case "command":
		if len(spec.Command) == 0 {
			return nil, fmt.Errorf("command probe: command is required")
		}
		return &commandProbe{argv: spec.Command}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, spec.Type)
	}
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, DefaultTimeout)
}

type pathProbe struct {
	path string
}

func (p *pathProbe) Check(_ context.Context, vars render.Source) error {
	path := render.Render(p.path, vars)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return nil
}

type processProbe struct {
	pattern string
	find    func(pattern string) ([]int, error)
}

func (p *processProbe) Check(_ context.Context, vars render.Source) error {
	pattern := strings.TrimSpace(render.Render(p.pattern, vars))
	if pattern == "" {
		// 空模式会匹配所有进程
		return fmt.Errorf("process pattern %q renders empty", p.pattern)
	}
	pids, err := p.find(pattern)
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}
	if len(pids) == 0 {
		return fmt.Errorf("no process matching %q", pattern)
	}
	return nil
}

type tcpProbe struct {
	host string
	port int
}

func (p *tcpProbe) Check(ctx context.Context, vars render.Source) error {
	host := render.Render(p.host, vars)
	if !utils.CheckPortConnectable(ctx, host, p.port, DefaultTimeout) {
		return fmt.Errorf("%s:%d not connectable", host, p.port)
	}
	return nil
}

type commandProbe struct {
	argv []string
}

func (p *commandProbe) Check(ctx context.Context, vars render.Source) error {
	argv := render.RenderAll(p.argv, vars)
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	if err := exec.CommandContext(ctx, argv[0], argv[1:]...).Run(); err != nil {
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}
