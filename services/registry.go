package services

import (
	"context"
	"fmt"
	"time"

	"stack-keeper/internal/config"
	"stack-keeper/internal/models"
	"stack-keeper/internal/probe"
	"stack-keeper/internal/proc"
	"stack-keeper/internal/render"
)

// commandAction runs a configured command to completion.
type commandAction struct {
	title   string
	spec    models.CommandSpecification
	logPath string
}

func (a *commandAction) Run(_ context.Context, vars render.Source) error {
	return proc.RunCommand(a.title, renderCommand(a.spec, vars), a.logPath)
}

// processLauncher launches a configured command in the background.
type processLauncher struct {
	title   string
	spec    models.CommandSpecification
	logPath string
}

func (l *processLauncher) Launch(_ context.Context, vars render.Source) (proc.Handle, error) {
	pi := proc.NewProcessInstance(l.title, renderCommand(l.spec, vars), l.logPath)
	if err := pi.Launch(); err != nil {
		return nil, err
	}
	return pi, nil
}

// renderCommand resolves placeholders in the command, its arguments, env values and workdir.
func renderCommand(spec models.CommandSpecification, vars render.Source) models.CommandSpecification {
	out := models.CommandSpecification{
		Command: render.Render(spec.Command, vars),
		Args:    render.RenderAll(spec.Args, vars),
		WorkDir: render.Render(spec.WorkDir, vars),
	}
	if len(spec.Env) > 0 {
		out.Env = make(map[string]string, len(spec.Env))
		for k, v := range spec.Env {
			out.Env[k] = render.Render(v, vars)
		}
	}
	return out
}

/**
 * Build descriptors and artifacts from the stack configuration
 * @param {*config.AppConfig} cfg - Stack configuration
 * @returns {([]*Descriptor, []*render.Artifact, error)} Descriptors in declaration order and all artifacts
 * @description
 * - Service and artifact names must be unique
 * - Referenced artifacts and dependencies must exist
 * - A dependency must have a strictly lower rank
 * - Service output goes to <log.dir>/<name>.log, init output to <log.dir>/<name>-init.log
 */
func BuildDescriptors(cfg *config.AppConfig) ([]*Descriptor, []*render.Artifact, error) {
	artifacts := make([]*render.Artifact, 0, len(cfg.Artifacts))
	byName := make(map[string]*render.Artifact, len(cfg.Artifacts))
	for _, spec := range cfg.Artifacts {
		if spec.Name == "" || spec.Template == "" || spec.Output == "" {
			return nil, nil, fmt.Errorf("artifact %q: name, template and output are required", spec.Name)
		}
		if _, dup := byName[spec.Name]; dup {
			return nil, nil, fmt.Errorf("artifact %q defined twice", spec.Name)
		}
		a := render.NewArtifact(spec)
		byName[spec.Name] = a
		artifacts = append(artifacts, a)
	}

	descs := make([]*Descriptor, 0, len(cfg.Services))
	seen := make(map[string]*Descriptor, len(cfg.Services))
	for i, spec := range cfg.Services {
		if spec.Name == "" {
			return nil, nil, fmt.Errorf("service #%d has no name", i)
		}
		if _, dup := seen[spec.Name]; dup {
			return nil, nil, fmt.Errorf("service %q defined twice", spec.Name)
		}
		d, err := buildDescriptor(cfg, spec, i, byName)
		if err != nil {
			return nil, nil, fmt.Errorf("service %q: %w", spec.Name, err)
		}
		seen[spec.Name] = d
		descs = append(descs, d)
	}

	for _, d := range descs {
		for _, dep := range d.DependsOn {
			target, ok := seen[dep]
			if !ok {
				return nil, nil, fmt.Errorf("service %q depends on %q: %w", d.Name, dep, config.ErrServiceNotFound)
			}
			if target.Rank >= d.Rank {
				return nil, nil, fmt.Errorf("service %q (rank %d) depends on %q (rank %d): dependency rank must be lower",
					d.Name, d.Rank, dep, target.Rank)
			}
		}
	}
	return descs, artifacts, nil
}

func buildDescriptor(cfg *config.AppConfig, spec models.ServiceSpecification, order int,
	artifacts map[string]*render.Artifact) (*Descriptor, error) {
	if spec.Start.Command == "" {
		return nil, fmt.Errorf("start command is required")
	}
	logs := NewLogService(cfg.Log.Dir)
	running, err := probe.New(spec.Running)
	if err != nil {
		return nil, fmt.Errorf("running probe: %w", err)
	}

	d := &Descriptor{
		Name:             spec.Name,
		Rank:             spec.Rank,
		Order:            order,
		DependsOn:        append([]string(nil), spec.DependsOn...),
		Running:          running,
		ReadinessTimeout: spec.ReadinessTimeout,
		Start: &processLauncher{
			title:   "service " + spec.Name,
			spec:    spec.Start,
			logPath: logs.ServiceLog(spec.Name),
		},
	}
	if d.ReadinessTimeout <= 0 {
		d.ReadinessTimeout = 60 * time.Second
	}

	if spec.Init != nil {
		check, err := probe.New(spec.Init.Check)
		if err != nil {
			return nil, fmt.Errorf("init check: %w", err)
		}
		if spec.Init.Action.Command == "" {
			return nil, fmt.Errorf("init action command is required")
		}
		d.InitCheck = check
		d.InitAction = &commandAction{
			title:   "init " + spec.Name,
			spec:    spec.Init.Action,
			logPath: logs.InitLog(spec.Name),
		}
	}

	for _, name := range spec.Artifacts {
		a, ok := artifacts[name]
		if !ok {
			return nil, fmt.Errorf("unknown artifact %q", name)
		}
		d.Artifacts = append(d.Artifacts, a)
	}
	return d, nil
}
