package services

import (
	"context"
	"sort"
	"time"

	"stack-keeper/internal/probe"
	"stack-keeper/internal/proc"
	"stack-keeper/internal/render"
)

// Action is a synchronous step such as a one-time init command.
type Action interface {
	Run(ctx context.Context, vars render.Source) error
}

type ActionFunc func(ctx context.Context, vars render.Source) error

func (f ActionFunc) Run(ctx context.Context, vars render.Source) error {
	return f(ctx, vars)
}

// Launcher starts a service in the background and returns its handle.
type Launcher interface {
	Launch(ctx context.Context, vars render.Source) (proc.Handle, error)
}

type LauncherFunc func(ctx context.Context, vars render.Source) (proc.Handle, error)

func (f LauncherFunc) Launch(ctx context.Context, vars render.Source) (proc.Handle, error) {
	return f(ctx, vars)
}

/**
 * Service descriptor: static data of one managed service
 * @property {string} Name - Service name
 * @property {int} Rank - Startup order, lower ranks first
 * @property {int} Order - Declaration index, breaks rank ties
 * @property {[]string} DependsOn - Services that must be running first
 * @property {probe.Probe} InitCheck - true when one-time init is already done; nil if the service has no init
 * @property {Action} InitAction - One-time init
 * @property {probe.Probe} Running - Liveness/readiness predicate
 * @property {Launcher} Start - Background launch
 * @property {[]*render.Artifact} Artifacts - Config the service reads
 * @property {time.Duration} ReadinessTimeout - Readiness wait budget
 * @description
 * - Descriptors are not modified after the orchestrator is built
 */
type Descriptor struct {
	Name             string
	Rank             int
	Order            int
	DependsOn        []string
	InitCheck        probe.Probe
	InitAction       Action
	Running          probe.Probe
	Start            Launcher
	Artifacts        []*render.Artifact
	ReadinessTimeout time.Duration
}

func (d *Descriptor) HasInit() bool {
	return d.InitCheck != nil && d.InitAction != nil
}

// SortByRank orders descriptors by rank, ties by declaration order.
func SortByRank(descs []*Descriptor) []*Descriptor {
	sorted := append([]*Descriptor(nil), descs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Rank != sorted[j].Rank {
			return sorted[i].Rank < sorted[j].Rank
		}
		return sorted[i].Order < sorted[j].Order
	})
	return sorted
}

// groupByRank splits rank-sorted descriptors into consecutive same-rank groups.
func groupByRank(sorted []*Descriptor) [][]*Descriptor {
	var groups [][]*Descriptor
	for i, d := range sorted {
		if i == 0 || d.Rank != sorted[i-1].Rank {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], d)
	}
	return groups
}
