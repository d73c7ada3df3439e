package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stack-keeper/internal/gate"
	"stack-keeper/internal/models"
	"stack-keeper/internal/probe"
	"stack-keeper/internal/proc"
	"stack-keeper/internal/render"
)

var errNotYet = errors.New("not yet")

// fakeService is the simulated host state of one service.
type fakeService struct {
	initialized bool
	running     bool
	initErr     error
	startErr    error
	neverReady  bool
	readyAfter  int
	checks      int
}

type fakeHandle struct {
	pid        int
	terminated bool
}

func (h *fakeHandle) Pid() int         { return h.pid }
func (h *fakeHandle) Alive() bool      { return !h.terminated }
func (h *fakeHandle) Terminate() error { h.terminated = true; return nil }

// fakeHost simulates the services of a stack and records every action.
type fakeHost struct {
	mu       sync.Mutex
	services map[string]*fakeService
	events   []string
	handles  map[string]*fakeHandle
	lastVars render.Source
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		services: make(map[string]*fakeService),
		handles:  make(map[string]*fakeHandle),
	}
}

func (h *fakeHost) service(name string) *fakeService {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.services[name]
	if !ok {
		s = &fakeService{}
		h.services[name] = s
	}
	return s
}

func (h *fakeHost) record(event string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *fakeHost) Events() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.events...)
}

func (h *fakeHost) count(event string) int {
	n := 0
	for _, e := range h.Events() {
		if e == event {
			n++
		}
	}
	return n
}

func (h *fakeHost) countPrefix(prefix string) int {
	n := 0
	for _, e := range h.Events() {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

func (h *fakeHost) descriptor(name string, rank int, withInit bool, deps ...string) *Descriptor {
	svc := h.service(name)
	d := &Descriptor{
		Name:             name,
		Rank:             rank,
		DependsOn:        deps,
		ReadinessTimeout: time.Second,
		Running: probe.Func(func(_ context.Context, _ render.Source) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			if !svc.running {
				return errNotYet
			}
			if svc.neverReady {
				return errNotYet
			}
			if svc.checks < svc.readyAfter {
				svc.checks++
				return errNotYet
			}
			return nil
		}),
		Start: LauncherFunc(func(_ context.Context, vars render.Source) (proc.Handle, error) {
			h.record("start:" + name)
			h.mu.Lock()
			defer h.mu.Unlock()
			h.lastVars = vars
			if svc.startErr != nil {
				return nil, svc.startErr
			}
			svc.running = true
			handle := &fakeHandle{pid: 1000 + len(h.handles)}
			h.handles[name] = handle
			return handle, nil
		}),
	}
	if withInit {
		d.InitCheck = probe.Func(func(_ context.Context, _ render.Source) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			if !svc.initialized {
				return fmt.Errorf("%s data directory missing", name)
			}
			return nil
		})
		d.InitAction = ActionFunc(func(_ context.Context, _ render.Source) error {
			h.record("init:" + name)
			h.mu.Lock()
			defer h.mu.Unlock()
			if svc.initErr != nil {
				return svc.initErr
			}
			svc.initialized = true
			return nil
		})
	}
	return d
}

type testStack struct {
	t      *testing.T
	dir    string
	host   *fakeHost
	marker *gate.Marker
}

func newTestStack(t *testing.T) *testStack {
	dir := t.TempDir()
	return &testStack{
		t:      t,
		dir:    dir,
		host:   newFakeHost(),
		marker: gate.NewMarker(filepath.Join(dir, "state", "setup.done")),
	}
}

// artifact writes a template and returns the artifact rendering it.
func (s *testStack) artifact(name, template string) *render.Artifact {
	tmpl := filepath.Join(s.dir, "templates", name+".tmpl")
	require.NoError(s.t, os.MkdirAll(filepath.Dir(tmpl), 0755))
	require.NoError(s.t, os.WriteFile(tmpl, []byte(template), 0644))
	old := time.Now().Add(-time.Hour)
	require.NoError(s.t, os.Chtimes(tmpl, old, old))
	return render.NewArtifact(models.ArtifactSpecification{
		Name:     name,
		Template: tmpl,
		Output:   filepath.Join(s.dir, "conf", name+".conf"),
	})
}

func (s *testStack) orchestrator(descs []*Descriptor, artifacts []*render.Artifact) *Orchestrator {
	o, err := New(Options{
		Marker:        s.marker,
		Descriptors:   descs,
		Artifacts:     artifacts,
		Environ:       map[string]string{"HOME": "/home/rag"},
		HostVariables: []string{"MYSQL_HOST", "REDIS_HOST"},
		Loopback:      "127.0.0.1",
		PortRewrites:  []models.PortRewrite{{From: 80, To: 6380}},
		Interval:      5 * time.Millisecond,
		RunID:         "run-test",
	})
	require.NoError(s.t, err)
	return o
}

func indexOf(events []string, event string) int {
	for i, e := range events {
		if e == event {
			return i
		}
	}
	return -1
}
