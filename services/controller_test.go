package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stack-keeper/internal/logger"
	"stack-keeper/internal/models"
	"stack-keeper/internal/proc"
	"stack-keeper/internal/render"
)

func captureLog(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "info")
	t.Cleanup(func() { logger.InitWithWriter(&bytes.Buffer{}, "error") })
	return &buf
}

func TestController_FullLifecycle(t *testing.T) {
	buf := captureLog(t)
	s := newTestStack(t)
	conf := s.artifact("mysql_conf", "bind=${MYSQL_HOST:-mysql}\n")
	d := s.host.descriptor("db", 0, true)
	d.Artifacts = []*render.Artifact{conf}
	metrics := NewMetrics()

	vars := render.NewSource().WithPinnedHosts([]string{"MYSQL_HOST"}, "127.0.0.1")
	c := NewController(d, vars, 5*time.Millisecond, nil, metrics)
	assert.Equal(t, models.StateUninitialized, c.State())

	out := c.Run(context.Background(), true)

	require.NoError(t, out.Err)
	assert.Equal(t, models.StateRunning, out.State)
	assert.Equal(t, models.StateRunning, c.State())
	assert.True(t, out.Initialized)
	assert.True(t, out.InitSatisfied)
	assert.True(t, out.Started)
	assert.Equal(t, []string{"mysql_conf"}, out.Rewritten)
	require.NotNil(t, c.Handle())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var transitions []string
	for _, line := range lines {
		if strings.Contains(line, "Service [db]") && strings.Contains(line, "->") {
			transitions = append(transitions, line)
		}
	}
	require.Len(t, transitions, 4, buf.String())
	assert.Contains(t, transitions[0], "uninitialized -> initializing")
	assert.Contains(t, transitions[1], "initializing -> initialized")
	assert.Contains(t, transitions[2], "initialized -> starting")
	assert.Contains(t, transitions[3], "starting -> running")

	for _, state := range []models.ServiceState{models.StateInitializing, models.StateInitialized, models.StateStarting, models.StateRunning} {
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.transitions.WithLabelValues("db", string(state))), state)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.initActions.WithLabelValues("db", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.launches.WithLabelValues("db", "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.readinessWait))
}

func TestController_AlreadyRunningTouchesNothing(t *testing.T) {
	s := newTestStack(t)
	conf := s.artifact("nginx_conf", "listen ${PORT:-80};\n")
	d := s.host.descriptor("nginx", 2, false)
	d.Artifacts = []*render.Artifact{conf}
	s.host.service("nginx").running = true

	refreshed := 0
	c := NewController(d, render.NewSource(), time.Millisecond, func(a *render.Artifact) (bool, error) {
		refreshed++
		return true, nil
	}, nil)
	out := c.Run(context.Background(), false)

	assert.Equal(t, models.StateRunning, out.State)
	assert.False(t, out.Started)
	assert.Zero(t, refreshed)
	assert.Nil(t, c.Handle())
	assert.NoFileExists(t, conf.Output)
}

func TestController_SetupSkipsInitWhenCheckPasses(t *testing.T) {
	s := newTestStack(t)
	d := s.host.descriptor("db", 0, true)
	s.host.service("db").initialized = true

	out := NewController(d, render.NewSource(), time.Millisecond, nil, nil).Run(context.Background(), true)

	require.NoError(t, out.Err)
	assert.False(t, out.Initialized)
	assert.True(t, out.InitSatisfied)
	assert.Zero(t, s.host.count("init:db"))
}

func TestController_RefreshErrorFailsBeforeLaunch(t *testing.T) {
	s := newTestStack(t)
	d := s.host.descriptor("app", 1, false)
	d.Artifacts = []*render.Artifact{s.artifact("service_conf", "x\n")}
	writeErr := &models.ConfigWriteError{Path: "/readonly/service_conf.yaml", Err: errors.New("read-only file system")}

	c := NewController(d, render.NewSource(), time.Millisecond, func(*render.Artifact) (bool, error) {
		return false, writeErr
	}, nil)
	out := c.Run(context.Background(), true)

	assert.Equal(t, models.StateFailed, out.State)
	assert.Equal(t, models.StateFailed, c.State())
	var cwe *models.ConfigWriteError
	require.ErrorAs(t, out.Err, &cwe)
	assert.True(t, out.InitSatisfied, "init was satisfied before the config failed")
	assert.Zero(t, s.host.count("start:app"))
}

func TestController_LaunchErrorIsStartError(t *testing.T) {
	s := newTestStack(t)
	d := s.host.descriptor("minio", 0, false)
	s.host.service("minio").startErr = errors.New("exec: \"minio\": executable file not found in $PATH")
	metrics := NewMetrics()

	out := NewController(d, render.NewSource(), time.Millisecond, nil, metrics).Run(context.Background(), false)

	var startErr *models.StartError
	require.ErrorAs(t, out.Err, &startErr)
	assert.False(t, out.Started)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.launches.WithLabelValues("minio", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.transitions.WithLabelValues("minio", string(models.StateFailed))))
}

func TestController_ExitedLauncherStillWaitsForReadiness(t *testing.T) {
	s := newTestStack(t)
	d := s.host.descriptor("redis", 0, false)
	s.host.service("redis").readyAfter = 2

	c := NewController(d, render.NewSource(), 5*time.Millisecond, nil, nil)
	// 模拟 daemonize: 启动命令立即退出
	d.Start = LauncherFunc(func(ctx context.Context, vars render.Source) (proc.Handle, error) {
		s.host.service("redis").running = true
		return &fakeHandle{pid: 7, terminated: true}, nil
	})
	out := c.Run(context.Background(), false)

	require.NoError(t, out.Err)
	assert.Equal(t, models.StateRunning, out.State)
}
