package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"stack-keeper/internal/models"
)

/**
 * Bring-up metrics
 * @description
 * - Kept in a private registry, written once per run as a node-exporter textfile
 * - A nil *Metrics is valid and records nothing
 */
type Metrics struct {
	registry      *prometheus.Registry
	transitions   *prometheus.CounterVec
	initActions   *prometheus.CounterVec
	configWrites  *prometheus.CounterVec
	launches      *prometheus.CounterVec
	readinessWait *prometheus.HistogramVec
	serviceUp     *prometheus.GaugeVec
	lastRun       *prometheus.GaugeVec
	runDuration   prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stack_service_transitions_total",
				Help: "Service state transitions",
			},
			[]string{"service", "state"},
		),
		initActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stack_init_actions_total",
				Help: "One-time init actions executed",
			},
			[]string{"service", "result"},
		),
		configWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stack_config_writes_total",
				Help: "Config artifacts rendered and written",
			},
			[]string{"artifact", "result"},
		),
		launches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stack_service_launches_total",
				Help: "Service start commands issued",
			},
			[]string{"service", "result"},
		),
		readinessWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stack_readiness_wait_seconds",
				Help:    "Time from launch until the running check passed",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"service"},
		),
		serviceUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stack_service_up",
				Help: "1 when the service reached Running in the last run",
			},
			[]string{"service"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stack_bringup_last_run_timestamp_seconds",
				Help: "Completion time of the last bring-up",
			},
			[]string{"result", "setup"},
		),
		runDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stack_bringup_duration_seconds",
				Help: "Duration of the last bring-up",
			},
		),
	}
	m.registry.MustRegister(m.transitions, m.initActions, m.configWrites,
		m.launches, m.readinessWait, m.serviceUp, m.lastRun, m.runDuration)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) transition(service string, state models.ServiceState) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(service, string(state)).Inc()
	switch state {
	case models.StateRunning:
		m.serviceUp.WithLabelValues(service).Set(1)
	case models.StateFailed:
		m.serviceUp.WithLabelValues(service).Set(0)
	}
}

func (m *Metrics) initAction(service string, err error) {
	if m == nil {
		return
	}
	m.initActions.WithLabelValues(service, resultLabel(err)).Inc()
}

func (m *Metrics) configWrite(artifact string, err error) {
	if m == nil {
		return
	}
	m.configWrites.WithLabelValues(artifact, resultLabel(err)).Inc()
}

func (m *Metrics) launch(service string, err error) {
	if m == nil {
		return
	}
	m.launches.WithLabelValues(service, resultLabel(err)).Inc()
}

func (m *Metrics) ready(service string, wait time.Duration) {
	if m == nil {
		return
	}
	m.readinessWait.WithLabelValues(service).Observe(wait.Seconds())
}

func (m *Metrics) runFinished(ok, setup bool, took time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	setupLabel := "false"
	if setup {
		setupLabel = "true"
	}
	m.lastRun.WithLabelValues(result, setupLabel).SetToCurrentTime()
	m.runDuration.Set(took.Seconds())
}

/**
 * Write all metrics in text exposition format
 * @param {string} path - Textfile path, e.g. a node-exporter textfile collector directory
 * @returns {error} Write error
 */
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
