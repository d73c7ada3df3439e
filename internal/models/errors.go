package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrCancelled is reported for services the run never reached because its context was cancelled.
var ErrCancelled = errors.New("bring-up cancelled")

// TemplateError: template unreadable or malformed. Fatal to the artifact only.
type TemplateError struct {
	Path string
	Err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %s: %v", e.Path, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// ConfigWriteError: atomic write of a rendered artifact failed.
type ConfigWriteError struct {
	Path string
	Err  error
}

func (e *ConfigWriteError) Error() string {
	return fmt.Sprintf("write config %s: %v", e.Path, e.Err)
}

func (e *ConfigWriteError) Unwrap() error { return e.Err }

// InitError: the one-time init action of a service failed.
type InitError struct {
	Service string
	Err     error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("service %s init failed: %v", e.Service, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// StartError: the start action could not launch the process.
type StartError struct {
	Service string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("service %s start failed: %v", e.Service, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// ReadinessTimeoutError: the process was launched but never reported running within the budget.
// The process is left running.
type ReadinessTimeoutError struct {
	Service string
	Timeout time.Duration
}

func (e *ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("service %s not ready after %v", e.Service, e.Timeout)
}

// DependencyError: a declared dependency did not reach running, so the service was not attempted.
type DependencyError struct {
	Service    string
	Dependency string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("service %s skipped: dependency %s is not running", e.Service, e.Dependency)
}
