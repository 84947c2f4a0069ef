// Package service holds the long-running components of the daemon and
// starts and stops them in a fixed order.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Service is a component with a start/stop lifecycle. Start must not block
// beyond setup; background work runs in goroutines owned by the service
// until Stop returns.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// Registry holds services in registration order.
type Registry struct {
	mu       sync.Mutex
	services []Service
	byName   map[string]Service
	started  []Service
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Service)}
}

// Register adds svc. Names must be unique.
func (r *Registry) Register(svc Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[svc.Name()]; ok {
		return fmt.Errorf("service %q already registered", svc.Name())
	}
	r.byName[svc.Name()] = svc
	r.services = append(r.services, svc)
	return nil
}

// Get returns the service called name.
func (r *Registry) Get(name string) (Service, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.byName[name]
	return svc, ok
}

// Names lists services in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.services))
	for i, svc := range r.services {
		names[i] = svc.Name()
	}
	return names
}

// StartAll starts services in registration order. If one fails, those
// already started are stopped in reverse order and the error is returned.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	services := append([]Service(nil), r.services...)
	r.mu.Unlock()

	for _, svc := range services {
		if err := ctx.Err(); err != nil {
			return errors.Join(err, r.StopAll())
		}
		if err := svc.Start(ctx); err != nil {
			slog.Error("service_start_failed",
				slog.String("service", svc.Name()),
				slog.String("error", err.Error()))
			startErr := fmt.Errorf("failed to start %s: %w", svc.Name(), err)
			return errors.Join(startErr, r.StopAll())
		}
		r.mu.Lock()
		r.started = append(r.started, svc)
		r.mu.Unlock()
		slog.Debug("service_started", slog.String("service", svc.Name()))
	}
	return nil
}

// StopAll stops started services in reverse order. Every service is
// stopped even when some fail; the failures are joined.
func (r *Registry) StopAll() error {
	r.mu.Lock()
	started := r.started
	r.started = nil
	r.mu.Unlock()

	var errs []error
	for i := len(started) - 1; i >= 0; i-- {
		svc := started[i]
		if err := svc.Stop(); err != nil {
			slog.Warn("service_stop_failed",
				slog.String("service", svc.Name()),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", svc.Name(), err))
			continue
		}
		slog.Debug("service_stopped", slog.String("service", svc.Name()))
	}
	return errors.Join(errs...)
}

// Lookup returns the service called name as T.
func Lookup[T Service](r *Registry, name string) (T, bool) {
	var zero T
	svc, ok := r.Get(name)
	if !ok {
		return zero, false
	}
	typed, ok := svc.(T)
	return typed, ok
}
