// Package shutdown coordinates the lifecycle of mlcore's long-running
// background components (the local scanner/poller, the install manager,
// the gateway connection) the way the original's tokio_graceful_shutdown
// subsystems did: each component runs under a shared root context and gets
// cancelled together, with a bounded grace period for in-flight work to
// wind down before the process moves on.
package shutdown

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Fabric runs a set of named components and cancels all of them together
// on Shutdown, matching spec.md §5's "tasks that do not exit in time are
// forcibly dropped" by simply not waiting past the configured deadline.
type Fabric struct {
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger
}

// New creates a Fabric whose root context is derived from parent.
func New(parent context.Context, log *slog.Logger) *Fabric {
	ctx, cancel := context.WithCancel(parent)
	group, ctx := errgroup.WithContext(ctx)
	if log == nil {
		log = slog.Default()
	}
	return &Fabric{group: group, ctx: ctx, cancel: cancel, log: log}
}

// Context returns the fabric's root context. Components launched with Go
// should treat its cancellation as their signal to wind down.
func (f *Fabric) Context() context.Context {
	return f.ctx
}

// Go registers a component's run loop. If run returns a non-nil error,
// the fabric's context is cancelled so every other component unwinds too
// (errgroup.WithContext's standard fan-in-failure behavior).
func (f *Fabric) Go(name string, run func(ctx context.Context) error) {
	f.group.Go(func() error {
		if err := run(f.ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	})
}

// Shutdown cancels every registered component and waits up to deadline for
// them to return. Components still running past the deadline are not
// waited on further; Shutdown returns nil in that case, since by this
// system's design a slow component should not block process exit.
func (f *Fabric) Shutdown(deadline time.Duration) error {
	f.cancel()

	done := make(chan error, 1)
	go func() { done <- f.group.Wait() }()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		f.log.Warn("shutdown deadline reached, proceeding without waiting for all components", "deadline", deadline)
		return nil
	}
}

// Wait blocks until every registered component has returned, ignoring any
// deadline. Useful for the "run forever until killed" daemon path where
// there is no separate shutdown trigger beyond the root context itself.
func (f *Fabric) Wait() error {
	return f.group.Wait()
}
