package server

import "context"

// Lifecycle defines the interface for components with start/stop lifecycle.
type Lifecycle interface {
	// Start starts the component.
	Start(ctx context.Context) error
	// Stop gracefully stops the component.
	Stop(ctx context.Context) error
}

// Runnable is a named Lifecycle managed by the Manager.
type Runnable interface {
	Lifecycle
	// Name returns the component name for logging.
	Name() string
}

// CloseFunc releases a resource during shutdown.
type CloseFunc func(ctx context.Context) error

type closer struct {
	name string
	fn   CloseFunc
}
