package worker

import "errors"

var (
	// ErrPoolNotStarted is returned when work is submitted before Start.
	ErrPoolNotStarted = errors.New("worker pool not started")

	// ErrPoolAlreadyStarted is returned when Start is called twice.
	ErrPoolAlreadyStarted = errors.New("worker pool already started")

	// ErrPoolStopped is returned when work is submitted after Stop.
	ErrPoolStopped = errors.New("worker pool stopped")

	// ErrQueueFull is returned when the work queue has no capacity.
	ErrQueueFull = errors.New("worker pool queue full")

	// ErrStopTimeout is returned when workers do not drain in time.
	ErrStopTimeout = errors.New("timeout waiting for workers to stop")

	// ErrNilProcessor is raised when a pool is built without a processor.
	ErrNilProcessor = errors.New("worker pool processor must not be nil")
)
