package supervisor

import "fmt"

// SpawnError wraps an OS-level process creation failure (binary not found,
// permission denied, resource exhaustion). It is not retried at the Spawn
// layer; SpawnWithRetry applies the retry policy.
type SpawnError struct{ Err error }

func (e *SpawnError) Error() string {
	return "failed to spawn backend process: " + e.Err.Error()
}

func (e *SpawnError) Unwrap() error { return e.Err }

// RetryExhaustedError reports that every spawn attempt failed. It always
// carries the attempt count and the last underlying cause.
type RetryExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("backend failed to start after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetryExhaustedError) Unwrap() error { return e.LastErr }
