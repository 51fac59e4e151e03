// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Content lifecycle metrics
	IncUserSignedUp()
	IncPostCreated()
	IncPostPublished()
	IncPostDeleted()
	IncAuthorizationDenied()

	// Identity metrics
	IncPrincipalCacheHit()
	IncPrincipalCacheMiss()

	// HTTP metrics
	ObserveRequestDuration(duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
