package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncUserSignedUp()                              {}
func (n *NoopRecorder) IncPostCreated()                               {}
func (n *NoopRecorder) IncPostPublished()                             {}
func (n *NoopRecorder) IncPostDeleted()                               {}
func (n *NoopRecorder) IncAuthorizationDenied()                       {}
func (n *NoopRecorder) IncPrincipalCacheHit()                         {}
func (n *NoopRecorder) IncPrincipalCacheMiss()                        {}
func (n *NoopRecorder) ObserveRequestDuration(duration time.Duration) {}
