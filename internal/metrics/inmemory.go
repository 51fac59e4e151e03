package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersSignedUp          uint64
	PostsCreated           uint64
	PostsPublished         uint64
	PostsDeleted           uint64
	AuthorizationDenied    uint64
	PrincipalCacheHits     uint64
	PrincipalCacheMisses   uint64
	RequestDurationCount   uint64
	RequestDurationTotalNs int64
}

// InMemoryRecorder stores metrics in memory.
type InMemoryRecorder struct {
	usersSignedUp          atomic.Uint64
	postsCreated           atomic.Uint64
	postsPublished         atomic.Uint64
	postsDeleted           atomic.Uint64
	authorizationDenied    atomic.Uint64
	principalCacheHits     atomic.Uint64
	principalCacheMisses   atomic.Uint64
	requestDurationCount   atomic.Uint64
	requestDurationTotalNs atomic.Int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		UsersSignedUp:          m.usersSignedUp.Load(),
		PostsCreated:           m.postsCreated.Load(),
		PostsPublished:         m.postsPublished.Load(),
		PostsDeleted:           m.postsDeleted.Load(),
		AuthorizationDenied:    m.authorizationDenied.Load(),
		PrincipalCacheHits:     m.principalCacheHits.Load(),
		PrincipalCacheMisses:   m.principalCacheMisses.Load(),
		RequestDurationCount:   m.requestDurationCount.Load(),
		RequestDurationTotalNs: m.requestDurationTotalNs.Load(),
	}
}

// IncUserSignedUp increments the signup counter.
func (m *InMemoryRecorder) IncUserSignedUp() {
	m.usersSignedUp.Add(1)
}

// IncPostCreated increments the draft created counter.
func (m *InMemoryRecorder) IncPostCreated() {
	m.postsCreated.Add(1)
}

// IncPostPublished increments the publish counter.
func (m *InMemoryRecorder) IncPostPublished() {
	m.postsPublished.Add(1)
}

// IncPostDeleted increments the delete counter.
func (m *InMemoryRecorder) IncPostDeleted() {
	m.postsDeleted.Add(1)
}

// IncAuthorizationDenied counts mutations rejected by the ownership policy.
func (m *InMemoryRecorder) IncAuthorizationDenied() {
	m.authorizationDenied.Add(1)
}

// IncPrincipalCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncPrincipalCacheHit() {
	m.principalCacheHits.Add(1)
}

// IncPrincipalCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncPrincipalCacheMiss() {
	m.principalCacheMisses.Add(1)
}

// ObserveRequestDuration records HTTP request duration.
func (m *InMemoryRecorder) ObserveRequestDuration(duration time.Duration) {
	m.requestDurationCount.Add(1)
	m.requestDurationTotalNs.Add(duration.Nanoseconds())
}
