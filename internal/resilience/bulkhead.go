package resilience

import (
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Bulkhead caps the number of concurrent calls. Admission never blocks: a call
// arriving at capacity is rejected immediately.
type Bulkhead struct {
	sem      *semaphore.Weighted
	capacity int
	inFlight atomic.Int64
}

// NewBulkhead creates a bulkhead admitting at most capacity concurrent calls.
func NewBulkhead(capacity int) *Bulkhead {
	if capacity < 1 {
		capacity = 1
	}
	return &Bulkhead{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// TryAcquire admits the caller if a slot is free. Every successful TryAcquire
// must be paired with exactly one Release.
func (b *Bulkhead) TryAcquire() bool {
	if !b.sem.TryAcquire(1) {
		return false
	}
	b.inFlight.Add(1)
	return true
}

// Release frees the slot taken by TryAcquire.
func (b *Bulkhead) Release() {
	b.inFlight.Add(-1)
	b.sem.Release(1)
}

// InFlight returns the number of admitted calls that have not yet released.
func (b *Bulkhead) InFlight() int {
	return int(b.inFlight.Load())
}

// Capacity returns the configured limit.
func (b *Bulkhead) Capacity() int {
	return b.capacity
}
