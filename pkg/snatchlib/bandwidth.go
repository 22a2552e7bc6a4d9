package snatchlib

import "sync"

// BandwidthAllocator tracks a global transfer-rate cap (bytes per second)
// and the per-task rate grants carved out of it. A cap of 0 or below means
// unlimited: every request is granted in full.
//
// Invariant: with a positive cap, the sum of outstanding grants never
// exceeds the cap.
type BandwidthAllocator struct {
	mu     sync.Mutex
	limit  int64
	grants map[string]int64
}

// BandwidthSnapshot is a read-only view of the allocator state.
type BandwidthSnapshot struct {
	Cap       int64            `json:"cap"`
	Used      int64            `json:"used"`
	Available int64            `json:"available"`
	Grants    map[string]int64 `json:"grants"`
}

// NewBandwidthAllocator creates an allocator with the given cap in bytes
// per second. 0 or negative means unlimited.
func NewBandwidthAllocator(cap int64) *BandwidthAllocator {
	return &BandwidthAllocator{
		limit:  cap,
		grants: make(map[string]int64),
	}
}

// Allocate grants min(requested, available headroom) to the task and
// records it. A zero or partial grant is not an error: the executor must
// tolerate reduced-rate operation. Allocating twice for the same id
// replaces the previous grant.
func (b *BandwidthAllocator) Allocate(id string, requested int64) int64 {
	if requested < 0 {
		requested = 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limit <= 0 {
		b.grants[id] = requested
		return requested
	}

	delete(b.grants, id)
	available := b.limit - b.used()
	granted := requested
	if granted > available {
		granted = available
	}
	if granted < 0 {
		granted = 0
	}
	b.grants[id] = granted
	return granted
}

// Release removes the grant for id. Releasing an unknown id is a no-op.
func (b *BandwidthAllocator) Release(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.grants, id)
}

// SetCap updates the global cap. Existing grants are left untouched;
// headroom for future allocations is computed against the new cap.
func (b *BandwidthAllocator) SetCap(cap int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.limit = cap
}

// Cap returns the current global cap.
func (b *BandwidthAllocator) Cap() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limit
}

// Snapshot returns a consistent copy of the allocator state.
func (b *BandwidthAllocator) Snapshot() BandwidthSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	grants := make(map[string]int64, len(b.grants))
	for id, g := range b.grants {
		grants[id] = g
	}
	used := b.used()
	available := b.limit - used
	if b.limit <= 0 || available < 0 {
		available = 0
	}
	return BandwidthSnapshot{
		Cap:       b.limit,
		Used:      used,
		Available: available,
		Grants:    grants,
	}
}

// used sums outstanding grants. Caller must hold b.mu.
func (b *BandwidthAllocator) used() int64 {
	var sum int64
	for _, g := range b.grants {
		sum += g
	}
	return sum
}
