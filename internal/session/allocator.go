package session

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"

	"sessiond/internal/metrics"
)

// Pool identifies an allocator memory pool.
type Pool string

const (
	PoolCPU         Pool = "cpu"
	PoolAccelerator Pool = "accelerator"
)

// ResourceRecord is one live allocation attributed to an owner. Records are
// handed back to Release exactly once; the allocator ignores replays.
type ResourceRecord struct {
	id    uint64
	pool  Pool
	size  int64
	owner string
}

// Pool returns the pool the record was drawn from.
func (r *ResourceRecord) Pool() Pool { return r.pool }

// Size returns the allocated byte count.
func (r *ResourceRecord) Size() int64 { return r.size }

// Owner returns the owner id the record is attributed to.
func (r *ResourceRecord) Owner() string { return r.owner }

// PoolStats is a point-in-time snapshot of one pool.
type PoolStats struct {
	Capacity int64
	InUse    int64
	Peak     int64
	Records  int
}

// AllocatorConfig sizes the pools. CPUBytes zero means "discover from system
// memory" (unlimited if discovery fails). AccelBytes zero leaves the
// accelerator pool unavailable. Probe overrides the build-tag hardware
// probe; nil keeps the default.
type AllocatorConfig struct {
	CPUBytes   int64
	AccelBytes int64
	Probe      func() bool
	Logger     zerolog.Logger
}

// Allocator tracks memory grants across the cpu and accelerator pools.
// Allocation is fail-fast: a grant that does not fit its requested pool is
// refused outright rather than silently redirected.
type Allocator struct {
	log    zerolog.Logger
	probe  func() bool
	mu     sync.Mutex
	nextID uint64
	pools  map[Pool]*poolState
}

type poolState struct {
	capacity int64
	inUse    int64
	peak     int64
	records  map[uint64]*ResourceRecord
}

// NewAllocator builds an allocator from cfg.
func NewAllocator(cfg AllocatorConfig) *Allocator {
	cpu := cfg.CPUBytes
	if cpu == 0 {
		cpu = detectSystemMemory()
	}
	if cpu < 0 {
		cpu = 0
	}
	accel := cfg.AccelBytes
	if accel < 0 {
		accel = 0
	}
	probe := cfg.Probe
	if probe == nil {
		probe = hasAcceleratorBuild
	}
	return &Allocator{
		log:   cfg.Logger,
		probe: probe,
		pools: map[Pool]*poolState{
			PoolCPU:         {capacity: cpu, records: map[uint64]*ResourceRecord{}},
			PoolAccelerator: {capacity: accel, records: map[uint64]*ResourceRecord{}},
		},
	}
}

// detectSystemMemory returns total system memory, or 0 (unlimited) when it
// cannot be read.
func detectSystemMemory() int64 {
	vm, err := mem.VirtualMemory()
	if err != nil || vm == nil {
		return 0
	}
	return int64(vm.Total)
}

// AcceleratorAvailable reports whether accelerator-pool allocations can
// succeed: the hardware probe passes and a budget is configured.
func (a *Allocator) AcceleratorAvailable() bool {
	a.mu.Lock()
	capacity := a.pools[PoolAccelerator].capacity
	a.mu.Unlock()
	return capacity > 0 && a.probe()
}

// Allocate draws size bytes from pool for owner. A zero or negative size is
// rejected. Capacity 0 on the cpu pool means unlimited; the accelerator
// pool additionally requires the hardware probe to pass.
func (a *Allocator) Allocate(pool Pool, size int64, owner string) (*ResourceRecord, error) {
	if size <= 0 {
		return nil, errResource(pool, "allocation size must be positive, got %d", size)
	}
	if pool == PoolAccelerator && !a.AcceleratorAvailable() {
		return nil, errResource(pool, "accelerator not available")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	ps, ok := a.pools[pool]
	if !ok {
		return nil, errResource(pool, "unknown pool")
	}
	if ps.capacity > 0 && ps.inUse+size > ps.capacity {
		return nil, errResource(pool, "exhausted: %d in use, %d requested, %d capacity", ps.inUse, size, ps.capacity)
	}
	a.nextID++
	rec := &ResourceRecord{id: a.nextID, pool: pool, size: size, owner: owner}
	ps.records[rec.id] = rec
	ps.inUse += size
	if ps.inUse > ps.peak {
		ps.peak = ps.inUse
	}
	metrics.RecordPoolUsage(string(pool), ps.inUse, ps.peak)
	return rec, nil
}

// Release returns a record's bytes to its pool. Nil records and records
// already released are ignored.
func (a *Allocator) Release(rec *ResourceRecord) {
	if rec == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releaseLocked(rec)
}

func (a *Allocator) releaseLocked(rec *ResourceRecord) {
	ps, ok := a.pools[rec.pool]
	if !ok {
		return
	}
	if _, live := ps.records[rec.id]; !live {
		a.log.Debug().Str("pool", string(rec.pool)).Uint64("record", rec.id).Msg("duplicate release ignored")
		return
	}
	delete(ps.records, rec.id)
	ps.inUse -= rec.size
	metrics.RecordPoolUsage(string(rec.pool), ps.inUse, ps.peak)
}

// ReleaseOwner releases every live record attributed to owner across all
// pools and returns how many were released.
func (a *Allocator) ReleaseOwner(owner string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, ps := range a.pools {
		for _, rec := range ps.records {
			if rec.owner == owner {
				a.releaseLocked(rec)
				n++
			}
		}
	}
	if n > 0 {
		a.log.Debug().Str("owner", owner).Int("records", n).Msg("released owner records")
	}
	return n
}

// OwnerBytes sums the live bytes attributed to owner across all pools.
func (a *Allocator) OwnerBytes(owner string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var total int64
	for _, ps := range a.pools {
		for _, rec := range ps.records {
			if rec.owner == owner {
				total += rec.size
			}
		}
	}
	return total
}

// Stats snapshots one pool.
func (a *Allocator) Stats(pool Pool) PoolStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	ps, ok := a.pools[pool]
	if !ok {
		return PoolStats{}
	}
	return PoolStats{
		Capacity: ps.capacity,
		InUse:    ps.inUse,
		Peak:     ps.peak,
		Records:  len(ps.records),
	}
}
