package shared

import "sync"

// SharedPool maintains an available-stack of retired instances, capped at
// maxRetained, and an uncapped total-allocated counter, the same shape as the
// teacher's categoryDataPool (catrate/limiter.go): a factory for the miss
// path, a bounded store for the recycled path. Unlike sync.Pool, entries
// here survive a GC cycle and the cap is enforced deterministically, which
// the "totalAllocated" / "maxRetained" contract requires.
type SharedPool[T any] struct {
	mu             sync.Mutex
	factory        func() T
	available      []T
	totalAllocated int
	maxRetained    int
}

// NewSharedPool returns a pool that calls factory on a miss and retains at
// most maxRetained disposed instances for reuse. maxRetained <= 0 means
// unbounded retention.
func NewSharedPool[T any](factory func() T, maxRetained int) *SharedPool[T] {
	return &SharedPool[T]{factory: factory, maxRetained: maxRetained}
}

// GetOrCreate returns a fresh *Shared[T] with an initial reference count of
// one, backed by a pooled instance if one is available, otherwise a newly
// allocated one from the pool's factory.
func (p *SharedPool[T]) GetOrCreate() *Shared[T] {
	p.mu.Lock()
	var resource T
	if n := len(p.available); n > 0 {
		resource = p.available[n-1]
		p.available = p.available[:n-1]
	} else {
		resource = p.factory()
		p.totalAllocated++
	}
	p.mu.Unlock()

	return &Shared[T]{resource: resource, refs: 1, pool: p}
}

// TotalAllocated reports how many instances this pool has ever created via
// factory, including ones currently checked out.
func (p *SharedPool[T]) TotalAllocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalAllocated
}

// Available reports how many instances currently sit on the available
// stack, ready for reuse without calling factory.
func (p *SharedPool[T]) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.available)
}

func (p *SharedPool[T]) release(resource T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.maxRetained > 0 && len(p.available) >= p.maxRetained {
		return
	}
	p.available = append(p.available, resource)
}

// KeyedSharedPool partitions a family of SharedPool[T] by Key, so requests
// that need distinctly sized or typed resources (e.g. store read buffers
// keyed by extent block size) each get a pool scoped to that key rather
// than thrashing a single shared one.
type KeyedSharedPool[T any, Key comparable] struct {
	mu          sync.Mutex
	factory     func(Key) T
	maxRetained int
	pools       map[Key]*SharedPool[T]
}

// NewKeyedSharedPool returns a KeyedSharedPool whose per-key pools call
// factory(key) on a miss and retain at most maxRetained instances each.
func NewKeyedSharedPool[T any, Key comparable](factory func(Key) T, maxRetained int) *KeyedSharedPool[T, Key] {
	return &KeyedSharedPool[T, Key]{
		factory:     factory,
		maxRetained: maxRetained,
		pools:       make(map[Key]*SharedPool[T]),
	}
}

// GetOrCreate returns a *Shared[T] from the pool scoped to key, creating
// that pool on first use.
func (k *KeyedSharedPool[T, Key]) GetOrCreate(key Key) *Shared[T] {
	k.mu.Lock()
	pool, ok := k.pools[key]
	if !ok {
		pool = NewSharedPool(func() T { return k.factory(key) }, k.maxRetained)
		k.pools[key] = pool
	}
	k.mu.Unlock()
	return pool.GetOrCreate()
}

// Pool returns the pool scoped to key, if one has been created by a prior
// GetOrCreate call.
func (k *KeyedSharedPool[T, Key]) Pool(key Key) (*SharedPool[T], bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	pool, ok := k.pools[key]
	return pool, ok
}
