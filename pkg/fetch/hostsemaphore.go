package fetch

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// HostSemaphorePool hands out a weighted semaphore per hostname so downloads
// stay bounded per origin on top of the global download limit. Pools live for
// a single run, so entries are never evicted.
type HostSemaphorePool struct {
	mu      sync.Mutex
	sems    map[string]*semaphore.Weighted
	perHost int64
}

// NewHostSemaphorePool creates a pool allowing perHost concurrent holders per
// hostname. perHost values below 1 are raised to 1.
func NewHostSemaphorePool(perHost int64) *HostSemaphorePool {
	if perHost < 1 {
		perHost = 1
	}
	return &HostSemaphorePool{
		sems:    make(map[string]*semaphore.Weighted),
		perHost: perHost,
	}
}

func (p *HostSemaphorePool) get(host string) *semaphore.Weighted {
	p.mu.Lock()
	defer p.mu.Unlock()
	sem, ok := p.sems[host]
	if !ok {
		sem = semaphore.NewWeighted(p.perHost)
		p.sems[host] = sem
	}
	return sem
}

// Acquire blocks until a slot for host is free or ctx is done.
func (p *HostSemaphorePool) Acquire(ctx context.Context, host string) error {
	return p.get(host).Acquire(ctx, 1)
}

// Release frees a slot previously acquired for host.
func (p *HostSemaphorePool) Release(host string) {
	p.get(host).Release(1)
}

// Len reports how many hosts have a semaphore allocated.
func (p *HostSemaphorePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sems)
}
