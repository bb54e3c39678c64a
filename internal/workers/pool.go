// Package workers fans sequences of items out to a bounded set of goroutines
// and hosts the periodic wallet scans built on top of it.
package workers

import (
	"fmt"
	"log/slog"

	"github.com/lnwallet-ledger/internal/config"
	"github.com/panjf2000/ants/v2"
)

// DefaultConcurrency is used when a scan does not configure its worker count.
const DefaultConcurrency = 5

// Pool is the process wide goroutine pool shared by every scan.
type Pool struct {
	pool   *ants.Pool
	logger *slog.Logger
}

func NewPool(logger *slog.Logger, cfg *config.WorkerPoolConfig) (*Pool, error) {
	pool, err := ants.NewPool(cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool of size %d: %w", cfg.Size, err)
	}
	return &Pool{pool: pool, logger: logger.With("component", "worker_pool")}, nil
}

// Submit runs task on a pooled goroutine, blocking while the pool is full.
func (p *Pool) Submit(task func()) error {
	return p.pool.Submit(task)
}

// Shutdown releases the pool. Running tasks finish; new submissions fail.
func (p *Pool) Shutdown() {
	p.logger.Info("Shutting down worker pool", "running_workers", p.pool.Running())
	p.pool.Release()
}

// Running returns the number of running workers in the pool.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (p *Pool) Capacity() int {
	return p.pool.Cap()
}
