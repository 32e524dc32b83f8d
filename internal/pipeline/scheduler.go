//go:build linux
// +build linux

/*
whoistint — whois record highlighter and query driver

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package pipeline

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/x-stp/whoistint/internal/metrics"
)

// Scheduler manages a pool of worker goroutines, assigns them to CPU
// cores, and dispatches lookups to them by hashing the shard key.
// Lookups for the same registry always land on the same worker, so a
// single per-worker rate limiter paces each registry independently.
type Scheduler struct {
	numWorkers   int
	workers      []*worker
	ctx          context.Context
	cancel       context.CancelFunc
	shutdown     atomic.Bool
	workItemPool sync.Pool
	activeWork   sync.WaitGroup // Tracks actively processing work items.
}

// worker encapsulates a single worker goroutine and its state.
type worker struct {
	id          int
	cpuAffinity int
	queue       chan *WorkItem
	scheduler   *Scheduler
	ctx         context.Context
	limiter     *rate.Limiter
}

// NewScheduler creates, configures, and starts the scheduler and its
// worker pool, binding each worker to a CPU core best-effort.
func NewScheduler(parentCtx context.Context, lookupsPerSecond float64) (*Scheduler, error) {
	numWorkers := runtime.NumCPU() * WorkerMultiplier
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if lookupsPerSecond <= 0 {
		lookupsPerSecond = DefaultLookupsPerSecond
	}

	sctx, cancel := context.WithCancel(parentCtx)

	s := &Scheduler{
		numWorkers: numWorkers,
		workers:    make([]*worker, numWorkers),
		ctx:        sctx,
		cancel:     cancel,
		workItemPool: sync.Pool{
			New: func() interface{} {
				return &WorkItem{}
			},
		},
	}

	limit := rate.Limit(lookupsPerSecond)
	burst := int(lookupsPerSecond)
	if burst < 1 {
		burst = 1
	}

	for i := 0; i < numWorkers; i++ {
		w := &worker{
			id:          i,
			cpuAffinity: i % runtime.NumCPU(),
			queue:       make(chan *WorkItem, MaxShardQueueSize),
			scheduler:   s,
			ctx:         sctx,
			limiter:     rate.NewLimiter(limit, burst),
		}
		s.workers[i] = w
		go w.run()
	}

	log.Printf("Scheduler initialized with %d workers (CPU affinity enabled).\n", numWorkers)
	return s, nil
}

// run is the main processing loop for a single worker goroutine.
func (w *worker) run() {
	setAffinity(w.id, w.cpuAffinity)

	for {
		select {
		case <-w.ctx.Done():
			return
		case item := <-w.queue:
			if item == nil {
				continue
			}

			func() {
				defer w.scheduler.activeWork.Done()
				defer func() {
					if r := recover(); r != nil {
						log.Printf("Panic recovered in worker %d processing %s: %v", w.id, item.Domain, r)
						if metrics.IsMetricsEnabled() {
							metrics.GetMetrics().WorkerPanicsTotal.WithLabelValues(strconv.Itoa(w.id)).Inc()
						}
					}
				}()

				if err := item.Callback(item); err != nil {
					log.Printf("Error processing lookup for %s: %v\n", item.Domain, err)
				}
			}()

			// Return the WorkItem to the pool, clearing references.
			item.Callback = nil
			item.Domain = ""
			item.Shard = ""
			item.Ctx = nil
			item.Error = nil
			w.scheduler.workItemPool.Put(item)
		}
	}
}

// setAffinity binds the current goroutine's OS thread to a CPU core
// for cache locality. Failures are logged and ignored.
func setAffinity(workerID, cpuID int) {
	// LockOSThread keeps the goroutine on this OS thread for the
	// lifetime of the worker, so no matching Unlock.
	runtime.LockOSThread()

	var cpuSet unix.CPUSet
	cpuSet.Zero()
	cpuSet.Set(cpuID)

	tid := unix.Gettid()
	if err := unix.SchedSetaffinity(tid, &cpuSet); err != nil {
		log.Printf("Warning: Failed to set CPU affinity for worker %d on core %d (tid: %d): %v\n", workerID, cpuID, tid, err)
	}
}

// shardFor maps a shard key to its worker.
func (s *Scheduler) shardFor(shard string) *worker {
	return s.workers[int(xxh3.HashString(shard)%uint64(s.numWorkers))]
}

// WaitTurn blocks on the rate limiter of the worker that owns shard.
// Callers invoke it before SubmitWork so the queue send itself stays
// non-blocking.
func (s *Scheduler) WaitTurn(ctx context.Context, shard string) error {
	if s.shutdown.Load() {
		return ErrWorkerShutdown
	}
	w := s.shardFor(shard)
	start := time.Now()
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}
	if metrics.IsMetricsEnabled() {
		metrics.GetMetrics().RateLimitDelay.WithLabelValues(shard).Observe(time.Since(start).Seconds())
	}
	return nil
}

// SubmitWork routes a lookup to a worker queue based on hashing the
// shard key. The send is non-blocking; a full queue reports
// ErrQueueFull so the caller can back off.
func (s *Scheduler) SubmitWork(ctx context.Context, domain, shard string, callback WorkCallback) error {
	if s.shutdown.Load() {
		return ErrWorkerShutdown
	}
	targetWorker := s.shardFor(shard)

	item := s.workItemPool.Get().(*WorkItem)
	item.Domain = domain
	item.Shard = shard
	item.Attempt = 0
	item.Callback = callback
	item.Ctx = ctx
	item.CreatedAt = time.Now()
	s.activeWork.Add(1)

	select {
	case targetWorker.queue <- item:
		return nil
	default:
		s.activeWork.Done()
		s.workItemPool.Put(item)
		if metrics.IsMetricsEnabled() {
			metrics.GetMetrics().QueueBackpressureHit.WithLabelValues(strconv.Itoa(targetWorker.id)).Inc()
		}
		return fmt.Errorf("worker %d for shard %s: %w", targetWorker.id, shard, ErrQueueFull)
	}
}

// Wait blocks until all submitted work items have been processed.
func (s *Scheduler) Wait() {
	s.activeWork.Wait()
}

// Shutdown initiates a graceful shutdown of the scheduler.
func (s *Scheduler) Shutdown() {
	if s.shutdown.CompareAndSwap(false, true) {
		log.Println("Scheduler shutting down...")
		s.cancel()
	}
}

// NumWorkers returns the size of the worker pool.
func (s *Scheduler) NumWorkers() int {
	return s.numWorkers
}
