//go:build !linux
// +build !linux

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

// This file provides the scheduler for non-Linux platforms where CPU
// affinity via x/sys/unix is not available. The exported surface is
// identical to the Linux build.

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
	"golang.org/x/time/rate"

	"github.com/x-stp/whoistint/internal/metrics"
)

// Scheduler manages workers and dispatch, without affinity.
type Scheduler struct {
	numWorkers   int
	workers      []*worker
	ctx          context.Context
	cancel       context.CancelFunc
	shutdown     atomic.Bool
	workItemPool sync.Pool
	activeWork   sync.WaitGroup
}

type worker struct {
	id        int
	queue     chan *WorkItem
	scheduler *Scheduler
	ctx       context.Context
	limiter   *rate.Limiter
}

// NewScheduler creates and starts the scheduler (no affinity).
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
			id:        i,
			queue:     make(chan *WorkItem, MaxShardQueueSize),
			scheduler: s,
			ctx:       sctx,
			limiter:   rate.NewLimiter(limit, burst),
		}
		s.workers[i] = w
		go w.run()
	}

	log.Printf("Scheduler initialized with %d workers (CPU affinity disabled).\n", numWorkers)
	return s, nil
}

func (w *worker) run() {
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

			item.Callback = nil
			item.Domain = ""
			item.Shard = ""
			item.Ctx = nil
			item.Error = nil
			w.scheduler.workItemPool.Put(item)
		}
	}
}

func (s *Scheduler) shardFor(shard string) *worker {
	return s.workers[int(xxh3.HashString(shard)%uint64(s.numWorkers))]
}

// WaitTurn blocks on the rate limiter of the worker that owns shard.
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

// SubmitWork routes a lookup to a worker queue by hashing the shard
// key. A full queue reports ErrQueueFull.
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
		s.cancel()
	}
}

// NumWorkers returns the size of the worker pool.
func (s *Scheduler) NumWorkers() int {
	return s.numWorkers
}
