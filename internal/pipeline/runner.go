package pipeline

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

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	whoisparser "github.com/likexian/whois-parser"

	"github.com/x-stp/whoistint/internal/iobuf"
	"github.com/x-stp/whoistint/internal/metrics"
	"github.com/x-stp/whoistint/internal/session"
	"github.com/x-stp/whoistint/internal/util"
)

// BatchRunner drives whois lookups for a domain list through the
// scheduler, writing each record to a per-registry output file.
// Lookups shard by the domain's final label, so all .com lookups
// share one worker and its rate limiter.
type BatchRunner struct {
	scheduler *Scheduler
	driver    *session.Driver
	config    *BatchConfig
	stats     *BatchStats
	ctx       context.Context
	cancel    context.CancelFunc
	writers   *iobuf.WriterSet
}

// BatchConfig holds operational parameters for a batch run.
type BatchConfig struct {
	Bin        string  // whois program to invoke
	OutputDir  string  // directory for per-registry output files
	BufferSize int     // disk buffer per output file
	RateLimit  float64 // lookups per second per registry shard
	Compress   bool    // gzip output files
	JSON       bool    // write parsed record summaries as JSON lines
	Follow     bool    // chase registrar whois server referrals
}

// BatchStats uses atomic counters so workers update them without
// lock contention.
type BatchStats struct {
	TotalDomains    atomic.Int64
	Completed       atomic.Int64
	Failed          atomic.Int64
	Expanded        atomic.Int64
	LinesClassified atomic.Int64
	BytesWritten    atomic.Int64
	StartTime       time.Time
}

// NewBatchRunner initializes the runner, including its scheduler and
// writer set.
func NewBatchRunner(ctx context.Context, config *BatchConfig) (*BatchRunner, error) {
	scheduler, err := NewScheduler(ctx, config.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	runnerCtx, cancel := context.WithCancel(ctx)

	opts := iobuf.DefaultOptions()
	if config.BufferSize > 0 {
		opts.BufferSize = config.BufferSize
	}
	opts.Compress = config.Compress

	return &BatchRunner{
		scheduler: scheduler,
		driver:    session.NewDriver(config.Bin, os.Stderr),
		config:    config,
		stats:     &BatchStats{StartTime: time.Now()},
		ctx:       runnerCtx,
		cancel:    cancel,
		writers:   iobuf.NewWriterSet(runnerCtx, opts),
	}, nil
}

// Run looks up every domain in the list and blocks until all work
// completes or the context is cancelled.
func (br *BatchRunner) Run(domains []string) error {
	br.stats.TotalDomains.Store(int64(len(domains)))
	log.Printf("Starting batch lookup for %d domains...", len(domains))

	if err := os.MkdirAll(br.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory '%s': %w", br.config.OutputDir, err)
	}

	for _, raw := range domains {
		domain := util.NormalizeHost(raw)
		if domain == "" {
			continue
		}
		shard := util.TLD(domain)

		if err := br.scheduler.WaitTurn(br.ctx, shard); err != nil {
			log.Printf("Context cancelled while waiting on rate limiter for %s", domain)
			br.Shutdown()
			return err
		}

		if err := br.submitWithRetry(domain, shard); err != nil {
			br.Shutdown()
			return err
		}
	}

	log.Println("All lookups submitted, waiting for workers...")
	br.scheduler.Wait()

	if br.ctx.Err() != nil {
		br.Shutdown()
		return br.ctx.Err()
	}

	br.Shutdown()
	log.Println("Batch lookup finished.")
	return nil
}

// submitWithRetry attempts queue submission, backing off briefly when
// the target worker's queue is full.
func (br *BatchRunner) submitWithRetry(domain, shard string) error {
	for attempt := 0; attempt < MaxSubmitRetries; attempt++ {
		if br.ctx.Err() != nil {
			return br.ctx.Err()
		}

		err := br.scheduler.SubmitWork(br.ctx, domain, shard, br.lookupCallback)
		if err == nil {
			return nil
		}

		if errors.Is(err, ErrQueueFull) {
			select {
			case <-time.After(SubmitRetryDelay):
				continue
			case <-br.ctx.Done():
				return br.ctx.Err()
			}
		}

		log.Printf("Permanent error submitting lookup for %s: %v", domain, err)
		return err
	}

	log.Printf("Dropped lookup for %s after %d submit retries.", domain, MaxSubmitRetries)
	br.stats.Failed.Add(1)
	return nil
}

// lookupCallback is executed by a worker goroutine for one domain. It
// runs the whois session, optionally chases the registrar referral,
// and writes the record to the shard's output file.
func (br *BatchRunner) lookupCallback(item *WorkItem) error {
	ctx := item.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	raw, err := br.runSession(ctx, item.Domain)
	if err != nil {
		br.stats.Failed.Add(1)
		if !errors.Is(err, context.Canceled) {
			log.Printf("Lookup failed for %s: %v", item.Domain, err)
		}
		return fmt.Errorf("lookup failed for %s: %w", item.Domain, err)
	}

	if br.config.Follow {
		if res, err := session.Expand(raw); err == nil {
			followed, ferr := br.runSession(ctx, res.QueryText())
			if ferr == nil {
				br.stats.Expanded.Add(1)
				raw = append(raw, "")
				raw = append(raw, followed...)
			}
		}
	}

	record, err := br.formatRecord(item.Domain, raw)
	if err != nil {
		br.stats.Failed.Add(1)
		return err
	}

	writer, err := br.writerFor(item.Shard)
	if err != nil {
		br.stats.Failed.Add(1)
		return err
	}
	if err := writer.WriteRecord(record); err != nil {
		br.stats.Failed.Add(1)
		return fmt.Errorf("failed to write record for %s: %w", item.Domain, err)
	}

	br.stats.Completed.Add(1)
	br.stats.BytesWritten.Add(int64(len(record)))
	return nil
}

// runSession runs one whois invocation and returns the raw lines.
func (br *BatchRunner) runSession(ctx context.Context, queryText string) ([]string, error) {
	var buf session.Buffer
	h, err := br.driver.Query(ctx, queryText, &buf)
	if err != nil {
		return nil, err
	}
	if err := h.Wait(); err != nil {
		return nil, err
	}
	br.stats.LinesClassified.Add(int64(h.Lines()))
	if metrics.IsMetricsEnabled() {
		metrics.GetMetrics().SessionLines.WithLabelValues("batch").Observe(float64(h.Lines()))
	}
	return buf.Raw(), nil
}

// formatRecord renders the record for output, either raw text or a
// one-line JSON summary of the parsed registration data.
func (br *BatchRunner) formatRecord(domain string, raw []string) (string, error) {
	text := strings.Join(raw, "\n")
	if !br.config.JSON {
		return text, nil
	}

	summary := struct {
		Domain string                 `json:"domain"`
		Parsed *whoisparser.WhoisInfo `json:"parsed,omitempty"`
		Error  string                 `json:"error,omitempty"`
	}{Domain: domain}

	parsed, err := whoisparser.Parse(text)
	if err != nil {
		summary.Error = err.Error()
	} else {
		summary.Parsed = &parsed
	}

	b, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("failed to encode summary for %s: %w", domain, err)
	}
	return string(b), nil
}

// writerFor returns the output writer for a registry shard.
func (br *BatchRunner) writerFor(shard string) (*iobuf.RecordWriter, error) {
	name := util.SanitizeFilename(shard)
	if name == "" {
		name = "unknown"
	}
	if br.config.JSON {
		name += ".jsonl"
	} else {
		name += ".txt"
	}
	if br.config.Compress {
		name += ".gz"
	}
	return br.writers.Get(filepath.Join(br.config.OutputDir, name))
}

// Shutdown cancels outstanding work and flushes output files. Safe to
// call more than once.
func (br *BatchRunner) Shutdown() {
	br.scheduler.Shutdown()
	if err := br.writers.Close(); err != nil {
		log.Printf("Error closing output writers: %v", err)
	}
	br.cancel()
}

// Stats returns the live counters for progress reporting.
func (br *BatchRunner) Stats() *BatchStats {
	return br.stats
}
