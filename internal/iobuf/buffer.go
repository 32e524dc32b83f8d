// Package iobuf provides buffered, asynchronously flushed writers for
// batch output files, one per output path.
package iobuf

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
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/x-stp/whoistint/internal/metrics"
)

const (
	// DefaultBufferSize is the default in-memory buffer per output file
	DefaultBufferSize = 256 * 1024 // 256KB

	// FlushInterval is how often idle buffers are flushed to disk
	FlushInterval = 2 * time.Second
)

// ErrWriterClosed is returned when writing to a closed RecordWriter
var ErrWriterClosed = errors.New("record writer closed")

// WriterMetrics holds per-writer counters
type WriterMetrics struct {
	BytesWritten   atomic.Int64
	RecordsWritten atomic.Int64
	FlushCount     atomic.Int64
	ErrorCount     atomic.Int64
}

// RecordWriter appends whois record text to a single output file. A
// background goroutine flushes it on a timer so slow batches still
// reach disk promptly.
type RecordWriter struct {
	path     string
	file     *os.File
	gzWriter *gzip.Writer
	buf      *bufio.Writer

	mu     sync.Mutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	metrics WriterMetrics
}

// Options configures a RecordWriter
type Options struct {
	BufferSize    int
	FlushInterval time.Duration
	Compress      bool
}

// DefaultOptions returns the default RecordWriter options
func DefaultOptions() *Options {
	return &Options{
		BufferSize:    DefaultBufferSize,
		FlushInterval: FlushInterval,
		Compress:      false,
	}
}

// NewRecordWriter opens (truncating) the output file at path and
// starts the background flusher.
func NewRecordWriter(ctx context.Context, path string, opts *Options) (*RecordWriter, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = FlushInterval
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	wCtx, wCancel := context.WithCancel(ctx)
	rw := &RecordWriter{
		path:   path,
		file:   file,
		ctx:    wCtx,
		cancel: wCancel,
		done:   make(chan struct{}),
	}

	if opts.Compress {
		gzw, err := gzip.NewWriterLevel(file, gzip.BestSpeed)
		if err != nil {
			file.Close()
			wCancel()
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		rw.gzWriter = gzw
		rw.buf = bufio.NewWriterSize(gzw, opts.BufferSize)
	} else {
		rw.buf = bufio.NewWriterSize(file, opts.BufferSize)
	}

	go rw.flushLoop(opts.FlushInterval)

	return rw, nil
}

func (rw *RecordWriter) flushLoop(interval time.Duration) {
	defer close(rw.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := rw.Flush(); err != nil && !errors.Is(err, ErrWriterClosed) {
				rw.metrics.ErrorCount.Add(1)
			}
		case <-rw.ctx.Done():
			return
		}
	}
}

// WriteRecord appends one record (already newline-terminated or not)
// followed by a blank separator line.
func (rw *RecordWriter) WriteRecord(record string) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.closed {
		return ErrWriterClosed
	}

	n, err := rw.buf.WriteString(record)
	if err != nil {
		rw.metrics.ErrorCount.Add(1)
		return fmt.Errorf("failed to write record: %w", err)
	}
	if len(record) == 0 || record[len(record)-1] != '\n' {
		if err := rw.buf.WriteByte('\n'); err != nil {
			rw.metrics.ErrorCount.Add(1)
			return fmt.Errorf("failed to write record: %w", err)
		}
		n++
	}
	if err := rw.buf.WriteByte('\n'); err != nil {
		rw.metrics.ErrorCount.Add(1)
		return fmt.Errorf("failed to write record: %w", err)
	}
	n++

	rw.metrics.BytesWritten.Add(int64(n))
	rw.metrics.RecordsWritten.Add(1)
	if metrics.IsMetricsEnabled() {
		metrics.GetMetrics().OutputBytesWritten.WithLabelValues(rw.path).Add(float64(n))
	}
	return nil
}

// Flush drains the in-memory buffer to disk.
func (rw *RecordWriter) Flush() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.closed {
		return ErrWriterClosed
	}
	if rw.buf.Buffered() == 0 {
		return nil
	}

	if err := rw.buf.Flush(); err != nil {
		rw.metrics.ErrorCount.Add(1)
		return fmt.Errorf("failed to flush %s: %w", rw.path, err)
	}
	if rw.gzWriter != nil {
		if err := rw.gzWriter.Flush(); err != nil {
			rw.metrics.ErrorCount.Add(1)
			return fmt.Errorf("failed to flush gzip %s: %w", rw.path, err)
		}
	}

	rw.metrics.FlushCount.Add(1)
	if metrics.IsMetricsEnabled() {
		metrics.GetMetrics().OutputFlushesTotal.WithLabelValues(rw.path).Inc()
	}
	return nil
}

// Close flushes and closes the writer. Safe to call twice.
func (rw *RecordWriter) Close() error {
	rw.mu.Lock()
	if rw.closed {
		rw.mu.Unlock()
		return nil
	}
	rw.closed = true
	rw.mu.Unlock()

	rw.cancel()
	<-rw.done

	if err := rw.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s on close: %w", rw.path, err)
	}
	if rw.gzWriter != nil {
		if err := rw.gzWriter.Close(); err != nil {
			return fmt.Errorf("failed to close gzip writer for %s: %w", rw.path, err)
		}
	}
	if err := rw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", rw.path, err)
	}
	if err := rw.file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", rw.path, err)
	}
	return nil
}

// Metrics returns a snapshot view of the writer counters.
func (rw *RecordWriter) Metrics() *WriterMetrics {
	return &rw.metrics
}

// WriterSet manages one RecordWriter per output path.
type WriterSet struct {
	mu      sync.RWMutex
	writers map[string]*RecordWriter
	ctx     context.Context
	cancel  context.CancelFunc
	opts    *Options
}

// NewWriterSet creates an empty WriterSet sharing one Options value.
func NewWriterSet(ctx context.Context, opts *Options) *WriterSet {
	setCtx, setCancel := context.WithCancel(ctx)
	return &WriterSet{
		writers: make(map[string]*RecordWriter),
		ctx:     setCtx,
		cancel:  setCancel,
		opts:    opts,
	}
}

// Get returns the writer for path, creating it on first use.
func (ws *WriterSet) Get(path string) (*RecordWriter, error) {
	ws.mu.RLock()
	w, ok := ws.writers[path]
	ws.mu.RUnlock()
	if ok {
		return w, nil
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if w, ok = ws.writers[path]; ok {
		return w, nil
	}

	w, err := NewRecordWriter(ws.ctx, path, ws.opts)
	if err != nil {
		return nil, err
	}
	ws.writers[path] = w
	return w, nil
}

// Flush flushes every open writer, returning the last error seen.
func (ws *WriterSet) Flush() error {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	var lastErr error
	for _, w := range ws.writers {
		if err := w.Flush(); err != nil && !errors.Is(err, ErrWriterClosed) {
			lastErr = err
		}
	}
	return lastErr
}

// Close closes every open writer, returning the last error seen.
func (ws *WriterSet) Close() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	var lastErr error
	for _, w := range ws.writers {
		if err := w.Close(); err != nil {
			lastErr = err
		}
	}
	ws.cancel()
	return lastErr
}
