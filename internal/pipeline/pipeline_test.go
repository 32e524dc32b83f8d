package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeTool writes an executable shell script standing in for the
// whois program.
func fakeTool(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fakewhois")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("writing fake tool: %v", err)
	}
	return path
}

func TestSchedulerRunsCallbacks(t *testing.T) {
	t.Parallel()

	s, err := NewScheduler(context.Background(), 1000)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer s.Shutdown()

	var count atomic.Int64
	for i := 0; i < 50; i++ {
		err := s.SubmitWork(context.Background(), "example.com", "com", func(item *WorkItem) error {
			count.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("SubmitWork: %v", err)
		}
	}
	s.Wait()

	if got := count.Load(); got != 50 {
		t.Fatalf("callbacks ran %d times, want 50", got)
	}
}

func TestSchedulerShardStickiness(t *testing.T) {
	t.Parallel()

	s, err := NewScheduler(context.Background(), 1000)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer s.Shutdown()

	if a, b := s.shardFor("com"), s.shardFor("com"); a != b {
		t.Fatal("same shard key mapped to different workers")
	}
}

func TestSchedulerRecoversPanics(t *testing.T) {
	t.Parallel()

	s, err := NewScheduler(context.Background(), 1000)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer s.Shutdown()

	var after sync.WaitGroup
	after.Add(1)
	err = s.SubmitWork(context.Background(), "bad.example", "example", func(item *WorkItem) error {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("SubmitWork: %v", err)
	}
	// A second item on the same shard proves the worker survived.
	err = s.SubmitWork(context.Background(), "good.example", "example", func(item *WorkItem) error {
		after.Done()
		return nil
	})
	if err != nil {
		t.Fatalf("SubmitWork: %v", err)
	}

	done := make(chan struct{})
	go func() {
		after.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not process work after a recovered panic")
	}
}

func TestSchedulerRejectsWorkAfterShutdown(t *testing.T) {
	t.Parallel()

	s, err := NewScheduler(context.Background(), 1000)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	s.Shutdown()

	err = s.SubmitWork(context.Background(), "example.com", "com", func(item *WorkItem) error { return nil })
	if err == nil {
		t.Fatal("expected error submitting after shutdown")
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	if !IsRetryable(ErrQueueFull) {
		t.Error("ErrQueueFull should be retryable")
	}
	if IsRetryable(ErrWorkerShutdown) {
		t.Error("ErrWorkerShutdown should not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
	if IsRetryable(os.ErrNotExist) {
		t.Error("foreign errors should not be retryable")
	}
}

func TestBatchRunnerWritesPerRegistryFiles(t *testing.T) {
	t.Parallel()

	bin := fakeTool(t, `echo "Domain Name: $1"
echo "Registrar: Example Inc."`)
	outDir := t.TempDir()

	br, err := NewBatchRunner(context.Background(), &BatchConfig{
		Bin:       bin,
		OutputDir: outDir,
		RateLimit: 1000,
	})
	if err != nil {
		t.Fatalf("NewBatchRunner: %v", err)
	}

	if err := br.Run([]string{"example.com", "EXAMPLE.NET", "other.com"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	com, err := os.ReadFile(filepath.Join(outDir, "com.txt"))
	if err != nil {
		t.Fatalf("reading com output: %v", err)
	}
	if !strings.Contains(string(com), "Domain Name: example.com") {
		t.Errorf("com output missing example.com record: %q", com)
	}
	if !strings.Contains(string(com), "Domain Name: other.com") {
		t.Errorf("com output missing other.com record: %q", com)
	}

	net, err := os.ReadFile(filepath.Join(outDir, "net.txt"))
	if err != nil {
		t.Fatalf("reading net output: %v", err)
	}
	// Domains are normalized to lowercase before lookup.
	if !strings.Contains(string(net), "Domain Name: example.net") {
		t.Errorf("net output missing record: %q", net)
	}

	stats := br.Stats()
	if got := stats.Completed.Load(); got != 3 {
		t.Errorf("Completed = %d, want 3", got)
	}
	if got := stats.Failed.Load(); got != 0 {
		t.Errorf("Failed = %d, want 0", got)
	}
}

func TestBatchRunnerJSONSummaries(t *testing.T) {
	t.Parallel()

	bin := fakeTool(t, `echo "Domain Name: $1"`)
	outDir := t.TempDir()

	br, err := NewBatchRunner(context.Background(), &BatchConfig{
		Bin:       bin,
		OutputDir: outDir,
		RateLimit: 1000,
		JSON:      true,
	})
	if err != nil {
		t.Fatalf("NewBatchRunner: %v", err)
	}

	if err := br.Run([]string{"example.org"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(outDir, "org.jsonl"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(b), `"domain":"example.org"`) {
		t.Errorf("summary missing domain field: %q", b)
	}
}

func TestBatchRunnerCountsFailures(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	br, err := NewBatchRunner(context.Background(), &BatchConfig{
		Bin:       filepath.Join(t.TempDir(), "no-such-binary"),
		OutputDir: outDir,
		RateLimit: 1000,
	})
	if err != nil {
		t.Fatalf("NewBatchRunner: %v", err)
	}

	if err := br.Run([]string{"example.com"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := br.Stats().Failed.Load(); got != 1 {
		t.Errorf("Failed = %d, want 1", got)
	}
}
