package iobuf

import (
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRecordWriterWritesAndCloses(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "com.txt")
	rw, err := NewRecordWriter(context.Background(), path, &Options{
		BufferSize:    64,
		FlushInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewRecordWriter: %v", err)
	}

	if err := rw.WriteRecord("Domain Name: EXAMPLE.COM\nRegistrar: Example Inc.\n"); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if err := rw.WriteRecord("Domain Name: EXAMPLE.NET"); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "Domain Name: EXAMPLE.COM\nRegistrar: Example Inc.\n\nDomain Name: EXAMPLE.NET\n\n"
	if string(b) != want {
		t.Fatalf("got %q, want %q", b, want)
	}
	if got := rw.Metrics().RecordsWritten.Load(); got != 2 {
		t.Errorf("RecordsWritten = %d, want 2", got)
	}
}

func TestRecordWriterClosedRejectsWrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.txt")
	rw, err := NewRecordWriter(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("NewRecordWriter: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := rw.WriteRecord("late"); err != ErrWriterClosed {
		t.Fatalf("WriteRecord after Close = %v, want ErrWriterClosed", err)
	}
	// Second close is a no-op.
	if err := rw.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestRecordWriterCompressed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "org.txt.gz")
	rw, err := NewRecordWriter(context.Background(), path, &Options{Compress: true})
	if err != nil {
		t.Fatalf("NewRecordWriter: %v", err)
	}
	if err := rw.WriteRecord("Domain Name: EXAMPLE.ORG"); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	gr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(gr); err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("EXAMPLE.ORG")) {
		t.Fatalf("decompressed output missing record: %q", buf.String())
	}
}

func TestWriterSetReusesWriters(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ws := NewWriterSet(context.Background(), nil)
	defer ws.Close()

	a, err := ws.Get(filepath.Join(dir, "com.txt"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, err := ws.Get(filepath.Join(dir, "com.txt"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a != b {
		t.Fatal("expected same writer for same path")
	}

	c, err := ws.Get(filepath.Join(dir, "net.txt"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a == c {
		t.Fatal("expected distinct writers for distinct paths")
	}
}

func TestWriterSetCloseFlushesAll(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ws := NewWriterSet(context.Background(), &Options{FlushInterval: time.Hour})

	w, err := ws.Get(filepath.Join(dir, "io.txt"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := w.WriteRecord("nserver: ns1.example.io"); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "io.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Contains(b, []byte("ns1.example.io")) {
		t.Fatalf("output not flushed on close: %q", b)
	}
}
