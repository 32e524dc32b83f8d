package session

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
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/x-stp/whoistint/internal/classify"
)

// DefaultBin is the query program invoked when a Driver is not given
// another one.
const DefaultBin = "whois"

// LineSink consumes classified lines in the order the query program
// produced them. Implementations render, buffer, or discard; the driver
// never inspects what a sink does with a line.
type LineSink interface {
	WriteLine(ln classify.Line)
}

// Driver launches whois query subprocesses. The zero value is not
// usable; construct with NewDriver. Drivers hold no per-session state
// and are safe for concurrent Query calls: each call owns an
// independent subprocess and output stream.
type Driver struct {
	bin    string
	stderr io.Writer // nil discards the program's stderr
}

// NewDriver returns a driver invoking the given query program. An empty
// bin selects DefaultBin. stderr, when non-nil, receives the program's
// standard error verbatim; it is not classified.
func NewDriver(bin string, stderr io.Writer) *Driver {
	if bin == "" {
		bin = DefaultBin
	}
	return &Driver{bin: bin, stderr: stderr}
}

// Bin returns the configured query program name.
func (d *Driver) Bin() string { return d.bin }

// Handle tracks one running query session. Sessions are ephemeral:
// once the output stream closes the handle only retains the session ID
// and exit outcome.
type Handle struct {
	// ID identifies the session in logs and metric labels.
	ID uuid.UUID

	cmd  *exec.Cmd
	done chan struct{}

	mu      sync.Mutex
	runErr  error
	lineCnt int
}

// Wait blocks until the subprocess has exited and every line has been
// delivered to the sink. The returned error reflects stream delivery
// problems only; a non-zero exit status after producing output is not
// an error at this layer.
func (h *Handle) Wait() error {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runErr
}

// Lines reports how many lines were delivered so far.
func (h *Handle) Lines() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lineCnt
}

// Query starts the external query program with the user-supplied text
// split into shell words and appended verbatim as its argument list.
// The text may embed flags meant for the program itself (for example
// "-h whois.example.com example.com"); the driver does not parse or
// validate them.
//
// Output is streamed asynchronously: every stdout line is classified
// and delivered to sink in production order until the process exits.
// Query returns once the subprocess is running; ErrSpawnFailed is
// returned immediately when it cannot be started. Cancelling ctx kills
// the subprocess, but lines already delivered are never retracted.
func (d *Driver) Query(ctx context.Context, text string, sink LineSink) (*Handle, error) {
	cmd := exec.CommandContext(ctx, d.bin, strings.Fields(text)...)
	if d.stderr != nil {
		cmd.Stderr = d.stderr
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, spawnError(err)
	}
	if err := cmd.Start(); err != nil {
		return nil, spawnError(err)
	}

	h := &Handle{
		ID:   uuid.New(),
		cmd:  cmd,
		done: make(chan struct{}),
	}

	go func() {
		defer close(h.done)

		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			sink.WriteLine(classify.Classify(sc.Text()))
			h.mu.Lock()
			h.lineCnt++
			h.mu.Unlock()
		}
		scanErr := sc.Err()

		// Exit status is deliberately not checked: whatever the tool
		// printed before failing is still a valid record for the caller.
		_ = cmd.Wait()

		if scanErr != nil {
			h.mu.Lock()
			h.runErr = scanErr
			h.mu.Unlock()
		}
	}()

	return h, nil
}

// Buffer is a LineSink that retains every delivered line, preserving
// order. It backs the expansion flow, which needs the completed raw
// output of a prior session, and doubles as a test sink. Safe for use
// from the driver's delivery goroutine while being read elsewhere only
// after Wait has returned.
type Buffer struct {
	mu    sync.Mutex
	lines []classify.Line
}

// WriteLine implements LineSink.
func (b *Buffer) WriteLine(ln classify.Line) {
	b.mu.Lock()
	b.lines = append(b.lines, ln)
	b.mu.Unlock()
}

// Classified returns the retained classified lines.
func (b *Buffer) Classified() []classify.Line {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]classify.Line, len(b.lines))
	copy(out, b.lines)
	return out
}

// Raw returns the retained raw line texts in delivery order.
func (b *Buffer) Raw() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	for i, ln := range b.lines {
		out[i] = ln.Text
	}
	return out
}

// Tee is a LineSink fanning every line out to several sinks in order.
type Tee []LineSink

// WriteLine implements LineSink.
func (t Tee) WriteLine(ln classify.Line) {
	for _, s := range t {
		s.WriteLine(ln)
	}
}
