/*
Package pipeline provides the batch lookup machinery: a sharded worker
scheduler and the runner that drives whois sessions for large domain
lists, writing classified records to per-registry output files.
*/
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
	"time"
)

// Common constants
const (
	// MaxShardQueueSize is the maximum size of a worker's queue
	MaxShardQueueSize = 1000

	// WorkerMultiplier is the multiplier for the number of workers
	WorkerMultiplier = 2

	// MaxSubmitRetries is how many times a full queue submission is
	// retried after the rate limiter has already been waited on
	MaxSubmitRetries = 15

	// SubmitRetryDelay is the pause between queue submission retries
	SubmitRetryDelay = 750 * time.Millisecond

	// StatsReportInterval is how often batch progress is printed
	StatsReportInterval = 1 * time.Second

	// DefaultLookupsPerSecond is the per-shard rate limit applied to
	// outgoing lookups when the caller does not set one
	DefaultLookupsPerSecond = 5.0
)

// WorkItem represents one pending whois lookup. It is pooled via
// sync.Pool to reduce allocations when batches run into the millions.
type WorkItem struct {
	// Immutable fields
	Domain    string          // Domain to look up.
	Shard     string          // Shard key, the domain's final label.
	Callback  WorkCallback    // Function to execute for this item.
	Ctx       context.Context // Context for this lookup.
	CreatedAt time.Time

	// Mutable fields
	Attempt int
	Error   error
}

// WorkCallback is the function signature for work item callbacks
type WorkCallback func(item *WorkItem) error
