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

// customError is an error type that includes a retryable flag so
// callers can decide whether to resubmit the work item.
type customError struct {
	message   string
	retryable bool
}

// NewError creates a new customError with the given message and
// retryable status.
func NewError(msg string, retryable bool) error {
	return &customError{
		message:   msg,
		retryable: retryable,
	}
}

func (e *customError) Error() string {
	return e.message
}

// IsRetryable returns true if the error is designated as retryable.
func (e *customError) IsRetryable() bool {
	return e.retryable
}

// IsRetryable reports whether err is a retryable *customError. Nil
// and unknown error types count as non-retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*customError); ok {
		return e.IsRetryable()
	}
	return false
}

var (
	// ErrQueueFull indicates that a worker's queue is at capacity and
	// cannot accept new work items. Retryable, the queue drains.
	ErrQueueFull = NewError("queue full", true)
	// ErrWorkerShutdown indicates the scheduler is shutting down and
	// can no longer accept work.
	ErrWorkerShutdown = NewError("worker shutdown", false)
)
