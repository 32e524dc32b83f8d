/*
Package session drives whois queries through an external query program
and derives follow-up queries from their output. It defines common error
values shared by the driver and the expansion scanner.
*/
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

// errKind discriminates session error values so that wrapped instances
// still compare equal to the package sentinels under errors.Is.
type errKind uint8

const (
	kindNoDomain errKind = iota + 1
	kindNoRegistrarServer
	kindSpawnFailed
)

// sessionError implements the standard error interface and carries a
// kind plus an optional cause.
type sessionError struct {
	msg   string
	kind  errKind
	cause error
}

func newError(msg string, kind errKind) error {
	return &sessionError{msg: msg, kind: kind}
}

func (e *sessionError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *sessionError) Unwrap() error { return e.cause }

// Is matches any sessionError of the same kind, so
// errors.Is(err, ErrSpawnFailed) holds for wrapped spawn failures that
// carry the underlying exec error as their cause.
func (e *sessionError) Is(target error) bool {
	t, ok := target.(*sessionError)
	return ok && t.kind == e.kind
}

// Sentinel errors surfaced by this package. All are returned
// synchronously to the immediate caller; none are retried.
var (
	// ErrNoDomainFound means Expand could not locate a domain field in
	// the scanned output; no follow-up query is attempted.
	ErrNoDomainFound = newError("no domain field found", kindNoDomain)
	// ErrNoRegistrarServerFound means a domain field was found but no
	// registrar whois server field followed it.
	ErrNoRegistrarServerFound = newError("no registrar whois server field found", kindNoRegistrarServer)
	// ErrSpawnFailed means the external query program could not be
	// started; no output was delivered.
	ErrSpawnFailed = newError("query program could not be started", kindSpawnFailed)
)

// spawnError wraps the exec failure behind ErrSpawnFailed.
func spawnError(cause error) error {
	return &sessionError{msg: "query program could not be started", kind: kindSpawnFailed, cause: cause}
}
