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
	"fmt"
	"regexp"
	"strings"
)

// Field patterns for expansion. Registries vary the label freely
// ("Domain Name", "domain", "Domain....."), so the domain pattern keys
// on the word "domain" anywhere in the label and a hostname-shaped
// value, while the registrar server pattern demands the literal label
// with tolerant punctuation and an optional URL scheme on the value.
var (
	domainFieldPattern = regexp.MustCompile(
		`(?i)^[^:]*domain[^:]*: *([a-z0-9.-]+) *$`)
	registrarServerPattern = regexp.MustCompile(
		`(?i)^ *registrar whois server[ .]*: *(?:https?://)?([A-Za-z0-9.-]+) *$`)
)

// ExpandResult is the follow-up query derived from a completed
// session's output.
type ExpandResult struct {
	// Domain is the registered name, lower-cased.
	Domain string
	// Server is the registrar's own whois server host.
	Server string
}

// QueryText renders the result as the argument text for a new query:
// "-h <server> <domain>".
func (r ExpandResult) QueryText() string {
	return fmt.Sprintf("-h %s %s", r.Server, r.Domain)
}

// Expand scans a completed session's raw output for the registered
// domain and the registrar's own whois server, to re-query the more
// authoritative source.
//
// The scan runs top to bottom: the first matching domain field wins,
// and the server search continues forward from that match rather than
// restarting, so in multi-record output the server is taken from the
// same record as the domain. Expand fails with ErrNoDomainFound or
// ErrNoRegistrarServerFound; it never issues a query itself.
func Expand(lines []string) (ExpandResult, error) {
	domainAt := -1
	var res ExpandResult
	for i, ln := range lines {
		if m := domainFieldPattern.FindStringSubmatch(ln); m != nil {
			// Displayed case is presentation only; queries go out
			// lower-cased.
			res.Domain = strings.ToLower(m[1])
			domainAt = i
			break
		}
	}
	if domainAt < 0 {
		return ExpandResult{}, ErrNoDomainFound
	}

	for _, ln := range lines[domainAt:] {
		if m := registrarServerPattern.FindStringSubmatch(ln); m != nil {
			res.Server = m[1]
			return res, nil
		}
	}
	return ExpandResult{}, ErrNoRegistrarServerFound
}
