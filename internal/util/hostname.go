package util

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

import "strings"

// NormalizeHost canonicalizes a hostname taken from free-form whois
// text: scheme prefixes and trailing dots/slashes are stripped and the
// result is lower-cased.
func NormalizeHost(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".")
	return strings.ToLower(s)
}

// TLD returns the last label of a domain name, lower-cased, or the
// whole name when it has no dot. Batch work is sharded by TLD so that
// lookups against one registry line up behind the same rate limiter.
func TLD(domain string) string {
	d := NormalizeHost(domain)
	if i := strings.LastIndexByte(d, '.'); i >= 0 && i+1 < len(d) {
		return d[i+1:]
	}
	return d
}

// SanitizeFilename creates a filesystem-safe filename from a domain or
// other string. Replaces problematic characters with underscores and
// limits length.
func SanitizeFilename(input string) string {
	replaced := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, input)
	const maxLength = 100
	if len(replaced) > maxLength {
		return replaced[:maxLength]
	}
	return replaced
}
