package classify

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

import "regexp"

// structuralRule matches a "Label: value" line shape. At most one
// structural rule fires per line; they are tried in declaration order.
// The pattern must expose exactly two capture groups: group 1 is the
// label including the colon, group 2 the value.
type structuralRule struct {
	pattern *regexp.Regexp
	key     Category
	value   Category
}

// overlayRule scans the whole line and may paint on top of structural
// spans. Among overlay rules, declaration order decides who keeps an
// overlapping region (see resolveOverlap). A rule with stacks=true is
// exempt from that arbitration and layers over everything; it exists for
// the update banner, whose inner timestamp must survive as its own span.
type overlayRule struct {
	pattern  *regexp.Regexp
	category Category
	stacks   bool
}

// commentPattern is checked first and exclusively: one or more marker
// characters open the line, the rest is free text. Marker characters
// double as field separators in some registries, which is why a comment
// line must never reach the structural rules.
var commentPattern = regexp.MustCompile(`^[#;%*]+ ?.*$`)

// structuralRules in priority order. DNSSEC is special-cased ahead of the
// identity rule ("DNSSEC" contains no name/server but its generic-rule
// shape is identical), and the identity rule outranks the generic one
// because name/server labels carry more semantic weight than the rest.
var structuralRules = []structuralRule{
	{
		pattern: regexp.MustCompile(`^(DNSSEC[[:punct:]]*:) *(.*)$`),
		key:     DNSSECKey,
		value:   DNSSECValue,
	},
	{
		pattern: regexp.MustCompile(`(?i)^([a-z][a-z0-9 ._/-]*(?:name|server)[a-z0-9 ._/-]*:) *(.*)$`),
		key:     IdentityKey,
		value:   IdentityValue,
	},
	{
		pattern: regexp.MustCompile(`^([a-z][a-z0-9 _-]*\.*:) *(.*)$`),
		key:     PlainKey,
		value:   PlainValue,
	},
	{
		pattern: regexp.MustCompile(`^([A-Z][A-Za-z0-9/ -]*:) *(.*)$`),
		key:     GenericKey,
		value:   GenericValue,
	},
}

// overlayRules in priority order. Earlier rules win overlapping regions.
//
// The IPv6 pattern deliberately requires either four colon-separated hex
// groups or a "::" compression. The looser "two colons" reading would
// also claim the HH:MM:SS portion of every timestamp, and the address
// rule outranks the timestamp rule, so bare clock times must not look
// like addresses.
var overlayRules = []overlayRule{
	{
		pattern:  regexp.MustCompile(`(?i)(?:(?:[a-z]+ )*redacted(?: [a-z]+)*|not disclosed)`),
		category: Redacted,
	},
	{
		pattern:  regexp.MustCompile(`^GDPR.*`),
		category: Redacted,
	},
	{
		pattern:  regexp.MustCompile(`\b(?:[0-9A-Fa-f]{1,4}:){3,7}[0-9A-Fa-f]{1,4}\b|\b(?:[0-9A-Fa-f]{1,4}:){1,6}:(?:[0-9A-Fa-f]{1,4}(?::[0-9A-Fa-f]{1,4}){0,5})?`),
		category: Address,
	},
	{
		pattern:  regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
		category: Address,
	},
	{
		pattern:  regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?)?`),
		category: Timestamp,
	},
	{
		pattern:  regexp.MustCompile(`\b\d{1,2}\.\d{1,2}\.\d{4}(?: \d{1,2}:\d{2}(?::\d{2})?)?`),
		category: Timestamp,
	},
	{
		pattern:  regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
		category: Contact,
	},
	{
		pattern:  regexp.MustCompile(`https?://[^\s]+`),
		category: Contact,
	},
	{
		pattern:  regexp.MustCompile(`^[ \t]*>>> Last update .*<<<[ \t]*$`),
		category: Banner,
		stacks:   true,
	},
}
