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

import "fmt"

// Category is the semantic tag assigned to a span of whois record text.
// The zero value is Plain, the implicit category of uncovered text.
type Category uint8

const (
	// Plain marks text no rule claimed. It is never emitted as a span by
	// the classifier; renderers treat uncovered text as Plain.
	Plain Category = iota
	// Comment marks a whole line introduced by #, ;, % or *.
	Comment
	// Banner marks a ">>> Last update ... <<<" database banner line.
	Banner
	// DNSSECKey and DNSSECValue mark the DNSSEC field, which gets its own
	// pair of categories ahead of the generic key rules.
	DNSSECKey
	DNSSECValue
	// IdentityKey and IdentityValue mark fields whose label mentions
	// "name" or "server" (Domain Name, Name Server, Registrar Name, ...).
	IdentityKey
	IdentityValue
	// PlainKey and PlainValue mark all-lowercase field labels as emitted
	// by several country-code registries.
	PlainKey
	PlainValue
	// GenericKey and GenericValue mark every other Label: value field.
	GenericKey
	GenericValue
	// Redacted marks GDPR/privacy redaction phrases.
	Redacted
	// Address marks IPv4 and IPv6 literals.
	Address
	// Timestamp marks ISO-8601 and European-style dates and date-times.
	Timestamp
	// Contact marks email addresses and web URLs.
	Contact
)

var categoryNames = map[Category]string{
	Plain:         "plain",
	Comment:       "comment",
	Banner:        "banner",
	DNSSECKey:     "dnssec-key",
	DNSSECValue:   "dnssec-value",
	IdentityKey:   "identity-key",
	IdentityValue: "identity-value",
	PlainKey:      "plain-key",
	PlainValue:    "plain-value",
	GenericKey:    "generic-key",
	GenericValue:  "generic-value",
	Redacted:      "redacted",
	Address:       "address",
	Timestamp:     "timestamp",
	Contact:       "contact",
}

// String returns the stable lowercase name of the category. These names are
// the vocabulary of theme files and metric labels.
func (c Category) String() string {
	if n, ok := categoryNames[c]; ok {
		return n
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// ParseCategory resolves a category name as used in theme files.
func ParseCategory(name string) (Category, error) {
	for c, n := range categoryNames {
		if n == name {
			return c, nil
		}
	}
	return Plain, fmt.Errorf("unknown category %q", name)
}

// Categories returns every category in declaration order. Used to
// pre-register metric label values and to validate themes.
func Categories() []Category {
	out := make([]Category, 0, len(categoryNames))
	for c := Plain; c <= Contact; c++ {
		out = append(out, c)
	}
	return out
}
