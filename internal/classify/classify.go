/*
Package classify assigns semantic categories to lines of whois record
text. Whois output has no fixed grammar; the package models it as an
ordered rule table evaluated by a single dispatch loop: an exclusive
comment check, then structural "Label: value" rules of which at most one
fires, then overlay rules that may paint addresses, dates, redaction
phrases and contact details on top of the structural spans.

Classification is a total, pure function: it never fails, holds no
state beyond the immutable rule table built at init, and is safe to call
concurrently from any number of goroutines.
*/
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

import "sort"

// Span is a half-open byte range [Start, End) of a line carrying one
// category. Spans never cross line boundaries.
type Span struct {
	Start    int
	End      int
	Category Category
}

// Line is the classified form of one input line: the raw text plus an
// ordered, possibly stacking sequence of spans. Text not covered by any
// span is implicitly Plain.
type Line struct {
	Text  string
	Spans []Span
}

// Classify maps one raw line to its classified form.
//
// Evaluation order is fixed: the comment rule is exclusive and ends
// classification; otherwise the first matching structural rule emits a
// key span and (when non-empty) a value span; then every overlay rule
// scans the whole line, including the key span. An unmatched non-empty
// line yields a single Plain span covering all of it; an empty line
// yields no spans.
func Classify(line string) Line {
	out := Line{Text: line}
	if line == "" {
		return out
	}

	if commentPattern.MatchString(line) {
		out.Spans = append(out.Spans, Span{Start: 0, End: len(line), Category: Comment})
		return out
	}

	for _, r := range structuralRules {
		m := r.pattern.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		// m[2:4] is the label including the colon, m[4:6] the value.
		out.Spans = append(out.Spans, Span{Start: m[2], End: m[3], Category: r.key})
		if m[5] > m[4] {
			out.Spans = append(out.Spans, Span{Start: m[4], End: m[5], Category: r.value})
		}
		break
	}

	// Overlay spans stack on structural spans freely, but among
	// themselves the earlier-listed rule keeps an overlapping region: a
	// later match fully inside earlier overlay territory is dropped, a
	// partial overlap is trimmed to its remainder.
	var occupied []Span
	for _, r := range overlayRules {
		for _, m := range r.pattern.FindAllStringIndex(line, -1) {
			if r.stacks {
				out.Spans = append(out.Spans, Span{Start: m[0], End: m[1], Category: r.category})
				continue
			}
			for _, seg := range resolveOverlap(m[0], m[1], occupied) {
				seg.Category = r.category
				out.Spans = append(out.Spans, seg)
				occupied = append(occupied, seg)
			}
		}
	}

	if len(out.Spans) == 0 {
		out.Spans = append(out.Spans, Span{Start: 0, End: len(line), Category: Plain})
		return out
	}

	sort.SliceStable(out.Spans, func(i, j int) bool {
		a, b := out.Spans[i], out.Spans[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End > b.End
	})
	return out
}

// resolveOverlap trims the candidate range [start, end) against the
// regions earlier overlay rules already claimed and returns the
// surviving segments in order. A candidate fully contained in claimed
// territory yields nothing.
func resolveOverlap(start, end int, occupied []Span) []Span {
	segs := []Span{{Start: start, End: end}}
	for _, oc := range occupied {
		var next []Span
		for _, s := range segs {
			if s.End <= oc.Start || s.Start >= oc.End {
				next = append(next, s)
				continue
			}
			if s.Start < oc.Start {
				next = append(next, Span{Start: s.Start, End: oc.Start})
			}
			if s.End > oc.End {
				next = append(next, Span{Start: oc.End, End: s.End})
			}
		}
		segs = next
		if len(segs) == 0 {
			break
		}
	}
	return segs
}

// SpanText returns the substring of the line a span covers.
func (l Line) SpanText(s Span) string {
	return l.Text[s.Start:s.End]
}

// Has reports whether any span of the line carries the category.
func (l Line) Has(c Category) bool {
	for _, s := range l.Spans {
		if s.Category == c {
			return true
		}
	}
	return false
}
