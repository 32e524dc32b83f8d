// Package render turns classified whois record lines into styled
// terminal output.
package render

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
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/x-stp/whoistint/internal/classify"
)

// Renderer writes classified lines to a terminal with per-category
// colors. It implements session.LineSink.
type Renderer struct {
	mu     sync.Mutex
	w      io.Writer
	styles map[classify.Category]lipgloss.Style
}

// NewRenderer builds a renderer over w using the given theme. A nil
// theme selects the default palette.
func NewRenderer(w io.Writer, theme *Theme) *Renderer {
	if theme == nil {
		theme = DefaultTheme()
	}

	styles := make(map[classify.Category]lipgloss.Style, len(theme.Colors))
	for name, color := range theme.Colors {
		cat, err := classify.ParseCategory(name)
		if err != nil {
			continue
		}
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		if theme.bold(name) {
			style = style.Bold(true)
		}
		styles[cat] = style
	}

	return &Renderer{w: w, styles: styles}
}

// WriteLine styles one classified line and writes it followed by a
// newline. Spans arrive sorted outermost first, so painting them in
// order lets stacked inner spans override their container.
func (r *Renderer) WriteLine(ln classify.Line) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, r.styleLine(ln))
}

func (r *Renderer) styleLine(ln classify.Line) string {
	if len(ln.Spans) == 0 {
		return ln.Text
	}

	// Paint a per-byte category map, inner spans last.
	paint := make([]classify.Category, len(ln.Text))
	for _, sp := range ln.Spans {
		for i := sp.Start; i < sp.End && i < len(paint); i++ {
			paint[i] = sp.Category
		}
	}

	var out []byte
	for i := 0; i < len(ln.Text); {
		cat := paint[i]
		j := i + 1
		for j < len(ln.Text) && paint[j] == cat {
			j++
		}
		seg := ln.Text[i:j]
		if style, ok := r.styles[cat]; ok && cat != classify.Plain {
			out = append(out, style.Render(seg)...)
		} else {
			out = append(out, seg...)
		}
		i = j
	}
	return string(out)
}

// PlainWriter passes classified lines through as raw text. It serves
// --no-color output and pipes.
type PlainWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPlainWriter builds a passthrough sink over w.
func NewPlainWriter(w io.Writer) *PlainWriter {
	return &PlainWriter{w: w}
}

// WriteLine writes the raw line text followed by a newline.
func (p *PlainWriter) WriteLine(ln classify.Line) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, ln.Text)
}
