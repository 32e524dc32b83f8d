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
	"os"

	"gopkg.in/yaml.v3"

	"github.com/x-stp/whoistint/internal/classify"
)

// Theme maps span categories to terminal colors. Colors are anything
// lipgloss accepts: ANSI numbers ("12"), or hex strings ("#7aa2f7").
type Theme struct {
	Colors map[string]string `yaml:"colors"`
	Bold   []string          `yaml:"bold"`
}

// DefaultTheme returns the built-in palette.
func DefaultTheme() *Theme {
	return &Theme{
		Colors: map[string]string{
			"comment":        "8",
			"banner":         "13",
			"dnssec-key":     "5",
			"dnssec-value":   "13",
			"identity-key":   "4",
			"identity-value": "12",
			"plain-key":      "6",
			"plain-value":    "14",
			"generic-key":    "3",
			"generic-value":  "11",
			"redacted":       "1",
			"address":        "2",
			"timestamp":      "10",
			"contact":        "9",
		},
		Bold: []string{"identity-value", "banner"},
	}
}

// LoadTheme reads a YAML theme file and merges it over the default
// palette; categories the file omits keep their default colors.
func LoadTheme(path string) (*Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading theme %s: %w", path, err)
	}

	var loaded Theme
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parsing theme %s: %w", path, err)
	}

	if err := loaded.validate(); err != nil {
		return nil, fmt.Errorf("theme %s: %w", path, err)
	}

	theme := DefaultTheme()
	for name, color := range loaded.Colors {
		theme.Colors[name] = color
	}
	if loaded.Bold != nil {
		theme.Bold = loaded.Bold
	}
	return theme, nil
}

// validate rejects category names no classifier rule can ever emit.
func (t *Theme) validate() error {
	for name := range t.Colors {
		if _, err := classify.ParseCategory(name); err != nil {
			return err
		}
	}
	for _, name := range t.Bold {
		if _, err := classify.ParseCategory(name); err != nil {
			return err
		}
	}
	return nil
}

func (t *Theme) bold(name string) bool {
	for _, b := range t.Bold {
		if b == name {
			return true
		}
	}
	return false
}
