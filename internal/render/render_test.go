package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/x-stp/whoistint/internal/classify"
)

func TestRendererPreservesText(t *testing.T) {
	t.Parallel()

	lines := []string{
		"Domain Name: EXAMPLE.COM",
		"% This is a comment",
		">>> Last update of whois database: 2024-03-15T10:30:00Z <<<",
		"Registrant Email: REDACTED FOR PRIVACY",
		"",
		"no structural match here",
	}

	var sb strings.Builder
	r := NewRenderer(&sb, nil)
	for _, raw := range lines {
		r.WriteLine(classify.Classify(raw))
	}

	got := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	if len(got) != len(lines) {
		t.Fatalf("got %d lines, want %d", len(got), len(lines))
	}
	for i, raw := range lines {
		if stripANSI(got[i]) != raw {
			t.Errorf("line %d: got %q, want %q", i, stripANSI(got[i]), raw)
		}
	}
}

func TestPlainWriterVerbatim(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	p := NewPlainWriter(&sb)
	p.WriteLine(classify.Classify("Name Server: NS1.EXAMPLE.COM"))
	p.WriteLine(classify.Classify(""))

	if sb.String() != "Name Server: NS1.EXAMPLE.COM\n\n" {
		t.Errorf("unexpected output %q", sb.String())
	}
}

func TestLoadThemeMergesOverDefault(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "theme.yaml")
	data := "colors:\n  identity-value: \"#ff00ff\"\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	theme, err := LoadTheme(path)
	if err != nil {
		t.Fatalf("LoadTheme: %v", err)
	}
	if theme.Colors["identity-value"] != "#ff00ff" {
		t.Errorf("override not applied: %q", theme.Colors["identity-value"])
	}
	if theme.Colors["timestamp"] == "" {
		t.Error("default palette entry lost after merge")
	}
}

func TestLoadThemeRejectsUnknownCategory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "theme.yaml")
	data := "colors:\n  no-such-category: \"1\"\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadTheme(path); err == nil {
		t.Fatal("expected error for unknown category name")
	}
}

func TestLoadThemeMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := LoadTheme(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// stripANSI removes SGR escape sequences so styled output can be
// compared against the raw record text.
func stripANSI(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			i += 2
			for i < len(s) && s[i] != 'm' {
				i++
			}
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
