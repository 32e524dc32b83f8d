package classify

import "testing"

func spanFor(t *testing.T, ln Line, c Category) Span {
	t.Helper()
	for _, s := range ln.Spans {
		if s.Category == c {
			return s
		}
	}
	t.Fatalf("no %s span in %q (spans: %+v)", c, ln.Text, ln.Spans)
	return Span{}
}

func TestUnmatchedLineIsSinglePlainSpan(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"just some text",
		"   indented free text",
		"No colon here at all",
	} {
		ln := Classify(in)
		if len(ln.Spans) != 1 {
			t.Fatalf("%q: expected 1 span, got %+v", in, ln.Spans)
		}
		s := ln.Spans[0]
		if s.Category != Plain || ln.SpanText(s) != in {
			t.Fatalf("%q: expected full plain span, got %+v", in, s)
		}
	}
}

func TestEmptyLineHasNoSpans(t *testing.T) {
	t.Parallel()

	if ln := Classify(""); len(ln.Spans) != 0 {
		t.Fatalf("expected no spans, got %+v", ln.Spans)
	}
}

func TestCommentLinesAreExclusive(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"#",
		"# whois.example.com",
		"% This query is limited",
		";; truncated",
		"*** error",
		"# Domain Name: example.com",
	} {
		ln := Classify(in)
		if len(ln.Spans) != 1 {
			t.Fatalf("%q: expected one comment span, got %+v", in, ln.Spans)
		}
		s := ln.Spans[0]
		if s.Category != Comment || s.Start != 0 || s.End != len(in) {
			t.Fatalf("%q: expected whole-line comment, got %+v", in, s)
		}
	}
}

func TestIdentityFields(t *testing.T) {
	t.Parallel()

	ln := Classify("Domain Name: EXAMPLE.COM")
	key := spanFor(t, ln, IdentityKey)
	if got := ln.SpanText(key); got != "Domain Name:" {
		t.Fatalf("key span = %q", got)
	}
	val := spanFor(t, ln, IdentityValue)
	if got := ln.SpanText(val); got != "EXAMPLE.COM" {
		t.Fatalf("value span = %q", got)
	}

	// Case of "name"/"server" in the label must not matter.
	for _, in := range []string{
		"DOMAIN NAME: x.com",
		"Name Server: ns1.example.net",
		"Registrar WHOIS Server: whois.example-registrar.com",
		"nserver: ns.nic.cz",
	} {
		ln := Classify(in)
		if !ln.Has(IdentityKey) || !ln.Has(IdentityValue) {
			t.Fatalf("%q: expected identity key/value, got %+v", in, ln.Spans)
		}
	}
}

func TestDNSSECPrecedesIdentityAndGeneric(t *testing.T) {
	t.Parallel()

	ln := Classify("DNSSEC: signedDelegation")
	key := spanFor(t, ln, DNSSECKey)
	if got := ln.SpanText(key); got != "DNSSEC:" {
		t.Fatalf("key span = %q", got)
	}
	val := spanFor(t, ln, DNSSECValue)
	if got := ln.SpanText(val); got != "signedDelegation" {
		t.Fatalf("value span = %q", got)
	}
	if ln.Has(GenericKey) || ln.Has(IdentityKey) {
		t.Fatalf("DNSSEC line also matched another structural rule: %+v", ln.Spans)
	}
}

func TestLowercaseRegistryKeys(t *testing.T) {
	t.Parallel()

	ln := Classify("registrant: ACME s.r.o.")
	if got := ln.SpanText(spanFor(t, ln, PlainKey)); got != "registrant:" {
		t.Fatalf("key span = %q", got)
	}
	if got := ln.SpanText(spanFor(t, ln, PlainValue)); got != "ACME s.r.o." {
		t.Fatalf("value span = %q", got)
	}
}

func TestGenericFields(t *testing.T) {
	t.Parallel()

	ln := Classify("Creation Date: 1997-09-15T04:00:00Z")
	if got := ln.SpanText(spanFor(t, ln, GenericKey)); got != "Creation Date:" {
		t.Fatalf("key span = %q", got)
	}
	if !ln.Has(GenericValue) {
		t.Fatalf("expected generic value span: %+v", ln.Spans)
	}
}

func TestTimestampOverlayOnValue(t *testing.T) {
	t.Parallel()

	ln := Classify("Updated Date: 2024-03-15T10:30:00Z")
	ts := spanFor(t, ln, Timestamp)
	if got := ln.SpanText(ts); got != "2024-03-15T10:30:00Z" {
		t.Fatalf("timestamp span = %q", got)
	}
	// The structural value span must still be present underneath.
	if !ln.Has(GenericValue) {
		t.Fatalf("structural value span lost: %+v", ln.Spans)
	}
}

func TestBareDateMatches(t *testing.T) {
	t.Parallel()

	ln := Classify("Expiry date: 2027-01-31")
	if got := ln.SpanText(spanFor(t, ln, Timestamp)); got != "2027-01-31" {
		t.Fatalf("timestamp span = %q", got)
	}
}

func TestEuropeanDate(t *testing.T) {
	t.Parallel()

	ln := Classify("expires: 4.9.2026 12:00:00")
	if got := ln.SpanText(spanFor(t, ln, Timestamp)); got != "4.9.2026 12:00:00" {
		t.Fatalf("timestamp span = %q", got)
	}
}

func TestRedactionOverlay(t *testing.T) {
	t.Parallel()

	ln := Classify("Registrant Email: REDACTED FOR PRIVACY")
	if got := ln.SpanText(spanFor(t, ln, Redacted)); got != "REDACTED FOR PRIVACY" {
		t.Fatalf("redacted span = %q", got)
	}

	for _, in := range []string{
		"Registrant Name: Not Disclosed",
		"GDPR masked",
		"Registrant: Data Redacted",
	} {
		if !Classify(in).Has(Redacted) {
			t.Fatalf("%q: expected redacted span", in)
		}
	}
}

func TestAddressOverlays(t *testing.T) {
	t.Parallel()

	ln := Classify("Name Server: ns1.example.net 192.0.2.53")
	if got := ln.SpanText(spanFor(t, ln, Address)); got != "192.0.2.53" {
		t.Fatalf("ipv4 span = %q", got)
	}

	ln = Classify("nserver: a.ns.nic.cz 2001:db8:4::1")
	if got := ln.SpanText(spanFor(t, ln, Address)); got != "2001:db8:4::1" {
		t.Fatalf("ipv6 span = %q", got)
	}
}

func TestClockTimeIsNotAnAddress(t *testing.T) {
	t.Parallel()

	// HH:MM:SS has two colons; the address rule outranks the timestamp
	// rule, so it must not claim bare clock times.
	ln := Classify("Updated Date: 2024-03-15T10:30:00Z")
	if ln.Has(Address) {
		t.Fatalf("clock time misclassified as address: %+v", ln.Spans)
	}
}

func TestContactOverlays(t *testing.T) {
	t.Parallel()

	ln := Classify("Registrar Abuse Contact Email: abuse@example-registrar.com")
	if got := ln.SpanText(spanFor(t, ln, Contact)); got != "abuse@example-registrar.com" {
		t.Fatalf("email span = %q", got)
	}

	ln = Classify("Registrar URL: https://www.example-registrar.com")
	if got := ln.SpanText(spanFor(t, ln, Contact)); got != "https://www.example-registrar.com" {
		t.Fatalf("url span = %q", got)
	}
}

func TestMultipleOverlaysOnOneLine(t *testing.T) {
	t.Parallel()

	ln := Classify("changed: hostmaster@nic.example 2020-05-04")
	if !ln.Has(Contact) || !ln.Has(Timestamp) {
		t.Fatalf("expected both contact and timestamp spans: %+v", ln.Spans)
	}
}

func TestUpdateBanner(t *testing.T) {
	t.Parallel()

	in := ">>> Last update of whois database: 2024-03-15T10:30:00Z <<<"
	ln := Classify(in)
	b := spanFor(t, ln, Banner)
	if b.Start != 0 || b.End != len(in) {
		t.Fatalf("banner span = %+v", b)
	}
	if got := ln.SpanText(spanFor(t, ln, Timestamp)); got != "2024-03-15T10:30:00Z" {
		t.Fatalf("inner timestamp span = %q", got)
	}

	// Indented banners occur in Verisign output.
	if !Classify("   " + in).Has(Banner) {
		t.Fatalf("indented banner not recognized")
	}
}

func TestOverlayOverlapIsDeterministic(t *testing.T) {
	t.Parallel()

	// The earlier-listed rule keeps the overlapping region and the
	// later one is trimmed to its remainder. A URL whose host would
	// also match the email rule's domain shape stays a single spanning
	// decision across runs.
	first := Classify("see https://example.com/abuse mail abuse@example.com")
	for i := 0; i < 50; i++ {
		again := Classify("see https://example.com/abuse mail abuse@example.com")
		if len(again.Spans) != len(first.Spans) {
			t.Fatalf("unstable span count: %+v vs %+v", first.Spans, again.Spans)
		}
		for j := range again.Spans {
			if again.Spans[j] != first.Spans[j] {
				t.Fatalf("unstable spans: %+v vs %+v", first.Spans, again.Spans)
			}
		}
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	t.Parallel()

	lines := []string{
		"Domain Name: EXAMPLE.COM",
		"# comment",
		"Updated Date: 2024-03-15T10:30:00Z",
		"Registrant Email: REDACTED FOR PRIVACY",
		"",
		"free text",
	}
	for _, in := range lines {
		a := Classify(in)
		b := Classify(a.Text)
		if a.Text != b.Text || len(a.Spans) != len(b.Spans) {
			t.Fatalf("%q: results differ: %+v vs %+v", in, a.Spans, b.Spans)
		}
		for i := range a.Spans {
			if a.Spans[i] != b.Spans[i] {
				t.Fatalf("%q: span %d differs: %+v vs %+v", in, i, a.Spans[i], b.Spans[i])
			}
		}
	}
}

func TestCategoryNamesRoundTrip(t *testing.T) {
	t.Parallel()

	for _, c := range Categories() {
		got, err := ParseCategory(c.String())
		if err != nil {
			t.Fatalf("ParseCategory(%q): %v", c.String(), err)
		}
		if got != c {
			t.Fatalf("round trip %s -> %s", c, got)
		}
	}
	if _, err := ParseCategory("nope"); err == nil {
		t.Fatalf("expected error for unknown category")
	}
}
