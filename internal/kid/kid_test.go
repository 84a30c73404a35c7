package kid

import "testing"

func TestGenerateProducesValidDistinctKids(t *testing.T) {
	a := Generate()
	b := Generate()
	if !Valid(a) || !Valid(b) {
		t.Fatalf("expected valid kids, got %q and %q", a, b)
	}
	if a == b {
		t.Fatal("expected two consecutive generated kids to differ")
	}
}

func TestExtractMarkerFindsFirstLineMarker(t *testing.T) {
	got := ExtractMarker("<!-- kid:deadbeef -->buy milk\nmore text")
	if got != "deadbeef" {
		t.Fatalf("ExtractMarker = %q, want deadbeef", got)
	}
}

func TestExtractMarkerReturnsEmptyWithoutMarker(t *testing.T) {
	if got := ExtractMarker("buy milk"); got != "" {
		t.Fatalf("ExtractMarker = %q, want empty", got)
	}
}

func TestExtractMarkerIgnoresMarkerOnLaterLines(t *testing.T) {
	got := ExtractMarker("buy milk\n<!-- kid:deadbeef -->")
	if got != "" {
		t.Fatalf("ExtractMarker = %q, want empty (marker not on first line)", got)
	}
}

func TestStripRemovesMarkerAndTrailingWhitespace(t *testing.T) {
	got := Strip("buy milk <!-- kid:deadbeef -->")
	if got != "buy milk" {
		t.Fatalf("Strip = %q, want %q", got, "buy milk")
	}
}

func TestStripPreservesRemainingLines(t *testing.T) {
	got := Strip("<!-- kid:deadbeef -->buy milk\nsecond line")
	if got != "buy milk\nsecond line" {
		t.Fatalf("Strip = %q, want %q", got, "buy milk\nsecond line")
	}
}

func TestStripSingleLineMarkerOnlyContentBecomesEmpty(t *testing.T) {
	got := Strip("<!-- kid:deadbeef -->")
	if got != "" {
		t.Fatalf("Strip = %q, want empty", got)
	}
}

func TestResolveExplicitWins(t *testing.T) {
	got, content := Resolve("cafebabe", "<!-- kid:deadbeef -->buy milk")
	if got != "cafebabe" {
		t.Fatalf("Resolve kid = %q, want cafebabe", got)
	}
	if content != "buy milk" {
		t.Fatalf("Resolve stripped content = %q, want %q", content, "buy milk")
	}
}

func TestResolveFallsBackToMarker(t *testing.T) {
	got, content := Resolve("", "<!-- kid:deadbeef -->buy milk")
	if got != "deadbeef" {
		t.Fatalf("Resolve kid = %q, want deadbeef", got)
	}
	if content != "buy milk" {
		t.Fatalf("Resolve stripped content = %q, want %q", content, "buy milk")
	}
}

func TestResolveGeneratesWhenNeitherPresent(t *testing.T) {
	got, content := Resolve("", "buy milk")
	if !Valid(got) {
		t.Fatalf("Resolve kid = %q, want a freshly generated valid kid", got)
	}
	if content != "buy milk" {
		t.Fatalf("Resolve stripped content = %q, want %q", content, "buy milk")
	}
}

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"deadbeef": true,
		"DEADBEEF": false, // uppercase hex is not accepted
		"dead":     false,
		"deadbeefx": false,
		"ghijklmn": false,
	}
	for s, want := range cases {
		if got := Valid(s); got != want {
			t.Errorf("Valid(%q) = %v, want %v", s, got, want)
		}
	}
}
