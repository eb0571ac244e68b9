package hashutil

import "testing"

func TestDigestStable(t *testing.T) {
	if Digest("abc") != Digest("abc") {
		t.Fatalf("digest is not stable across calls")
	}
}

func TestDigestLineEndingNormalization(t *testing.T) {
	crlf := Digest("a\r\nb")
	lf := Digest("a\nb")
	cr := Digest("a\rb")
	if crlf != lf || lf != cr {
		t.Fatalf("expected equal digests across line-ending styles, got %q %q %q", crlf, lf, cr)
	}
}

func TestDigestRangeFullContentMatchesDigest(t *testing.T) {
	content := "line1\nline2\nline3"
	if got, want := DigestRange(content, 1, 3), Digest(content); got != want {
		t.Fatalf("DigestRange over full range = %q, want %q", got, want)
	}
}

func TestDigestRangeOutOfBounds(t *testing.T) {
	empty := Digest("")
	cases := []struct {
		name       string
		start, end int
	}{
		{"start after end", 3, 1},
		{"wholly before content", -5, 0},
		{"wholly after content", 10, 20},
	}
	content := "a\nb\nc"
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := DigestRange(content, c.start, c.end); got != empty {
				t.Fatalf("DigestRange(%d, %d) = %q, want digest of empty string %q", c.start, c.end, got, empty)
			}
		})
	}
}

func TestDigestRangeClamps(t *testing.T) {
	content := "a\nb\nc"
	if got, want := DigestRange(content, -2, 2), Digest("a\nb"); got != want {
		t.Fatalf("DigestRange clamp start = %q, want %q", got, want)
	}
	if got, want := DigestRange(content, 2, 100), Digest("b\nc"); got != want {
		t.Fatalf("DigestRange clamp end = %q, want %q", got, want)
	}
}

func TestDigestRangeSingleLine(t *testing.T) {
	content := "only line"
	if got, want := DigestRange(content, 1, 1), Digest("only line"); got != want {
		t.Fatalf("DigestRange single line = %q, want %q", got, want)
	}
}
