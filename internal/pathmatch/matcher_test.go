package pathmatch

import "testing"

func TestNormalizeAbsoluteUnderRoot(t *testing.T) {
	got := Normalize("/workspace/src/a.ts", "/workspace")
	if got != "src/a.ts" {
		t.Fatalf("Normalize = %q, want %q", got, "src/a.ts")
	}
}

func TestNormalizeRelative(t *testing.T) {
	got := Normalize("./src/a.ts", "/workspace")
	if got != "src/a.ts" {
		t.Fatalf("Normalize = %q, want %q", got, "src/a.ts")
	}
}

func TestMatchesAnyDoubleStarMatchesNested(t *testing.T) {
	ok := MatchesAny("/workspace/src/api/deep/x.ts", []string{"src/**"}, "/workspace")
	if !ok {
		t.Fatalf("expected src/** to match nested path")
	}
}

func TestMatchesAnyRejectsOutsideScope(t *testing.T) {
	ok := MatchesAny("/workspace/src/db/x.ts", []string{"src/api/**"}, "/workspace")
	if ok {
		t.Fatalf("expected src/api/** to not match src/db/x.ts")
	}
}

func TestMatchesAnyEmptyPatternsIsFalse(t *testing.T) {
	if MatchesAny("/workspace/a.ts", nil, "/workspace") {
		t.Fatalf("empty pattern list should never match")
	}
}

func TestMatchesAnyLogicalOr(t *testing.T) {
	patterns := []string{"docs/**", "src/api/**"}
	if !MatchesAny("/workspace/src/api/x.ts", patterns, "/workspace") {
		t.Fatalf("expected second pattern to match")
	}
}

func TestCompiledMatcherEquivalentToMatchesAny(t *testing.T) {
	patterns := []string{"src/**"}
	m := Compile(patterns)
	if !m.Matches("/workspace/src/a.ts", "/workspace") {
		t.Fatalf("CompiledMatcher should match the same as MatchesAny")
	}
	if m.Matches("/workspace/docs/a.ts", "/workspace") {
		t.Fatalf("CompiledMatcher should reject out-of-scope path")
	}
}
