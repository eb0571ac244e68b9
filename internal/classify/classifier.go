// Package classify implements the mutation classifier: a layered heuristic
// that categorises a pre/post content pair into one of a fixed set of
// mutation classes, in a strict, documented rule order.
package classify

import (
	"regexp"
	"strings"
)

// MutationClass is one of the fixed mutation categories recorded on a trace
// entry.
type MutationClass string

const (
	ASTRefactor     MutationClass = "AST_REFACTOR"
	IntentEvolution MutationClass = "INTENT_EVOLUTION"
	BugFix          MutationClass = "BUG_FIX"
	Documentation   MutationClass = "DOCUMENTATION"
)

// validClasses is the closed set accepted by Resolve's explicit argument.
var validClasses = map[MutationClass]struct{}{
	ASTRefactor:     {},
	IntentEvolution: {},
	BugFix:          {},
	Documentation:   {},
}

// IsValid reports whether class names one of the fixed mutation classes.
func IsValid(class MutationClass) bool {
	_, ok := validClasses[class]
	return ok
}

var (
	blockCommentRe = regexp.MustCompile(`/\*[\s\S]*?\*/`)
	lineCommentRe  = regexp.MustCompile(`//[^\n]*`)
	docAsteriskRe  = regexp.MustCompile(`(?m)^[ \t]*\*[ \t]?`)

	bugFixWords    = regexp.MustCompile(`(?i)fix(e[ds])?|bug|issue|repair|patch`)
	bugFixSymptoms = regexp.MustCompile(`(?i)undefined|null|error|exception|crash`)
	bugFixAssert   = regexp.MustCompile(`(?i)should|expected|actual|assert`)
)

// stripComments removes line comments, block comments, and doc-block
// asterisk line prefixes, then normalises whitespace so that purely
// cosmetic differences do not defeat equality comparison.
func stripComments(s string) string {
	s = blockCommentRe.ReplaceAllString(s, "")
	s = lineCommentRe.ReplaceAllString(s, "")
	s = docAsteriskRe.ReplaceAllString(s, "")
	return normalizeWhitespace(s)
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, "\n")
}

// multisetDiff returns the lines present in newLines in excess of their
// multiplicity in oldLines (added), and the lines present in oldLines in
// excess of their multiplicity in newLines (removed). Order within each
// slice follows the source's line order; multiplicities, not identity sets,
// drive the comparison.
func multisetDiff(oldLines, newLines []string) (added, removed []string) {
	oldCount := make(map[string]int, len(oldLines))
	for _, l := range oldLines {
		oldCount[l]++
	}
	newCount := make(map[string]int, len(newLines))
	for _, l := range newLines {
		newCount[l]++
	}

	seenNew := make(map[string]int, len(newLines))
	for _, l := range newLines {
		seenNew[l]++
		if seenNew[l] > oldCount[l] {
			added = append(added, l)
		}
	}

	seenOld := make(map[string]int, len(oldLines))
	for _, l := range oldLines {
		seenOld[l]++
		if seenOld[l] > newCount[l] {
			removed = append(removed, l)
		}
	}

	return added, removed
}

// Classify categorises the transition from old to new content using the
// layered heuristics, in this exact order:
//
//  1. Identical content is DOCUMENTATION.
//  2. Content that differs only in comments/doc-block prefixes is
//     DOCUMENTATION.
//  3. A line-diff that matches bug/defect vocabulary is BUG_FIX.
//  4. A size delta exceeding 20% of the old content's length is
//     INTENT_EVOLUTION.
//  5. Otherwise, AST_REFACTOR.
func Classify(old, new string) MutationClass {
	if old == new {
		return Documentation
	}

	if stripComments(old) == stripComments(new) {
		return Documentation
	}

	oldLines := strings.Split(old, "\n")
	newLines := strings.Split(new, "\n")
	added, removed := multisetDiff(oldLines, newLines)
	diff := "+" + strings.Join(added, "\n") + "\n-" + strings.Join(removed, "\n")

	if bugFixWords.MatchString(diff) || bugFixSymptoms.MatchString(diff) || bugFixAssert.MatchString(diff) {
		return BugFix
	}

	oldLen := len(old)
	newLen := len(new)
	denom := oldLen
	if denom == 0 {
		denom = 1
	}
	delta := newLen - oldLen
	if delta < 0 {
		delta = -delta
	}
	if float64(delta)/float64(denom) > 0.20 {
		return IntentEvolution
	}

	return ASTRefactor
}

// Resolve returns explicit if it names a valid mutation class; otherwise it
// falls back to Classify(old, new).
func Resolve(explicit MutationClass, old, new string) MutationClass {
	if IsValid(explicit) {
		return explicit
	}
	return Classify(old, new)
}
