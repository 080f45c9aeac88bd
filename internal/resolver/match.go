package resolver

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxCandidates caps the near-miss list attached to a NotFoundError.
const maxCandidates = 5

// minCandidateScore drops search results that share almost nothing with the title.
const minCandidateScore = 0.5

var folder = cases.Fold()

// foldTitle prepares a title for exact comparison: trimmed, NFC-normalized
// and case-folded. Accents and punctuation are significant.
func foldTitle(s string) string {
	return folder.String(norm.NFC.String(strings.TrimSpace(s)))
}

// sameTitle reports whether a search result text names the requested series.
func sameTitle(title, text string) bool {
	return foldTitle(title) == foldTitle(text)
}

// looseTitle is used only for ranking near misses.
func looseTitle(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, _ := transform.String(t, foldTitle(s))
	return strings.Join(strings.Fields(out), " ")
}

// rankCandidates orders result texts by Jaro-Winkler similarity to title and
// returns the best few. Duplicates are dropped.
func rankCandidates(title string, texts []string) []string {
	type scored struct {
		text  string
		score float32
	}

	want := looseTitle(title)
	seen := make(map[string]bool, len(texts))
	var ranked []scored
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		score := edlib.JaroWinklerSimilarity(want, looseTitle(text))
		if score < minCandidateScore {
			continue
		}
		ranked = append(ranked, scored{text, score})
	}

	slices.SortStableFunc(ranked, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	out := make([]string, 0, min(len(ranked), maxCandidates))
	for _, r := range ranked[:min(len(ranked), maxCandidates)] {
		out = append(out, r.text)
	}
	return out
}
