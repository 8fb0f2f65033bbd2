// Package wordindex provides an ordered, read-only view over recognized words
// with exact and case-insensitive lookups.
package wordindex

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Index is an ordered view over a list of recognized words. The input order
// is preserved and nothing is dropped.
type Index struct {
	words []RecognizedWord
}

// Build creates an Index over words. The slice is copied so later changes by
// the caller do not leak into the index.
func Build(words []RecognizedWord) *Index {
	cp := make([]RecognizedWord, len(words))
	copy(cp, words)
	return &Index{words: cp}
}

// Len returns the number of indexed words.
func (ix *Index) Len() int { return len(ix.words) }

// At returns the word at position i.
func (ix *Index) At(i int) RecognizedWord { return ix.words[i] }

// Words returns a copy of the indexed words in original order.
func (ix *Index) Words() []RecognizedWord {
	cp := make([]RecognizedWord, len(ix.words))
	copy(cp, ix.words)
	return cp
}

// FindByText returns every word whose text equals target, in original order.
// Comparison trims surrounding whitespace and, unless caseSensitive is set,
// folds case.
func (ix *Index) FindByText(target string, caseSensitive bool) []RecognizedWord {
	want := matchKey(target, caseSensitive)
	matches := []RecognizedWord{}
	for _, w := range ix.words {
		if matchKey(w.Text, caseSensitive) == want {
			matches = append(matches, w)
		}
	}
	return matches
}

// FindRange returns the contiguous run starting at the first occurrence of
// startText and ending at the first occurrence of endText at or after it,
// both inclusive. Matching is case-insensitive. The result is empty when
// either end is missing.
func (ix *Index) FindRange(startText, endText string) []RecognizedWord {
	start := ix.indexFrom(0, startText)
	if start < 0 {
		return []RecognizedWord{}
	}
	end := ix.indexFrom(start, endText)
	if end < 0 {
		return []RecognizedWord{}
	}
	out := make([]RecognizedWord, end-start+1)
	copy(out, ix.words[start:end+1])
	return out
}

func (ix *Index) indexFrom(from int, text string) int {
	want := matchKey(text, false)
	for i := from; i < len(ix.words); i++ {
		if matchKey(ix.words[i].Text, false) == want {
			return i
		}
	}
	return -1
}

func matchKey(s string, caseSensitive bool) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	if caseSensitive {
		return s
	}
	// cases.Caser is stateful, so one per call.
	return cases.Fold().String(s)
}
