package classifier

import (
	"bufio"
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

//go:embed data/corrections.json data/vocabulary.txt
var defaultData embed.FS

// ConfigurationError reports reference data that could not be loaded or
// parsed. It is fatal at pipeline start.
type ConfigurationError struct {
	Source string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("reference data %s: %v", e.Source, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Normalize strips every non-letter and lowercases the rest. Compatibility
// decomposition folds OCR ligatures such as "ﬁ" into plain letters first.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range norm.NFKC.String(s) {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// ReferenceData is the immutable correction table and vocabulary shared by
// classifiers. Build it once with NewReferenceData or LoadReferenceData.
type ReferenceData struct {
	corrections map[string]string
	known       map[string]struct{}
	pool        []string
}

// NewReferenceData normalizes the correction keys and vocabulary and freezes
// them. The candidate pool is the vocabulary plus every correction target,
// deduplicated and sorted so matching is deterministic.
func NewReferenceData(corrections map[string]string, vocabulary []string) (*ReferenceData, error) {
	ref := &ReferenceData{
		corrections: make(map[string]string, len(corrections)),
		known:       make(map[string]struct{}, len(vocabulary)+len(corrections)),
	}

	misspellings := make([]string, 0, len(corrections))
	for misspelling := range corrections {
		misspellings = append(misspellings, misspelling)
	}
	sort.Strings(misspellings)

	for _, misspelling := range misspellings {
		correction := corrections[misspelling]
		key := Normalize(misspelling)
		if key == "" {
			return nil, &ConfigurationError{Source: "corrections", Err: fmt.Errorf("key %q has no letters", misspelling)}
		}
		if strings.TrimSpace(correction) == "" {
			return nil, &ConfigurationError{Source: "corrections", Err: fmt.Errorf("empty correction for %q", misspelling)}
		}
		if prev, ok := ref.corrections[key]; ok && prev != correction {
			return nil, &ConfigurationError{Source: "corrections", Err: fmt.Errorf("key %q collides with another entry normalizing to %q (%q vs %q)", misspelling, key, prev, correction)}
		}
		ref.corrections[key] = correction
	}

	seen := make(map[string]struct{})
	addCandidate := func(candidate string) {
		if _, ok := seen[candidate]; ok {
			return
		}
		seen[candidate] = struct{}{}
		ref.pool = append(ref.pool, candidate)
	}

	for _, word := range vocabulary {
		token := Normalize(word)
		if token == "" {
			continue
		}
		ref.known[token] = struct{}{}
		addCandidate(token)
	}
	for _, correction := range ref.corrections {
		if token := Normalize(correction); token != "" {
			ref.known[token] = struct{}{}
		}
		addCandidate(strings.ToLower(strings.TrimSpace(correction)))
	}

	if len(ref.pool) == 0 {
		return nil, &ConfigurationError{Source: "vocabulary", Err: fmt.Errorf("no candidate words")}
	}
	sort.Strings(ref.pool)
	return ref, nil
}

// Correction returns the mapped correction for a normalized token.
func (r *ReferenceData) Correction(token string) (string, bool) {
	c, ok := r.corrections[token]
	return c, ok
}

// Known reports whether the normalized token is in the vocabulary or is the
// normalized form of a correction target.
func (r *ReferenceData) Known(token string) bool {
	_, ok := r.known[token]
	return ok
}

// Candidates returns the sorted fuzzy-match pool. The slice must not be
// modified.
func (r *ReferenceData) Candidates() []string { return r.pool }

// CorrectionCount returns the number of correction table entries.
func (r *ReferenceData) CorrectionCount() int { return len(r.corrections) }

// DefaultReferenceData returns the embedded correction table and word list.
func DefaultReferenceData() (*ReferenceData, error) {
	return LoadReferenceData("", "")
}

// LoadReferenceData reads the correction table and vocabulary from disk. An
// empty path selects the embedded default for that half.
func LoadReferenceData(correctionsPath, vocabularyPath string) (*ReferenceData, error) {
	corrections, err := loadCorrections(correctionsPath)
	if err != nil {
		return nil, err
	}
	vocabulary, err := loadVocabulary(vocabularyPath)
	if err != nil {
		return nil, err
	}
	return NewReferenceData(corrections, vocabulary)
}

func readSource(path, embedded string) ([]byte, string, error) {
	if path == "" {
		data, err := defaultData.ReadFile(embedded)
		return data, embedded, err
	}
	data, err := os.ReadFile(path)
	return data, path, err
}

func loadCorrections(path string) (map[string]string, error) {
	data, source, err := readSource(path, "data/corrections.json")
	if err != nil {
		return nil, &ConfigurationError{Source: source, Err: err}
	}
	var corrections map[string]string
	if err := json.Unmarshal(data, &corrections); err != nil {
		return nil, &ConfigurationError{Source: source, Err: fmt.Errorf("parse corrections: %w", err)}
	}
	return corrections, nil
}

// loadVocabulary accepts a JSON array of strings or plain text with
// whitespace-separated words and '#' comments.
func loadVocabulary(path string) ([]string, error) {
	data, source, err := readSource(path, "data/vocabulary.txt")
	if err != nil {
		return nil, &ConfigurationError{Source: source, Err: err}
	}

	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		var words []string
		if err := json.Unmarshal(trimmed, &words); err != nil {
			return nil, &ConfigurationError{Source: source, Err: fmt.Errorf("parse vocabulary: %w", err)}
		}
		return words, nil
	}

	var words []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		words = append(words, strings.Fields(line)...)
	}
	if err := scanner.Err(); err != nil {
		return nil, &ConfigurationError{Source: source, Err: err}
	}
	return words, nil
}
