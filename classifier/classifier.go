// Package classifier flags recognized words as known or possible spelling
// errors against a fixed correction table and vocabulary.
package classifier

import (
	"fmt"

	"composition-corrector/wordindex"
)

// Category is the outcome of classifying one word.
type Category int

const (
	Clean Category = iota
	KnownError
	PossibleError
)

var categoryNames = map[Category]string{
	Clean:         "clean",
	KnownError:    "known_error",
	PossibleError: "possible_error",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// MarshalText encodes the category by name.
func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText decodes a category name.
func (c *Category) UnmarshalText(text []byte) error {
	for cat, name := range categoryNames {
		if name == string(text) {
			*c = cat
			return nil
		}
	}
	return fmt.Errorf("unknown category %q", text)
}

// Tier is how sure the classifier is about a flagged word.
type Tier int

const (
	TierNone Tier = iota
	TierHigh
	TierMedium
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	default:
		return ""
	}
}

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText decodes a tier name.
func (t *Tier) UnmarshalText(text []byte) error {
	switch string(text) {
	case "high":
		*t = TierHigh
	case "medium":
		*t = TierMedium
	case "":
		*t = TierNone
	default:
		return fmt.Errorf("unknown tier %q", text)
	}
	return nil
}

// ClassifiedWord is a recognized word together with its verdict.
type ClassifiedWord struct {
	Word       wordindex.RecognizedWord `json:"word"`
	Token      string                   `json:"token"`
	Category   Category                 `json:"category"`
	Suggestion string                   `json:"suggestion,omitempty"`
	Tier       Tier                     `json:"tier,omitempty"`
}

// Flagged reports whether the word is a known or possible error.
func (cw ClassifiedWord) Flagged() bool { return cw.Category != Clean }

const (
	DefaultThreshold      = 0.70
	DefaultMinTokenLength = 2
)

// Classifier decides the category of each word. It holds no mutable state
// and is safe for concurrent use.
type Classifier struct {
	ref        *ReferenceData
	similarity Similarity
	threshold  float64
	minLength  int
}

// Option configures a Classifier.
type Option func(*Classifier) error

// WithSimilarity replaces the fuzzy matching strategy.
func WithSimilarity(s Similarity) Option {
	return func(c *Classifier) error {
		if s == nil {
			return fmt.Errorf("similarity must not be nil")
		}
		c.similarity = s
		return nil
	}
}

// WithThreshold sets the minimum similarity for a possible error.
func WithThreshold(threshold float64) Option {
	return func(c *Classifier) error {
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("threshold %v outside [0,1]", threshold)
		}
		c.threshold = threshold
		return nil
	}
}

// WithMinTokenLength sets the shortest normalized token that is judged.
func WithMinTokenLength(n int) Option {
	return func(c *Classifier) error {
		if n < 1 {
			return fmt.Errorf("minimum token length must be positive, got %d", n)
		}
		c.minLength = n
		return nil
	}
}

// New creates a classifier over ref. A nil ref is a ConfigurationError.
func New(ref *ReferenceData, opts ...Option) (*Classifier, error) {
	if ref == nil {
		return nil, &ConfigurationError{Source: "classifier", Err: fmt.Errorf("reference data is required")}
	}
	c := &Classifier{
		ref:        ref,
		similarity: DefaultJaroWinkler,
		threshold:  DefaultThreshold,
		minLength:  DefaultMinTokenLength,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Threshold returns the configured similarity threshold.
func (c *Classifier) Threshold() float64 { return c.threshold }

// Classify resolves a word to exactly one category. It never fails.
func (c *Classifier) Classify(word wordindex.RecognizedWord) ClassifiedWord {
	out := ClassifiedWord{Word: word, Token: Normalize(word.Text)}

	if len([]rune(out.Token)) < c.minLength {
		return out
	}

	if correction, ok := c.ref.Correction(out.Token); ok {
		out.Category = KnownError
		out.Tier = TierHigh
		out.Suggestion = correction
		return out
	}

	if c.ref.Known(out.Token) {
		return out
	}

	if candidate, ok := c.bestMatch(out.Token); ok {
		out.Category = PossibleError
		out.Tier = TierMedium
		out.Suggestion = candidate
	}
	return out
}

// ClassifyAll classifies every word, preserving order.
func (c *Classifier) ClassifyAll(words []wordindex.RecognizedWord) []ClassifiedWord {
	out := make([]ClassifiedWord, len(words))
	for i, w := range words {
		out[i] = c.Classify(w)
	}
	return out
}

// bestMatch returns the first candidate, in pool order, with the highest
// similarity at or above the threshold.
func (c *Classifier) bestMatch(token string) (string, bool) {
	best, bestScore := "", -1.0
	for _, candidate := range c.ref.Candidates() {
		score := c.similarity.Similarity(token, candidate)
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	if best == "" || bestScore < c.threshold {
		return "", false
	}
	return best, true
}
