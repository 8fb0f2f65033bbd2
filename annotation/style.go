// Package annotation draws correction marks on a page image and lays out
// margin comments that point back at the marked words.
package annotation

import (
	"fmt"
	"image/color"
	"strings"

	"composition-corrector/classifier"

	"github.com/lucasb-eyer/go-colorful"
)

// ShapeKind selects the mark drawn over a word.
type ShapeKind int

const (
	ShapeCircle ShapeKind = iota
	ShapeUnderline
	ShapeStrikethrough
	ShapeHighlight
	ShapeCaret
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeCircle:
		return "circle"
	case ShapeUnderline:
		return "underline"
	case ShapeStrikethrough:
		return "strikethrough"
	case ShapeHighlight:
		return "highlight"
	case ShapeCaret:
		return "caret"
	}
	return fmt.Sprintf("shape(%d)", int(k))
}

// ParseShapeKind is the inverse of ShapeKind.String.
func ParseShapeKind(s string) (ShapeKind, error) {
	for k := ShapeCircle; k <= ShapeCaret; k++ {
		if k.String() == strings.ToLower(strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown shape %q", s)
}

// Feedback categories known to the catalog.
const (
	SpellingError = "spelling_error"
	GrammarError  = "grammar_error"
	Suggestion    = "suggestion"
	Deletion      = "deletion"
	Insertion     = "insertion"
)

// Style is how one feedback category is drawn.
type Style struct {
	Color  color.RGBA
	Shape  ShapeKind
	Stroke int
}

var (
	red    = color.RGBA{R: 255, A: 255}
	orange = color.RGBA{R: 255, G: 165, A: 255}
	green  = color.RGBA{G: 128, A: 255}
)

var defaultStyles = map[string]Style{
	SpellingError: {Color: red, Shape: ShapeCircle, Stroke: 2},
	GrammarError:  {Color: orange, Shape: ShapeUnderline, Stroke: 3},
	Suggestion:    {Color: green, Shape: ShapeHighlight, Stroke: 2},
	Deletion:      {Color: red, Shape: ShapeStrikethrough, Stroke: 2},
	Insertion:     {Color: green, Shape: ShapeCaret, Stroke: 2},
}

// Catalog maps feedback categories to styles. A Catalog is read-only once
// built and may be shared.
type Catalog struct {
	styles map[string]Style
}

// DefaultCatalog returns the built-in styles.
func DefaultCatalog() *Catalog {
	styles := make(map[string]Style, len(defaultStyles))
	for k, v := range defaultStyles {
		styles[k] = v
	}
	return &Catalog{styles: styles}
}

// StyleOverride replaces parts of a category's style. Empty fields keep the
// default.
type StyleOverride struct {
	Color  string `json:"color,omitempty"` // hex, e.g. "#ff8800"
	Shape  string `json:"shape,omitempty"`
	Stroke int    `json:"stroke,omitempty"`
}

// WithOverrides returns a copy of c with the overrides applied. New
// categories may be introduced this way.
func (c *Catalog) WithOverrides(overrides map[string]StyleOverride) (*Catalog, error) {
	out := &Catalog{styles: make(map[string]Style, len(c.styles)+len(overrides))}
	for k, v := range c.styles {
		out.styles[k] = v
	}
	for category, o := range overrides {
		style, ok := out.styles[category]
		if !ok {
			style = out.styles[SpellingError]
		}
		if o.Color != "" {
			parsed, err := colorful.Hex(o.Color)
			if err != nil {
				return nil, fmt.Errorf("style %s: %w", category, err)
			}
			r, g, b := parsed.RGB255()
			style.Color = color.RGBA{R: r, G: g, B: b, A: 255}
		}
		if o.Shape != "" {
			kind, err := ParseShapeKind(o.Shape)
			if err != nil {
				return nil, fmt.Errorf("style %s: %w", category, err)
			}
			style.Shape = kind
		}
		if o.Stroke < 0 {
			return nil, fmt.Errorf("style %s: negative stroke %d", category, o.Stroke)
		}
		if o.Stroke > 0 {
			style.Stroke = o.Stroke
		}
		out.styles[category] = style
	}
	return out, nil
}

// StyleFor returns the style of category. Unknown categories get the
// spelling error style so rendering never aborts on an unexpected label.
func (c *Catalog) StyleFor(category string) Style {
	if style, ok := c.styles[category]; ok {
		return style
	}
	return c.styles[SpellingError]
}

// CategoryForTier maps a classifier tier to the category used to draw it:
// confirmed errors are circled, uncertain ones underlined.
func CategoryForTier(tier classifier.Tier) string {
	switch tier {
	case classifier.TierMedium:
		return GrammarError
	default:
		return SpellingError
	}
}

// StyleForTier is StyleFor(CategoryForTier(tier)).
func (c *Catalog) StyleForTier(tier classifier.Tier) Style {
	return c.StyleFor(CategoryForTier(tier))
}
