package annotation

import (
	"image"
	"image/color"
	"sort"
	"strings"
	"sync"

	"composition-corrector/classifier"
	"composition-corrector/wordindex"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Layout defaults.
const (
	DefaultMarginWidth = 190
	DefaultLineHeight  = 16
	DefaultPadding     = 3
	DefaultFontSize    = 12
)

var labelBackground = color.RGBA{R: 255, G: 255, B: 224, A: 255} // light yellow

// Note is one comment waiting for a place in the margin.
type Note struct {
	Label string
	Box   wordindex.BoundingBox
	Color color.RGBA
}

// MarginComment is a placed note: its label, the point on the word the
// pointer starts from, and the rectangle it occupies in the margin.
type MarginComment struct {
	Label  string
	Anchor image.Point
	Rect   image.Rectangle
	Color  color.RGBA
}

// Placement is the outcome of a layout pass.
type Placement struct {
	Comments []MarginComment
	// Overflow counts comments whose rectangle extends below the canvas.
	Overflow int
}

// MarginEngine places comments in a right-hand margin column so they never
// overlap, and draws them with a pointer line to their word.
type MarginEngine struct {
	MarginWidth int
	LineHeight  int
	Padding     int
	// Gap is the minimum vertical space between stacked comments.
	Gap     int
	catalog *Catalog

	// font.Face implementations cache glyph state and are not safe for
	// concurrent use.
	faceMu sync.Mutex
	face   font.Face
}

// NewMarginEngine returns an engine with the default geometry. The comment
// border colour is taken from catalog by tier.
func NewMarginEngine(catalog *Catalog) *MarginEngine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &MarginEngine{
		MarginWidth: DefaultMarginWidth,
		LineHeight:  DefaultLineHeight,
		Padding:     DefaultPadding,
		Gap:         DefaultLineHeight,
		catalog:     catalog,
		face:        labelFace(),
	}
}

// labelFace loads Go Regular, which covers the arrow glyph; basicfont is the
// fallback.
func labelFace() font.Face {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: DefaultFontSize, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}

// CommentLabel formats the text shown for a flagged word.
func CommentLabel(cw classifier.ClassifiedWord) string {
	label := strings.TrimSpace(cw.Word.Text) + " → " + cw.Suggestion
	if cw.Tier == classifier.TierMedium {
		label += " (?)"
	}
	return label
}

// NotesFor turns the flagged words into notes, coloured by tier.
func (e *MarginEngine) NotesFor(words []classifier.ClassifiedWord) []Note {
	notes := make([]Note, 0, len(words))
	for _, cw := range words {
		if !cw.Flagged() {
			continue
		}
		notes = append(notes, Note{
			Label: CommentLabel(cw),
			Box:   cw.Word.BoundingBox,
			Color: e.catalog.StyleForTier(cw.Tier).Color,
		})
	}
	return notes
}

// Layout places a comment for every flagged word.
func (e *MarginEngine) Layout(words []classifier.ClassifiedWord, canvasWidth, canvasHeight int) Placement {
	return e.LayoutNotes(e.NotesFor(words), canvasWidth, canvasHeight)
}

// column returns the left edge and width of the usable margin column.
func (e *MarginEngine) column(canvasWidth int) (int, int) {
	width := min(e.MarginWidth, canvasWidth)
	return canvasWidth - width, width
}

// stack is the layout accumulator: the lowest y occupied so far.
type stack struct {
	bottom int
	empty  bool
}

func (s stack) place(proposedTop, height, gap int) (int, stack) {
	top := proposedTop
	if !s.empty && top < s.bottom+gap {
		top = s.bottom + gap
	}
	return top, stack{bottom: top + height}
}

// LayoutNotes places notes top to bottom by the vertical centre of their
// word. A comment starts level with its word and is pushed down below the
// previous one when they would collide. Comments running past the bottom of
// the canvas are kept and counted in Overflow.
func (e *MarginEngine) LayoutNotes(notes []Note, canvasWidth, canvasHeight int) Placement {
	ordered := make([]Note, len(notes))
	copy(ordered, notes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Box.CenterY() < ordered[j].Box.CenterY()
	})

	left, width := e.column(canvasWidth)
	height := e.LineHeight + 2*e.Padding

	placement := Placement{Comments: make([]MarginComment, 0, len(ordered))}
	acc := stack{empty: true}
	for _, n := range ordered {
		var top int
		top, acc = acc.place(max(0, n.Box.CenterY()-height/2), height, e.Gap)
		rect := image.Rect(left, top, left+width, top+height)
		if rect.Max.Y > canvasHeight {
			placement.Overflow++
		}
		placement.Comments = append(placement.Comments, MarginComment{
			Label:  n.Label,
			Anchor: image.Pt(n.Box.X2(), n.Box.CenterY()),
			Rect:   rect,
			Color:  n.Color,
		})
	}
	return placement
}

// Render draws each comment box, its label and the pointer line to its word.
func (e *MarginEngine) Render(c *Canvas, comments []MarginComment) *Canvas {
	e.faceMu.Lock()
	defer e.faceMu.Unlock()
	for _, mc := range comments {
		c.Line(mc.Anchor, image.Pt(mc.Rect.Min.X, mc.Rect.Min.Y+mc.Rect.Dy()/2), 1, mc.Color)
		c.Fill(mc.Rect, labelBackground)
		c.Rect(mc.Rect, 1, mc.Color)
		e.drawLabel(c, mc)
	}
	return c
}

func (e *MarginEngine) drawLabel(c *Canvas, mc MarginComment) {
	maxWidth := fixed.I(mc.Rect.Dx() - 2*e.Padding)
	label := e.fit(mc.Label, maxWidth)

	metrics := e.face.Metrics()
	textHeight := (metrics.Ascent + metrics.Descent).Ceil()
	baseline := mc.Rect.Min.Y + (mc.Rect.Dy()-textHeight)/2 + metrics.Ascent.Ceil()

	d := &font.Drawer{
		Dst:  c.Image(),
		Src:  image.NewUniform(mc.Color),
		Face: e.face,
		Dot:  fixed.P(mc.Rect.Min.X+e.Padding, baseline),
	}
	d.DrawString(label)
}

// fit shortens label with an ellipsis until it fits maxWidth.
func (e *MarginEngine) fit(label string, maxWidth fixed.Int26_6) string {
	if font.MeasureString(e.face, label) <= maxWidth {
		return label
	}
	runes := []rune(label)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + "…"
		if font.MeasureString(e.face, candidate) <= maxWidth {
			return candidate
		}
	}
	return ""
}
