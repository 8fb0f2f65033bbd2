package wordindex

import (
	"fmt"
	"image"
	"math"
)

// BoundingBox is an axis-aligned rectangle in canvas pixel coordinates.
type BoundingBox struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// X2 returns the right edge of the box.
func (b BoundingBox) X2() int { return b.Left + b.Width }

// Y2 returns the bottom edge of the box.
func (b BoundingBox) Y2() int { return b.Top + b.Height }

// CenterX returns the horizontal center, rounded down.
func (b BoundingBox) CenterX() int { return b.Left + b.Width/2 }

// CenterY returns the vertical center, rounded down.
func (b BoundingBox) CenterY() int { return b.Top + b.Height/2 }

// Rect converts the box to an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.X2(), b.Y2())
}

// BoxFromCorners builds a box from two opposite corners, in any order.
func BoxFromCorners(x1, y1, x2, y2 float64) BoundingBox {
	left, right := math.Min(x1, x2), math.Max(x1, x2)
	top, bottom := math.Min(y1, y2), math.Max(y1, y2)
	return BoundingBox{
		Left:   int(math.Round(left)),
		Top:    int(math.Round(top)),
		Width:  int(math.Round(right - left)),
		Height: int(math.Round(bottom - top)),
	}
}

// BoxFromPoints returns the smallest box enclosing all points given as
// alternating x, y coordinates (a polygon as returned by most recognizers).
func BoxFromPoints(coords []float64) (BoundingBox, bool) {
	if len(coords) < 4 || len(coords)%2 != 0 {
		return BoundingBox{}, false
	}
	minX, minY := math.MaxFloat64, math.MaxFloat64
	maxX, maxY := -math.MaxFloat64, -math.MaxFloat64
	for i := 0; i < len(coords); i += 2 {
		minX = math.Min(minX, coords[i])
		maxX = math.Max(maxX, coords[i])
		minY = math.Min(minY, coords[i+1])
		maxY = math.Max(maxY, coords[i+1])
	}
	return BoxFromCorners(minX, minY, maxX, maxY), true
}

// RecognizedWord is one word as produced by the upstream recognizer.
// It is treated as read-only once created.
type RecognizedWord struct {
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"` // 0-100
	BoundingBox BoundingBox `json:"boundingBox"`
}

// InputError describes a malformed RecognizedWord. The word is skipped from
// rendering; it never aborts processing of the remaining words.
type InputError struct {
	Index  int
	Text   string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid word %d (%q): %s", e.Index, e.Text, e.Reason)
}

// Validate reports whether the word can be rendered. index is only used to
// annotate the returned error.
func (w RecognizedWord) Validate(index int) error {
	switch {
	case w.BoundingBox.Width < 0 || w.BoundingBox.Height < 0:
		return &InputError{Index: index, Text: w.Text, Reason: "negative bounding box size"}
	case w.BoundingBox.Width == 0 && w.BoundingBox.Height == 0:
		return &InputError{Index: index, Text: w.Text, Reason: "missing bounding box"}
	case math.IsNaN(w.Confidence) || w.Confidence < 0 || w.Confidence > 100:
		return &InputError{Index: index, Text: w.Text, Reason: fmt.Sprintf("confidence %v outside 0-100", w.Confidence)}
	}
	return nil
}
