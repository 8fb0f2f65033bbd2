package annotation

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"composition-corrector/wordindex"

	"github.com/disintegration/imaging"
)

// Canvas is a working copy of a page image that marks are drawn on.
type Canvas struct {
	img *image.NRGBA
}

// NewCanvas copies src into a fresh canvas; src itself is never written.
func NewCanvas(src image.Image) *Canvas {
	return &Canvas{img: imaging.Clone(src)}
}

// Image returns the canvas pixels.
func (c *Canvas) Image() *image.NRGBA { return c.img }

// Bounds returns the canvas bounds.
func (c *Canvas) Bounds() image.Rectangle { return c.img.Bounds() }

func (c *Canvas) set(x, y int, col color.RGBA) {
	if image.Pt(x, y).In(c.img.Rect) {
		c.img.Set(x, y, col)
	}
}

// dot stamps a square brush of the given width centred on (x, y).
func (c *Canvas) dot(x, y, width int, col color.RGBA) {
	if width < 1 {
		width = 1
	}
	lo := -(width - 1) / 2
	for dy := lo; dy < lo+width; dy++ {
		for dx := lo; dx < lo+width; dx++ {
			c.set(x+dx, y+dy, col)
		}
	}
}

// Line draws a straight segment with Bresenham's algorithm.
func (c *Canvas) Line(from, to image.Point, width int, col color.RGBA) {
	x0, y0, x1, y1 := from.X, from.Y, to.X, to.Y
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		c.dot(x0, y0, width, col)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// Circle draws a ring of the given stroke width.
func (c *Canvas) Circle(center image.Point, radius, width int, col color.RGBA) {
	half := float64(max(width, 1)) / 2
	outer := int(math.Ceil(float64(radius) + half))
	for y := -outer; y <= outer; y++ {
		for x := -outer; x <= outer; x++ {
			d := math.Hypot(float64(x), float64(y))
			if math.Abs(d-float64(radius)) <= half {
				c.set(center.X+x, center.Y+y, col)
			}
		}
	}
}

// Rect draws the outline of r.
func (c *Canvas) Rect(r image.Rectangle, width int, col color.RGBA) {
	x1, y1 := r.Max.X-1, r.Max.Y-1
	c.Line(r.Min, image.Pt(x1, r.Min.Y), width, col)
	c.Line(image.Pt(x1, r.Min.Y), image.Pt(x1, y1), width, col)
	c.Line(image.Pt(x1, y1), image.Pt(r.Min.X, y1), width, col)
	c.Line(image.Pt(r.Min.X, y1), r.Min, width, col)
}

// Fill paints r with an opaque colour.
func (c *Canvas) Fill(r image.Rectangle, col color.RGBA) {
	draw.Draw(c.img, r.Intersect(c.img.Rect), image.NewUniform(col), image.Point{}, draw.Src)
}

// Blend paints r with col mixed over the existing pixels at the given
// opacity.
func (c *Canvas) Blend(r image.Rectangle, col color.RGBA, opacity float64) {
	r = r.Intersect(c.img.Rect)
	if r.Empty() {
		return
	}
	patch := imaging.New(r.Dx(), r.Dy(), col)
	c.img = imaging.Overlay(c.img, patch, r.Min, opacity)
}

// Draw renders style's shape against box and returns the canvas for
// chaining. Boxes are in canvas pixel coordinates.
func (c *Canvas) Draw(box wordindex.BoundingBox, style Style) *Canvas {
	switch style.Shape {
	case ShapeCircle:
		radius := max(box.Width, box.Height)/2 + 5
		c.Circle(image.Pt(box.CenterX(), box.CenterY()), radius, style.Stroke, style.Color)
	case ShapeUnderline:
		y := box.Y2() + 2
		c.Line(image.Pt(box.Left, y), image.Pt(box.X2(), y), style.Stroke, style.Color)
	case ShapeStrikethrough:
		y := box.CenterY()
		c.Line(image.Pt(box.Left, y), image.Pt(box.X2(), y), style.Stroke, style.Color)
	case ShapeHighlight:
		r := image.Rect(box.Left-2, box.Top-2, box.X2()+2, box.Y2()+2)
		c.Blend(r, style.Color, 0.3)
		c.Rect(r, style.Stroke, style.Color)
	case ShapeCaret:
		x := box.Left - 10
		c.Line(image.Pt(x, box.Y2()), image.Pt(x-5, box.Top), style.Stroke, style.Color)
		c.Line(image.Pt(x, box.Y2()), image.Pt(x+5, box.Top), style.Stroke, style.Color)
	default:
		// Out-of-range kinds are drawn like the default spelling style.
		return c.Draw(box, Style{Color: style.Color, Shape: ShapeCircle, Stroke: style.Stroke})
	}
	return c
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
