package ocr

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"composition-corrector/wordindex"

	"github.com/gardar/ocrchestra/pkg/hocr"
	"golang.org/x/net/html"
)

// ParseHOCR reads hOCR markup into pages. Elements are recognized by their
// class (ocr_page, ocr_carea, ocr_par, ocr_line and its variants,
// ocrx_word); bbox, x_wconf and ppageno come from the title attribute.
func ParseHOCR(r io.Reader) ([]hocr.Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse hOCR: %w", err)
	}

	var pages []hocr.Page
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if hasClass(n, "ocr_page") {
			pages = append(pages, parsePage(n, len(pages)+1))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(pages) == 0 {
		return nil, fmt.Errorf("parse hOCR: no ocr_page element found")
	}
	return pages, nil
}

// WordsFromHOCRPage flattens a page into recognized words in document order.
// Words without a usable bounding box are dropped.
func WordsFromHOCRPage(page hocr.Page) []wordindex.RecognizedWord {
	var out []wordindex.RecognizedWord
	add := func(words []hocr.Word) {
		for _, w := range words {
			text := strings.TrimSpace(w.Text)
			if text == "" || w.BBox.X2 <= w.BBox.X1 || w.BBox.Y2 <= w.BBox.Y1 {
				continue
			}
			out = append(out, wordindex.RecognizedWord{
				Text:        text,
				Confidence:  w.Confidence,
				BoundingBox: wordindex.BoxFromCorners(w.BBox.X1, w.BBox.Y1, w.BBox.X2, w.BBox.Y2),
			})
		}
	}
	lines := func(ls []hocr.Line) {
		for _, l := range ls {
			add(l.Words)
		}
	}
	paragraphs := func(ps []hocr.Paragraph) {
		for _, p := range ps {
			lines(p.Lines)
			add(p.Words)
		}
	}

	for _, a := range page.Areas {
		paragraphs(a.Paragraphs)
		lines(a.Lines)
		add(a.Words)
	}
	paragraphs(page.Paragraphs)
	lines(page.Lines)
	return out
}

func parsePage(n *html.Node, ordinal int) hocr.Page {
	props := titleProps(n)
	page := hocr.Page{
		ID:         attr(n, "id"),
		Title:      attr(n, "title"),
		PageNumber: ordinal,
		Lang:       attr(n, "lang"),
		BBox:       bboxProp(props),
		Metadata:   map[string]string{},
	}
	if v, ok := props["ppageno"]; ok {
		if num, err := strconv.Atoi(v); err == nil {
			page.PageNumber = num + 1
		}
	}
	if v, ok := props["image"]; ok {
		page.ImageName = strings.Trim(v, `"`)
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case hasClass(c, "ocr_carea"):
				page.Areas = append(page.Areas, parseArea(c))
			case hasClass(c, "ocr_par"):
				page.Paragraphs = append(page.Paragraphs, parseParagraph(c))
			case isLine(c):
				page.Lines = append(page.Lines, parseLine(c))
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return page
}

func parseArea(n *html.Node) hocr.Area {
	area := hocr.Area{ID: attr(n, "id"), Lang: attr(n, "lang"), BBox: bboxProp(titleProps(n))}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case hasClass(c, "ocr_par"):
				area.Paragraphs = append(area.Paragraphs, parseParagraph(c))
			case isLine(c):
				area.Lines = append(area.Lines, parseLine(c))
			case hasClass(c, "ocrx_word"):
				area.Words = append(area.Words, parseWord(c))
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return area
}

func parseParagraph(n *html.Node) hocr.Paragraph {
	par := hocr.Paragraph{ID: attr(n, "id"), Lang: attr(n, "lang"), BBox: bboxProp(titleProps(n))}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case isLine(c):
				par.Lines = append(par.Lines, parseLine(c))
			case hasClass(c, "ocrx_word"):
				par.Words = append(par.Words, parseWord(c))
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return par
}

func parseLine(n *html.Node) hocr.Line {
	props := titleProps(n)
	line := hocr.Line{
		ID:       attr(n, "id"),
		Lang:     attr(n, "lang"),
		BBox:     bboxProp(props),
		Baseline: props["baseline"],
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if hasClass(c, "ocrx_word") {
				line.Words = append(line.Words, parseWord(c))
				continue
			}
			walk(c)
		}
	}
	walk(n)
	return line
}

func parseWord(n *html.Node) hocr.Word {
	props := titleProps(n)
	word := hocr.Word{
		ID:   attr(n, "id"),
		Text: strings.TrimSpace(nodeText(n)),
		BBox: bboxProp(props),
		Lang: attr(n, "lang"),
	}
	if v, ok := props["x_wconf"]; ok {
		if conf, err := strconv.ParseFloat(v, 64); err == nil {
			word.Confidence = conf
		}
	}
	return word
}

func isLine(n *html.Node) bool {
	for _, class := range []string{"ocr_line", "ocr_textfloat", "ocr_header", "ocr_caption"} {
		if hasClass(n, class) {
			return true
		}
	}
	return false
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// titleProps splits an hOCR title such as
// "bbox 10 20 30 40; x_wconf 91" into property name and value.
func titleProps(n *html.Node) map[string]string {
	props := map[string]string{}
	for _, part := range strings.Split(attr(n, "title"), ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, " ")
		props[name] = strings.TrimSpace(value)
	}
	return props
}

func bboxProp(props map[string]string) hocr.BoundingBox {
	fields := strings.Fields(props["bbox"])
	if len(fields) != 4 {
		return hocr.BoundingBox{}
	}
	var v [4]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return hocr.BoundingBox{}
		}
		v[i] = n
	}
	return hocr.NewBoundingBox(v[0], v[1], v[2], v[3])
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
