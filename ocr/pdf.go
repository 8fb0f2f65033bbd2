package ocr

import (
	"bytes"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/go-fitz"
	"golang.org/x/sync/errgroup"
)

// IsPDF reports whether data looks like a PDF document.
func IsPDF(data []byte) bool {
	return mimetype.Detect(data).Is("application/pdf")
}

// RasterizePDF renders the pages of a PDF to images, in page order. A
// positive limitPages renders at most that many leading pages.
func RasterizePDF(data []byte, limitPages int) ([]image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	totalPages := doc.NumPage()
	if limitPages > 0 && limitPages < totalPages {
		totalPages = limitPages
	}
	log.WithField("pages", totalPages).Debug("Rasterizing PDF")

	images := make([]image.Image, totalPages)
	var mu sync.Mutex
	var g errgroup.Group
	for n := 0; n < totalPages; n++ {
		g.Go(func() error {
			// libmupdf is not thread-safe
			mu.Lock()
			img, err := doc.Image(n)
			mu.Unlock()
			if err != nil {
				return fmt.Errorf("render page %d: %w", n+1, err)
			}
			images[n] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// LoadPage decodes the page to annotate. For a PDF the first page is
// rasterized; the returned bytes are then that raster as PNG so a
// recognizer sees exactly the pixels being annotated. Images keep their
// stored pixel layout: EXIF orientation is ignored because word boxes refer
// to the raw pixels.
func LoadPage(content []byte) (image.Image, []byte, error) {
	if IsPDF(content) {
		pages, err := RasterizePDF(content, 1)
		if err != nil {
			return nil, nil, err
		}
		if len(pages) == 0 {
			return nil, nil, fmt.Errorf("pdf has no pages")
		}
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, pages[0], imaging.PNG); err != nil {
			return nil, nil, fmt.Errorf("encode pdf page: %w", err)
		}
		return pages[0], buf.Bytes(), nil
	}

	img, err := imaging.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, nil, fmt.Errorf("decode image: %w", err)
	}
	return img, content, nil
}
