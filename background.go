package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"composition-corrector/internal/constants"
	"composition-corrector/ocr"
	"composition-corrector/report"

	"golang.org/x/sync/errgroup"
)

// This is our interface, allowing us to enable proper testing
type BackgroundProcessor interface {
	processWatchDir(ctx context.Context) (int, error)
}

var (
	minBackoffDuration = 10 * time.Second
	maxBackoffDuration = time.Hour
	pollingInterval    = 10 * time.Second
)

var pageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true,
	".bmp": true, ".gif": true, ".webp": true, ".pdf": true,
}

// Start our background tasks in a thread
func StartBackgroundTasks(ctx context.Context, app BackgroundProcessor) {
	go func() {
		backoffDuration := minBackoffDuration

		for {
			select {
			case <-ctx.Done():
				log.Infoln("Background tasks shutting down")
				return
			default: // needed to make this non-blocking
			}

			processedCount, err := app.processWatchDir(ctx)
			if err != nil {
				log.Errorf("Error in folder processing: %v", err)
				sleepCtx(ctx, backoffDuration)

				// Exponential backoff logic
				backoffDuration *= 2
				if backoffDuration > maxBackoffDuration {
					log.Warnf("Max backoff duration reached. Using %v", maxBackoffDuration)
					backoffDuration = maxBackoffDuration
				}
			} else {
				// Reset backoff when processing succeeds
				backoffDuration = minBackoffDuration
			}

			// If nothing was processed, pause before next cycle
			if processedCount == 0 {
				sleepCtx(ctx, pollingInterval)
			}
		}
	}()
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// processWatchDir annotates every new page in WATCH_DIR.
func (app *App) processWatchDir(ctx context.Context) (int, error) {
	return app.processFolder(ctx, watchDir, outputDir, batchWorkers, batchImageTimeout)
}

// pendingPages lists the page files of dir that have no annotated output
// yet and can be annotated: they carry a words or hOCR sidecar, or a
// recognizer is configured.
func (app *App) pendingPages(dir, out string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read watch dir: %w", err)
	}

	var pages []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasSuffix(name, constants.AnnotatedSuffix) {
			continue
		}
		if !pageExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		base := strings.TrimSuffix(name, filepath.Ext(name))
		if _, err := os.Stat(filepath.Join(out, base+constants.AnnotatedSuffix)); err == nil {
			continue
		}
		if sidecar(dir, base) == "" && !app.isOcrEnabled() {
			log.Debugf("Skipping %s: no sidecar and OCR disabled", name)
			continue
		}
		pages = append(pages, name)
	}
	return pages, nil
}

// sidecar returns the words (.json) or hOCR (.hocr) file next to a page.
func sidecar(dir, base string) string {
	for _, ext := range []string{".json", ".hocr"} {
		path := filepath.Join(dir, base+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// processFolder annotates the pending pages of dir with bounded parallelism
// and writes the annotated image and a Markdown report for each to out.
// A failing page does not stop the others.
func (app *App) processFolder(ctx context.Context, dir, out string, workers int, timeout time.Duration) (int, error) {
	pages, err := app.pendingPages(dir, out)
	if err != nil {
		return 0, err
	}
	if len(pages) == 0 {
		log.Debugf("No new pages found in %s", dir)
		return 0, nil
	}
	if err := os.MkdirAll(out, os.ModePerm); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}

	log.Debugf("Found %d new pages in %s", len(pages), dir)

	var (
		mu             sync.Mutex
		errs           []error
		processedCount int
	)
	g := new(errgroup.Group)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, name := range pages {
		g.Go(func() error {
			pageCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			err := app.processWatchedPage(pageCtx, dir, out, name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				annotateLogger(name).WithError(err).Error("Failed to annotate watched page")
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return nil
			}
			processedCount++
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return processedCount, fmt.Errorf("one or more errors occurred: %w", errors.Join(errs...))
	}
	return processedCount, nil
}

func (app *App) processWatchedPage(ctx context.Context, dir, out, name string) error {
	base := strings.TrimSuffix(name, filepath.Ext(name))

	content, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	in := AnnotateInput{Source: filepath.Join(dir, name), Title: base, Image: content}

	if path := sidecar(dir, base); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if strings.HasSuffix(path, ".hocr") {
			pages, err := ocr.ParseHOCR(bytes.NewReader(data))
			if err != nil {
				return err
			}
			in.Words = ocr.WordsFromHOCRPage(pages[0])
		} else {
			in.Words, in.Invalid, err = ocr.DecodeWords(bytes.NewReader(data))
			if err != nil {
				return err
			}
		}
		in.HasWords = true
	}

	result, err := app.annotate(ctx, in)
	if err != nil {
		return err
	}

	md, err := report.Markdown(result.Summary)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(out, base+constants.ReportSuffix), []byte(md), 0644); err != nil {
		return err
	}
	// The annotated image is written last: its presence marks the page done.
	return os.WriteFile(filepath.Join(out, base+constants.AnnotatedSuffix), result.PNG, 0644)
}
