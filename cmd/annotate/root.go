package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"composition-corrector/annotation"
	"composition-corrector/classifier"
	"composition-corrector/internal/constants"
	"composition-corrector/ocr"
	"composition-corrector/overlay"
	"composition-corrector/report"
	"composition-corrector/wordindex"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	image       string
	words       string
	hocr        string
	ocrProvider string
	feedback    string
	out         string
	pdf         string
	report      string
	title       string
	corrections string
	vocabulary  string
	threshold   float64
	marginWidth int
	verbose     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "annotate --image page.png (--words words.json | --hocr page.hocr | --ocr-provider name)",
		Short: "Mark spelling errors on a scanned composition page",
		Long: `annotate classifies every recognized word of a page against the correction
table and vocabulary, draws a mark over each misspelling and lists the
suggested corrections in the right margin.

Words come from a JSON words file, an hOCR file, or a recognizer selected
with --ocr-provider (credentials are read from the environment).`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.image, "image", "", "page image or PDF to annotate (required)")
	f.StringVar(&opts.words, "words", "", "recognized words as JSON")
	f.StringVar(&opts.hocr, "hocr", "", "recognized words as hOCR, first page is used")
	f.StringVar(&opts.ocrProvider, "ocr-provider", "", "recognize the page with ios_ocr, azure, google_vision, google_docai or tesseract")
	f.StringVar(&opts.feedback, "feedback", "", "JSON array of reviewer remarks to draw as well")
	f.StringVarP(&opts.out, "out", "o", "", "annotated PNG (default <image>"+constants.AnnotatedSuffix+")")
	f.StringVar(&opts.pdf, "pdf", "", "also write the annotated page as PDF")
	f.StringVar(&opts.report, "report", "", "write a report, format chosen by extension: .md, .html or .xlsx")
	f.StringVar(&opts.title, "title", "", "report title (default image name)")
	f.StringVar(&opts.corrections, "corrections", "", "correction table JSON (default built-in)")
	f.StringVar(&opts.vocabulary, "vocabulary", "", "vocabulary file (default built-in)")
	f.Float64Var(&opts.threshold, "threshold", classifier.DefaultThreshold, "similarity threshold for suggestions")
	f.IntVar(&opts.marginWidth, "margin-width", annotation.DefaultMarginWidth, "width of the comment column in pixels")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	_ = cmd.MarkFlagRequired("image")
	cmd.MarkFlagsMutuallyExclusive("words", "hocr", "ocr-provider")
	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	if opts.verbose {
		log.SetLevel(logrus.DebugLevel)
		ocr.SetLogLevel(logrus.DebugLevel)
		overlay.SetLogLevel(logrus.DebugLevel)
	}
	if opts.words == "" && opts.hocr == "" && opts.ocrProvider == "" {
		return fmt.Errorf("one of --words, --hocr or --ocr-provider is required")
	}

	content, err := os.ReadFile(opts.image)
	if err != nil {
		return err
	}
	page, pageBytes, err := ocr.LoadPage(content)
	if err != nil {
		return err
	}

	words, invalid, err := loadWords(cmd.Context(), opts, pageBytes)
	if err != nil {
		return err
	}
	for _, e := range invalid {
		log.Warn(e.Error())
	}

	var feedback []overlay.Feedback
	if opts.feedback != "" {
		data, err := os.ReadFile(opts.feedback)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &feedback); err != nil {
			return fmt.Errorf("parse feedback %s: %w", opts.feedback, err)
		}
	}

	reference, err := classifier.LoadReferenceData(opts.corrections, opts.vocabulary)
	if err != nil {
		return err
	}
	pipeline, err := overlay.New(reference,
		[]classifier.Option{classifier.WithThreshold(opts.threshold)},
		overlay.WithMarginWidth(opts.marginWidth),
	)
	if err != nil {
		return err
	}

	result, err := pipeline.Annotate(page, words, feedback...)
	if err != nil {
		return err
	}
	if len(invalid) > 0 {
		result.Skipped = append(append([]*wordindex.InputError{}, invalid...), result.Skipped...)
	}

	base := strings.TrimSuffix(filepath.Base(opts.image), filepath.Ext(opts.image))
	out := opts.out
	if out == "" {
		out = filepath.Join(filepath.Dir(opts.image), base+constants.AnnotatedSuffix)
	}
	if err := imaging.Save(result.Image, out); err != nil {
		return fmt.Errorf("save %s: %w", out, err)
	}

	title := opts.title
	if title == "" {
		title = base
	}
	summary := report.Summarize(title, result)

	if opts.report != "" {
		if err := writeReport(opts.report, summary); err != nil {
			return err
		}
	}
	if opts.pdf != "" {
		if err := api.ImportImagesFile([]string{out}, opts.pdf, pdfcpu.DefaultImportConfig(), nil); err != nil {
			return fmt.Errorf("write pdf %s: %w", opts.pdf, err)
		}
	}

	printSummary(cmd.OutOrStdout(), summary, out)
	return nil
}

// loadWords reads the words file or hOCR, or runs the chosen recognizer
// over the page.
func loadWords(ctx context.Context, opts *options, pageBytes []byte) ([]wordindex.RecognizedWord, []*wordindex.InputError, error) {
	switch {
	case opts.words != "":
		data, err := os.ReadFile(opts.words)
		if err != nil {
			return nil, nil, err
		}
		return ocr.DecodeWords(bytes.NewReader(data))
	case opts.hocr != "":
		data, err := os.ReadFile(opts.hocr)
		if err != nil {
			return nil, nil, err
		}
		pages, err := ocr.ParseHOCR(bytes.NewReader(data))
		if err != nil {
			return nil, nil, err
		}
		return ocr.WordsFromHOCRPage(pages[0]), nil, nil
	}

	provider, err := ocr.NewProvider(ocr.ConfigFromEnv(opts.ocrProvider))
	if err != nil {
		return nil, nil, err
	}
	result, err := provider.Recognize(ctx, pageBytes, 1)
	if err != nil {
		return nil, nil, err
	}
	return result.Words, nil, nil
}

func writeReport(path string, s report.Summary) error {
	var data []byte
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".md", ".markdown":
		md, err := report.Markdown(s)
		if err != nil {
			return err
		}
		data = []byte(md)
	case ".html", ".htm":
		page, err := report.HTML(s)
		if err != nil {
			return err
		}
		data = []byte(page)
	case ".xlsx":
		var buf bytes.Buffer
		if err := report.WriteXLSX(&buf, s); err != nil {
			return err
		}
		data = buf.Bytes()
	default:
		return fmt.Errorf("unsupported report format %q", ext)
	}
	return os.WriteFile(path, data, 0644)
}
