package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed templates/report.md.tmpl
var defaultMarkdownTemplate string

var markdownTemplate = template.Must(template.New("report").Funcs(sprig.FuncMap()).Parse(defaultMarkdownTemplate))

// Markdown renders the summary with the built-in template.
func Markdown(s Summary) (string, error) {
	return execute(markdownTemplate, s)
}

// MarkdownWithTemplate renders the summary with a caller supplied template.
// Sprig functions are available.
func MarkdownWithTemplate(text string, s Summary) (string, error) {
	t, err := template.New("custom").Funcs(sprig.FuncMap()).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse report template: %w", err)
	}
	return execute(t, s)
}

func execute(t *template.Template, s Summary) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, s); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

const htmlPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 52em; margin: 2em auto; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.2em 0.6em; }
</style>
</head>
<body>
%s</body>
</html>
`

// HTML renders the Markdown report as a standalone HTML page.
func HTML(s Summary) (string, error) {
	md, err := Markdown(s)
	if err != nil {
		return "", err
	}
	converter := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := converter.Convert([]byte(md), &body); err != nil {
		return "", fmt.Errorf("convert report to html: %w", err)
	}
	title := s.Title
	if title == "" {
		title = "Correction report"
	}
	return fmt.Sprintf(htmlPage, template.HTMLEscapeString(title), body.String()), nil
}

// CorrectionsSheet is the name of the worksheet WriteXLSX produces.
const CorrectionsSheet = "Corrections"

// WriteXLSX writes the flagged words as a workbook with one sheet.
func WriteXLSX(w io.Writer, s Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", CorrectionsSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	headers := []any{"Word", "Suggestion", "Category", "Tier", "Confidence", "Left", "Top", "Width", "Height"}
	if err := f.SetSheetRow(CorrectionsSheet, "A1", &headers); err != nil {
		return fmt.Errorf("xlsx header: %w", err)
	}
	for i, r := range s.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			r.Word, r.Suggestion, strings.ReplaceAll(r.Category, "_", " "), r.Tier, r.Confidence,
			r.Box.Left, r.Box.Top, r.Box.Width, r.Box.Height,
		}
		if err := f.SetSheetRow(CorrectionsSheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx row %d: %w", i+1, err)
		}
	}

	_ = f.SetColWidth(CorrectionsSheet, "A", "B", 18)
	_ = f.SetColWidth(CorrectionsSheet, "C", "C", 16)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
