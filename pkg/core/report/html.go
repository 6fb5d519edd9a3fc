package report

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"dcf_valuation/pkg/core/pipeline"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// RenderHTML converts Markdown to an HTML fragment.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

// HTMLPage renders a complete standalone page for a run.
func HTMLPage(r *pipeline.Report, currency, title string) (string, error) {
	body, err := RenderHTML(Markdown(r, currency))
	if err != nil {
		return "", err
	}
	if title == "" {
		title = "DCF Valuation"
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", html.EscapeString(title))
	page.WriteString("<style>table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}</style>\n")
	page.WriteString("</head>\n<body>\n")
	page.WriteString(body)
	page.WriteString("</body>\n</html>\n")
	return page.String(), nil
}
