package renderer

import (
	"bytes"
	"fmt"
	"html"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	journal "github.com/etnz/stockjournal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Terminal renders markdown for a terminal using the glamour style of theme.
func Terminal(md string, theme journal.Theme) (string, error) {
	style := styles.LightStyle
	if theme == journal.Dark {
		style = styles.DarkStyle
	}
	out, err := glamour.Render(md, style)
	if err != nil {
		return "", fmt.Errorf("cannot render markdown: %w", err)
	}
	return out, nil
}

const htmlPage = `<!DOCTYPE html>
<html lang="en" data-theme="%s">
<head><meta charset="utf-8"><title>%s</title></head>
<body>
%s</body>
</html>
`

// HTML converts markdown to a standalone HTML page.
func HTML(md, title string, theme journal.Theme) (string, error) {
	conv := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := conv.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("cannot convert markdown: %w", err)
	}
	return fmt.Sprintf(htmlPage, theme, html.EscapeString(title), buf.String()), nil
}
