package ai

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	journal "github.com/etnz/stockjournal"
)

//go:embed prompts
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

// shape returns the example JSON object of a prompt.
func shape(name string) string {
	data, err := promptFS.ReadFile("prompts/" + name + ".json")
	if err != nil {
		panic(err)
	}
	return string(data)
}

// Brief is the snapshot of a book sent to the model.
type Brief struct {
	Exchange string
	Currency string
	Date     string
	Strategy journal.Strategy
	Summary  journal.Summary
}

// NewBrief snapshots b. It can then be used without holding the book.
func NewBrief(b *journal.Book, exchange string) Brief {
	s := b.Strategy
	s.Signature = ""
	return Brief{
		Exchange: exchange,
		Currency: b.Currency,
		Strategy: s,
		Summary:  b.Summary(),
	}
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
		return "", fmt.Errorf("cannot render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}
