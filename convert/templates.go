package convert

import (
	"bytes"
	"fmt"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"jrr/book"
	"jrr/common"
	"jrr/config"
)

// Values is a struct that holds variables we make available for template expansion
type Values struct {
	Context   string
	ID        string
	Title     string
	Authors   []string
	Publisher string
	Type      string
	Language  string
}

func buildValues(b *book.Book, name config.TemplateFieldName, t common.BookType, lang string) Values {
	return Values{
		Context:   string(name),
		ID:        b.ID,
		Title:     b.Title,
		Authors:   append([]string(nil), b.Authors...),
		Publisher: b.Publisher,
		Type:      t.String(),
		Language:  lang,
	}
}

func expandTemplate(values Values, name config.TemplateFieldName, field string) (string, error) {
	funcMap := sprig.FuncMap()

	tmpl, err := template.New(string(name)).Funcs(funcMap).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}
