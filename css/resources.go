// Package css looks into stylesheets packaged with books.
package css

import (
	"bytes"
	"errors"
	"io"
	"net/url"
	"path"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// Resources returns local resources (fonts, images, imported stylesheets)
// referenced by stylesheet in order of appearance without duplicates.
// Remote, data and absolute references are skipped.
func Resources(data []byte) ([]string, error) {
	lexer := css.NewLexer(parse.NewInput(bytes.NewReader(data)))

	var (
		refs     []string
		seen     = make(map[string]bool)
		inImport bool
	)
	add := func(ref string) {
		if ref = localRef(ref); ref != "" && !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}

	for {
		tt, text := lexer.Next()
		switch tt {
		case css.ErrorToken:
			if err := lexer.Err(); err != nil && !errors.Is(err, io.EOF) {
				return refs, err
			}
			return refs, nil
		case css.AtKeywordToken:
			inImport = strings.EqualFold(string(text), "@import")
		case css.SemicolonToken:
			inImport = false
		case css.StringToken:
			if inImport {
				add(unquote(string(text)))
			}
		case css.URLToken:
			s := strings.TrimSuffix(strings.TrimPrefix(string(text), "url("), ")")
			add(unquote(strings.TrimSpace(s)))
		}
	}
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func localRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "" || u.Host != "" || path.IsAbs(u.Path) || u.Path == "" {
		return ""
	}
	clean := path.Clean(u.Path)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return ""
	}
	return clean
}
