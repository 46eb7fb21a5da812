package epub

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"jrr/content"
)

func convertToXHTML(ctx context.Context, c *content.Content) ([]chapterData, error) {
	chapters := make([]chapterData, 0, len(c.Chapters))
	for i, ch := range c.Chapters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		filename := path.Join(textDir, ch.FileName+".xhtml")
		doc, body := createXHTMLDocument(c, ch.Title, "../")
		if err := appendMarkup(body, ch.Body, "../"); err != nil {
			return nil, fmt.Errorf("chapter %q: %w", ch.Title, err)
		}
		chapters = append(chapters, chapterData{
			ID:       fmt.Sprintf("chapter%04d", i+1),
			Filename: filename,
			Title:    ch.Title,
			Doc:      doc,
		})
	}
	return chapters, nil
}

// createXHTMLDocument returns document and its body element. Relative
// prefix locates package root from the document.
func createXHTMLDocument(c *content.Content, title, prefix string) (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.CreateDirective("DOCTYPE html")

	root := doc.CreateElement("html")
	root.CreateAttr("xmlns", "http://www.w3.org/1999/xhtml")
	root.CreateAttr("xmlns:epub", "http://www.idpf.org/2007/ops")
	root.CreateAttr("xml:lang", c.Language)
	root.CreateAttr("lang", c.Language)
	if c.RTL {
		root.CreateAttr("dir", "rtl")
	}

	head := root.CreateElement("head")

	meta := head.CreateElement("meta")
	meta.CreateAttr("http-equiv", "Content-Type")
	meta.CreateAttr("content", "text/html; charset=utf-8")

	titleElem := head.CreateElement("title")
	titleElem.SetText(title)

	link := head.CreateElement("link")
	link.CreateAttr("rel", "stylesheet")
	link.CreateAttr("type", "text/css")
	link.CreateAttr("href", prefix+stylesheetHref)

	return doc, root.CreateElement("body")
}

// appendMarkup parses reconstructed chapter markup leniently and appends it
// to parent as well formed XHTML. Image sources are made relative to the
// document using prefix.
func appendMarkup(parent *etree.Element, markup, prefix string) error {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return fmt.Errorf("unable to parse markup: %w", err)
	}
	for _, n := range nodes {
		appendNode(parent, n, prefix)
	}
	return nil
}

func appendNode(parent *etree.Element, n *html.Node, prefix string) {
	switch n.Type {
	case html.TextNode:
		parent.CreateText(n.Data)
	case html.ElementNode:
		elem := parent.CreateElement(n.Data)
		for _, a := range n.Attr {
			if a.Namespace != "" {
				continue
			}
			val := a.Val
			if n.DataAtom == atom.Img && a.Key == "src" {
				val = imageSource(val, prefix)
			}
			elem.CreateAttr(a.Key, val)
		}
		if n.DataAtom == atom.Img && elem.SelectAttr("alt") == nil {
			elem.CreateAttr("alt", "")
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			appendNode(elem, child, prefix)
		}
	}
}

func imageSource(src, prefix string) string {
	if src == "" || strings.Contains(src, ":") || strings.HasPrefix(src, "/") || strings.HasPrefix(src, prefix) {
		return src
	}
	return prefix + src
}
