package content

import (
	"fmt"
	"strconv"
	"strings"
)

type treeWriter struct {
	strings.Builder
}

func (tw *treeWriter) line(depth int, format string, args ...any) {
	tw.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(tw, format, args...)
	tw.WriteByte('\n')
}

func (tw *treeWriter) text(depth int, label, value string) {
	if value != "" {
		value = strconv.Quote(value)
	}
	tw.line(depth, "%s: %s", label, value)
}

// String returns a readable tree of prepared content. It exists solely for
// manual inspection during debugging and is stored with the report.
func (c *Content) String() string {
	if c == nil {
		return "<nil Content>"
	}

	var tw treeWriter
	if c.Book != nil {
		tw.line(0, "Book id=%q type=%s", c.Book.ID, c.Book.Type)
		tw.text(1, "Title", c.Book.Title)
	}
	tw.line(0, "Info format=%d chapters=%d language=%q cover=%q", c.Info.FormatVersion, c.Info.Chapters, c.Info.Language, c.Info.Cover)
	tw.line(0, "Language %q rtl=%t unknown directives=%d", c.Language, c.RTL, c.Unknown)

	tw.line(0, "TOC: %d", len(c.TOC))
	for i, e := range c.TOC {
		tw.line(1, "Entry[%d] offset=%d length=%d", i, e.Offset, e.Length)
		tw.text(2, "Title", e.Title)
	}

	tw.line(0, "Chapters: %d", len(c.Chapters))
	for _, ch := range c.Chapters {
		tw.line(1, "Chapter[%d] file=%q body=%d bytes", ch.Index, ch.FileName, len(ch.Body))
		tw.text(2, "Title", ch.Title)
		for _, img := range ch.Images {
			tw.line(2, "Image %q", img)
		}
	}
	return tw.String()
}
