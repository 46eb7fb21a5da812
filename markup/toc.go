package markup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Untitled is title of chapter no table of contents entry points into.
const Untitled = "---"

// TOCEntry is table of contents item. Text books use Offset, audio books use
// Length (seconds).
type TOCEntry struct {
	Offset int    `json:"offset"`
	Title  string `json:"title"`
	Length int    `json:"length"`
}

// ParseTOC decodes table of contents, tolerating byte order mark.
func ParseTOC(data []byte) ([]TOCEntry, error) {
	data = StripBOM(data)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var toc []TOCEntry
	if err := json.Unmarshal(data, &toc); err != nil {
		return nil, fmt.Errorf("unable to parse table of contents: %w", err)
	}
	return toc, nil
}

// ChapterTitle returns title of the first entry with offset in [start, end].
func ChapterTitle(start, end int, toc []TOCEntry) string {
	for _, e := range toc {
		if e.Offset >= start && e.Offset <= end {
			if e.Title == "" {
				return Untitled
			}
			return e.Title
		}
	}
	return Untitled
}

// Chapter is reconstructed chapter text.
type Chapter struct {
	Title string
	Result
	// Next is cumulative offset for the following chapter.
	Next int
}

// Reconstruct renders chapter text located at cumulative offset and finds
// its title. Chapter covers [offset, offset+length-1], the following chapter
// starts at the end of this range. Empty chapters do not move the offset.
func Reconstruct(text string, spans []Span, toc []TOCEntry, offset int, opts Options) Chapter {
	last := offset + max(utf8.RuneCountInString(text)-1, 0)
	return Chapter{
		Title:  ChapterTitle(offset, last, toc),
		Result: Render(text, Normalize(spans), opts),
		Next:   last,
	}
}
