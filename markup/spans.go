// Package markup rebuilds formatted chapter text from plain text and a table
// of offset tagged directives.
package markup

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Directive codes found in span tables.
const (
	Bold      = 0
	Italic    = 7
	TOCAnchor = 11
	Footnote  = 101
	Center    = 102
	Image     = 104
)

// Directive is single formatting instruction, Arg is only meaningful for some
// codes (image path for Image).
type Directive struct {
	Type int
	Arg  string
}

// Span applies list of directives to [Start, End) character range.
type Span struct {
	Start      int
	End        int
	Directives []Directive
}

// MarshalJSON produces normalized form [start,end,[[type,arg?],...]].
func (s Span) MarshalJSON() ([]byte, error) {
	list := make([][]any, 0, len(s.Directives))
	for _, d := range s.Directives {
		if d.Arg == "" {
			list = append(list, []any{d.Type})
			continue
		}
		list = append(list, []any{d.Type, d.Arg})
	}
	return json.Marshal([]any{s.Start, s.End, list})
}

// UnmarshalJSON accepts both vendor flat form [start,end,type,arg?] and
// normalized form [start,end,[[type,arg?],...]].
func (s *Span) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 3 {
		return fmt.Errorf("span %s: expected at least 3 elements", data)
	}
	if err := json.Unmarshal(raw[0], &s.Start); err != nil {
		return fmt.Errorf("span %s: bad start: %w", data, err)
	}
	if err := json.Unmarshal(raw[1], &s.End); err != nil {
		return fmt.Errorf("span %s: bad end: %w", data, err)
	}

	s.Directives = nil
	third := bytes.TrimSpace(raw[2])
	if len(third) > 0 && third[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(third, &list); err != nil {
			return fmt.Errorf("span %s: bad directive list: %w", data, err)
		}
		for _, item := range list {
			var parts []json.RawMessage
			if err := json.Unmarshal(item, &parts); err != nil {
				return fmt.Errorf("span %s: bad directive: %w", data, err)
			}
			d, err := directive(parts)
			if err != nil {
				return fmt.Errorf("span %s: %w", data, err)
			}
			s.Directives = append(s.Directives, d)
		}
		return nil
	}

	d, err := directive(raw[2:])
	if err != nil {
		return fmt.Errorf("span %s: %w", data, err)
	}
	s.Directives = append(s.Directives, d)
	return nil
}

func directive(parts []json.RawMessage) (Directive, error) {
	var d Directive
	if len(parts) == 0 {
		return d, fmt.Errorf("empty directive")
	}
	if err := json.Unmarshal(parts[0], &d.Type); err != nil {
		// some tables carry codes as strings
		var s string
		if json.Unmarshal(parts[0], &s) != nil {
			return d, fmt.Errorf("bad directive type %s", parts[0])
		}
		if d.Type, err = strconv.Atoi(s); err != nil {
			return d, fmt.Errorf("bad directive type %q", s)
		}
	}
	if len(parts) > 1 {
		d.Arg = argument(parts[1])
	}
	return d, nil
}

func argument(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if v := string(bytes.TrimSpace(raw)); v != "null" {
		return v
	}
	return ""
}

// ParseSpans decodes span table. Leading byte order mark is tolerated, empty
// input is empty table.
func ParseSpans(data []byte) ([]Span, error) {
	data = StripBOM(data)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var spans []Span
	if err := json.Unmarshal(data, &spans); err != nil {
		return nil, fmt.Errorf("unable to parse spans: %w", err)
	}
	return spans, nil
}

// StripBOM removes UTF-8 (and converts UTF-16) byte order marked input.
func StripBOM(data []byte) []byte {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return data
	}
	return out
}

// Normalize orders spans by start offset and merges spans with identical
// range, keeping directives in encounter order. Input is not modified.
func Normalize(spans []Span) []Span {
	sorted := slices.Clone(spans)
	slices.SortStableFunc(sorted, func(a, b Span) int {
		return cmp.Compare(a.Start, b.Start)
	})

	index := make(map[[2]int]int, len(sorted))
	out := make([]Span, 0, len(sorted))
	for _, s := range sorted {
		k := [2]int{s.Start, s.End}
		if i, ok := index[k]; ok {
			out[i].Directives = append(out[i].Directives, s.Directives...)
			continue
		}
		index[k] = len(out)
		out = append(out, Span{Start: s.Start, End: s.End, Directives: slices.Clone(s.Directives)})
	}
	return out
}
