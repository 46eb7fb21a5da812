package markup

import (
	"cmp"
	"slices"
	"strings"
	"unicode/utf8"
)

// Options controls rendering.
type Options struct {
	// ResolveImage maps image directive argument to the value of src
	// attribute. When nil leading slashes are stripped from argument.
	ResolveImage func(arg string) string
}

// Result of rendering single chapter text.
type Result struct {
	Markup string
	// Drift is total length change (in characters) introduced by generated
	// tags and replaced ranges, escaping excluded.
	Drift int
	// Images lists resolved image sources in order of appearance.
	Images []string
	// Unknown counts directives with codes renderer does not know.
	Unknown int
}

const ampPlaceholder = `<span class="and"></span>`

var attrEscaper = strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `>`, "&gt;", `"`, "&quot;", `'`, "&apos;")

// Escape prepares plain text for inclusion in XHTML. Ampersand becomes
// styled placeholder, vendor stylesheets render it back.
func Escape(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		writeEscaped(&sb, r)
	}
	return sb.String()
}

func writeEscaped(sb *strings.Builder, r rune) {
	switch r {
	case '<':
		sb.WriteString("&lt;")
	case '>':
		sb.WriteString("&gt;")
	case '&':
		sb.WriteString(ampPlaceholder)
	case '\'':
		sb.WriteString("&apos;")
	case '"':
		sb.WriteString("&quot;")
	default:
		sb.WriteRune(r)
	}
}

func defaultResolve(arg string) string {
	return strings.TrimLeft(arg, "/")
}

// wrap is what single span contributes to the output.
type wrap struct {
	open, close string
	// replace drops original characters of the range
	replace bool
}

func (w wrap) len() int {
	return utf8.RuneCountInString(w.open) + utf8.RuneCountInString(w.close)
}

// build composes directives of a span. First directive is innermost, image
// replaces whatever was built before it.
func (o Options) build(s Span, res *Result) wrap {
	resolve := o.ResolveImage
	if resolve == nil {
		resolve = defaultResolve
	}

	var w wrap
	for _, d := range s.Directives {
		switch d.Type {
		case Bold:
			w.open, w.close = "<strong>"+w.open, w.close+"</strong>"
		case Italic:
			w.open, w.close = "<em>"+w.open, w.close+"</em>"
		case Center:
			w.open, w.close = `<p class="center">`+w.open, w.close+"</p>"
		case Image:
			src := resolve(d.Arg)
			res.Images = append(res.Images, src)
			w = wrap{open: `<img src="` + attrEscaper.Replace(src) + `"/>`, replace: true}
		case TOCAnchor, Footnote:
			// anchors and references have no visual representation
		default:
			res.Unknown++
		}
	}
	return w
}

// mark is a tag pair placed into the output.
type mark struct {
	end         int
	open, close string
	atomic      bool
	seq         int
}

// Render applies normalized spans to text in a single pass. Offsets are
// character offsets into the original text and are clamped to its bounds.
// Among spans starting at the same offset longer ones are opened first, tags
// are closed in reverse order of opening, so nested spans produce properly
// nested markup.
func Render(text string, spans []Span, opts Options) Result {
	var res Result

	runes := []rune(text)
	n := len(runes)

	opens := make([][]*mark, n+1)
	closes := make([][]*mark, n+1)
	var dropped []bool

	for _, s := range spans {
		start := clamp(s.Start, 0, n)
		end := clamp(s.End, start, n)

		w := opts.build(s, &res)
		if w.open == "" && w.close == "" && !w.replace {
			continue
		}
		res.Drift += w.len()

		m := &mark{end: end, open: w.open, close: w.close}
		if w.replace || start == end {
			m.atomic, m.end = true, start
			if w.replace && end > start {
				if dropped == nil {
					dropped = make([]bool, n)
				}
				for i := start; i < end; i++ {
					if !dropped[i] {
						dropped[i] = true
						res.Drift--
					}
				}
			}
		} else {
			closes[end] = append(closes[end], m)
		}
		opens[start] = append(opens[start], m)
	}

	var (
		sb  strings.Builder
		seq int
	)
	sb.Grow(len(text) + len(text)/4)
	for pos := 0; pos <= n; pos++ {
		if cl := closes[pos]; len(cl) > 0 {
			slices.SortFunc(cl, func(a, b *mark) int { return cmp.Compare(b.seq, a.seq) })
			for _, m := range cl {
				sb.WriteString(m.close)
			}
		}
		if op := opens[pos]; len(op) > 0 {
			slices.SortStableFunc(op, func(a, b *mark) int { return cmp.Compare(b.end, a.end) })
			for _, m := range op {
				seq++
				m.seq = seq
				sb.WriteString(m.open)
				if m.atomic {
					sb.WriteString(m.close)
				}
			}
		}
		if pos == n || (dropped != nil && dropped[pos]) {
			continue
		}
		writeEscaped(&sb, runes[pos])
	}
	res.Markup = sb.String()
	return res
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Paragraphs wraps every non blank line of markup into paragraph. Blank lines
// are kept as line breaks.
func Paragraphs(markup string, rtl bool) string {
	open := "<p>"
	if rtl {
		open = `<p style="direction:rtl">`
	}

	var sb strings.Builder
	for line := range strings.SplitSeq(markup, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString(open)
		sb.WriteString(line)
		sb.WriteString("</p>")
	}
	return sb.String()
}
