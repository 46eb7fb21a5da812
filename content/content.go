// Package content assembles decrypted book folder into sequence of chapters
// ready to be packaged.
package content

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/maruel/natural"
	"go.uber.org/zap"

	"jrr/book"
	"jrr/common"
	"jrr/decrypt"
	"jrr/markup"
)

//go:embed copyrights.txt
var copyrightsText string

const (
	CopyrightsFileName = "copyrights"
	copyrightsTitleEn  = "Copyrights"
	copyrightsTitleAr  = "حقوق الناشر"

	textDir  = "Text"
	indexDir = "Index"
)

// Chapter is single reconstructed chapter.
type Chapter struct {
	// Index is chapter number in archive, 0 for synthesized chapters.
	Index int
	Title string
	// FileName is unique base name (no extension) to be used in package.
	FileName string
	// Body is XHTML fragment: sequence of paragraphs.
	Body string
	// Images are paths relative to book folder referenced by Body.
	Images []string
}

// Content is everything needed to package text book.
type Content struct {
	Book     *book.Book
	Info     Info
	Language string
	RTL      bool
	// Dir is extraction folder, image paths are relative to it.
	Dir      string
	TOC      []markup.TOCEntry
	Chapters []Chapter
	// Unknown counts span directives we could not render.
	Unknown int
}

// Options controls content assembly.
type Options struct {
	DefaultLanguage string
	Copyrights      bool
}

// ChapterText returns location of decrypted chapter text.
func ChapterText(dir string, index int) string {
	return filepath.Join(dir, textDir, fmt.Sprintf("chapter-%03d.html", index)+decrypt.DecryptedSuffix)
}

// Payload returns location of decrypted whole book payload of single file
// formats.
func Payload(dir string) string {
	return filepath.Join(dir, textDir, "DATA.DATA"+decrypt.DecryptedSuffix)
}

// chapterSpans returns location of span table, decrypted one is preferred.
func chapterSpans(dir string, index int) string {
	name := filepath.Join(dir, textDir, fmt.Sprintf("chapter-%03d.html.spans", index))
	if _, err := os.Stat(decrypt.Decrypted(name)); err == nil {
		return decrypt.Decrypted(name)
	}
	return name
}

// LoadTOC reads table of contents from extraction folder, decrypted copy is
// preferred. Absent table produces error wrapping fs.ErrNotExist.
func LoadTOC(dir string) ([]markup.TOCEntry, error) {
	name := filepath.Join(dir, indexDir, "toc.json")
	data, err := os.ReadFile(decrypt.Decrypted(name))
	if errors.Is(err, fs.ErrNotExist) {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read table of contents: %w", err)
	}
	return markup.ParseTOC(data)
}

var reChapterText = regexp.MustCompile(`^chapter-([0-9]+)\.html` + regexp.QuoteMeta(decrypt.DecryptedSuffix) + `$`)

// CountChapters finds chapter texts in extraction folder when metadata does
// not declare their number. Chapters are numbered from 1 without gaps, so the
// largest found index is returned.
func CountChapters(dir string) (int, error) {
	entries, err := os.ReadDir(filepath.Join(dir, textDir))
	if err != nil {
		return 0, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && reChapterText.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return 0, nil
	}
	sort.Sort(natural.StringSlice(names))
	n, err := strconv.Atoi(reChapterText.FindStringSubmatch(names[len(names)-1])[1])
	if err != nil {
		return 0, err
	}
	return n, nil
}

// imageResolver keeps image references inside book folder.
func imageResolver(arg string) string {
	return strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(arg, `\`, "/")), "/")
}

// Prepare reconstructs all chapters of decrypted text book in ascending order.
// First failure aborts preparation, nothing partial is returned.
func Prepare(ctx context.Context, b *book.Book, info Info, dir string, opts Options, log *zap.Logger) (*Content, error) {
	lang := info.Lang(opts.DefaultLanguage)
	c := &Content{
		Book:     b,
		Info:     info,
		Language: lang,
		RTL:      IsRTL(lang),
		Dir:      dir,
	}

	count := info.Chapters
	if count == 0 {
		n, err := CountChapters(dir)
		if err != nil {
			return nil, fmt.Errorf("unable to count chapters: %w", err)
		}
		log.Debug("Chapter count is not declared, using chapter files", zap.Int("chapters", n))
		count = n
	}

	var err error
	if c.TOC, err = LoadTOC(dir); err != nil {
		return nil, err
	}

	names := newNamer()
	opts2 := markup.Options{ResolveImage: imageResolver}

	var offset int
	for i := 1; i <= count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := os.ReadFile(ChapterText(dir, i))
		if err != nil {
			return nil, fmt.Errorf("unable to read chapter %d: %w", i, err)
		}
		data, err := os.ReadFile(chapterSpans(dir, i))
		if err != nil {
			return nil, fmt.Errorf("unable to read spans of chapter %d: %w", i, err)
		}
		spans, err := markup.ParseSpans(data)
		if err != nil {
			return nil, fmt.Errorf("chapter %d: %w", i, err)
		}

		ch := markup.Reconstruct(string(text), spans, c.TOC, offset, opts2)
		offset = ch.Next
		c.Unknown += ch.Unknown

		c.Chapters = append(c.Chapters, Chapter{
			Index:    i,
			Title:    ch.Title,
			FileName: names.next(ch.Title),
			Body:     markup.Paragraphs(ch.Markup, c.RTL),
			Images:   ch.Images,
		})
		log.Debug("Chapter prepared", zap.Int("index", i), zap.String("title", ch.Title), zap.Int("drift", ch.Drift))
	}

	if c.Unknown > 0 {
		log.Warn("Some formatting directives were ignored", zap.Int("count", c.Unknown))
	}

	if opts.Copyrights {
		c.Chapters = append(c.Chapters, copyrights(lang))
	}
	return c, nil
}

func copyrights(lang string) Chapter {
	title := copyrightsTitleEn
	if IsArabic(lang) {
		title = copyrightsTitleAr
	}
	res := markup.Render(strings.TrimSpace(copyrightsText), []markup.Span{
		{Start: 0, End: 5, Directives: []markup.Directive{{Type: markup.Bold}}},
	}, markup.Options{})
	return Chapter{
		Title:    title,
		FileName: CopyrightsFileName,
		Body:     markup.Paragraphs(res.Markup, true),
	}
}

// namer produces unique chapter file names.
type namer struct {
	used map[string]int
}

func newNamer() *namer {
	return &namer{used: map[string]int{CopyrightsFileName: 1}}
}

func (n *namer) next(title string) string {
	if title == markup.Untitled {
		return uuid.NewString()
	}
	name := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '-'
		}
		return r
	}, common.Transliterate(title))
	name = common.SanitizeFileName(name, "-")
	if name == "" {
		return uuid.NewString()
	}
	n.used[name]++
	if k := n.used[name]; k > 1 {
		name = fmt.Sprintf("%s-%d", name, k)
	}
	return name
}
