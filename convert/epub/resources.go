package epub

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/binary"
	"fmt"
	"image"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/disintegration/imaging"
	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/h2non/filetype"
	"github.com/maruel/natural"
	"go.uber.org/zap"

	"jrr/common"
	"jrr/config"
	"jrr/content"
	"jrr/css"
)

//go:embed stylesheet.css.tmpl
var defaultStylesheet string

const coverImageID = "book-cover-image"

type resource struct {
	ID         string
	Href       string
	MediaType  string
	Properties string
	Data       []byte
}

type resources struct {
	items    []resource
	cover    *resource
	coverDim image.Point
}

func (r *resources) add(res resource) {
	r.items = append(r.items, res)
}

func (r *resources) find(href string) int {
	for i := range r.items {
		if r.items[i].Href == href {
			return i
		}
	}
	return -1
}

type fontFace struct {
	Family string
	Href   string
}

type stylesheetValues struct {
	Language  string
	Direction string
	Align     string
	Fonts     []fontFace
}

func collectResources(ctx context.Context, c *content.Content, cfg *config.DocumentConfig, log *zap.Logger) (*resources, error) {
	res := &resources{}

	var fonts []fontFace
	for i, name := range cfg.Fonts {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("unable to read font: %w", err)
		}
		href := path.Join(fontsDir, filepath.Base(name))
		res.add(resource{ID: fmt.Sprintf("font%d", i+1), Href: href, MediaType: mediaType(href, data), Data: data})
		fonts = append(fonts, fontFace{Family: fmt.Sprintf("font%d", i+1), Href: href})
	}

	if err := addStylesheet(res, c, cfg, fonts, log); err != nil {
		return nil, err
	}
	if err := addImages(ctx, res, c, log); err != nil {
		return nil, err
	}
	addCover(res, c, cfg, log)

	for i := range res.items {
		if res.items[i].ID == coverImageID {
			res.cover = &res.items[i]
		}
	}
	return res, nil
}

func addStylesheet(res *resources, c *content.Content, cfg *config.DocumentConfig, fonts []fontFace, log *zap.Logger) error {
	text, base := defaultStylesheet, ""
	if cfg.StylesheetPath != "" {
		data, err := os.ReadFile(cfg.StylesheetPath)
		if err != nil {
			return fmt.Errorf("unable to read stylesheet from %q: %w", cfg.StylesheetPath, err)
		}
		text, base = string(data), filepath.Dir(cfg.StylesheetPath)
	}

	values := stylesheetValues{Language: c.Language, Direction: "ltr", Align: "left", Fonts: fonts}
	if c.RTL {
		values.Direction, values.Align = "rtl", "right"
	}
	data, err := expandStylesheet(text, values)
	if err != nil {
		return err
	}
	res.add(resource{ID: "stylesheet", Href: stylesheetHref, MediaType: "text/css", Data: data})

	if base == "" {
		return nil
	}
	refs, err := css.Resources(data)
	if err != nil {
		log.Warn("Unable to scan stylesheet for resources", zap.Error(err))
	}
	for i, ref := range refs {
		href := path.Join(stylesDir, ref)
		if res.find(href) >= 0 {
			continue
		}
		data, err := os.ReadFile(filepath.Join(base, filepath.FromSlash(ref)))
		if err != nil {
			log.Warn("Stylesheet resource not found", zap.String("ref", ref), zap.Error(err))
			continue
		}
		res.add(resource{ID: fmt.Sprintf("style-res%d", i+1), Href: href, MediaType: mediaType(href, data), Data: data})
	}
	return nil
}

func expandStylesheet(text string, values stylesheetValues) ([]byte, error) {
	tmpl, err := template.New("stylesheet").Funcs(sprig.FuncMap()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("unable to parse stylesheet template: %w", err)
	}
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return nil, fmt.Errorf("unable to expand stylesheet template: %w", err)
	}
	return buf.Bytes(), nil
}

// addImages packages images referenced by chapters and everything from
// book Images folder.
func addImages(ctx context.Context, res *resources, c *content.Content, log *zap.Logger) error {
	seen := make(map[string]bool)
	var names []string
	for _, ch := range c.Chapters {
		for _, img := range ch.Images {
			if !seen[img] {
				seen[img] = true
				names = append(names, img)
			}
		}
	}

	folder := filepath.Join(c.Dir, "Images")
	err := filepath.WalkDir(folder, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == folder && os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(c.Dir, p)
		if err != nil {
			return err
		}
		if rel = filepath.ToSlash(rel); !seen[rel] {
			seen[rel] = true
			names = append(names, rel)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("unable to list images: %w", err)
	}
	sort.Sort(natural.StringSlice(names))

	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(filepath.Join(c.Dir, filepath.FromSlash(name)))
		if err != nil {
			log.Warn("Referenced image is missing", zap.String("image", name), zap.Error(err))
			continue
		}
		if !filetype.IsImage(data) {
			log.Warn("Not an image, skipping", zap.String("image", name))
			continue
		}
		res.add(resource{ID: fmt.Sprintf("img%d", i+1), Href: name, MediaType: mediaType(name, data), Data: data})
	}
	return nil
}

func addCover(res *resources, c *content.Content, cfg *config.DocumentConfig, log *zap.Logger) {
	if c.Info.Cover == "" {
		return
	}
	name := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(c.Info.Cover, `\`, "/")), "/")

	data, err := os.ReadFile(filepath.Join(c.Dir, filepath.FromSlash(name)))
	if err != nil {
		log.Warn("Cover image is missing", zap.String("cover", name), zap.Error(err))
		return
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Warn("Unable to decode cover image", zap.String("cover", name), zap.Error(err))
		res.coverDim = image.Pt(cfg.Cover.Width, cfg.Cover.Height)
	} else {
		res.coverDim = img.Bounds().Size()
	}

	if img != nil && cfg.Cover.Resize != common.ImageResizeModeNone {
		if resized, err := resizeCover(img, &cfg.Cover); err != nil {
			log.Warn("Unable to resize cover image", zap.Error(err))
		} else if resized != nil {
			res.coverDim = image.Pt(resized.width, resized.height)
			res.add(resource{ID: coverImageID, Href: "cover.jpg", MediaType: "image/jpeg", Properties: "cover-image", Data: resized.data})
			return
		}
	}

	if i := res.find(name); i >= 0 {
		res.items[i].ID, res.items[i].Properties = coverImageID, "cover-image"
		return
	}
	res.add(resource{ID: coverImageID, Href: name, MediaType: mediaType(name, data), Properties: "cover-image", Data: data})
}

type coverImage struct {
	data          []byte
	width, height int
}

// resizeCover returns nil when image does not need resizing.
func resizeCover(img image.Image, cfg *config.CoverConfig) (*coverImage, error) {
	w, h := cfg.Width, cfg.Height
	switch cfg.Resize {
	case common.ImageResizeModeKeepAR:
		if img.Bounds().Dy() >= h {
			return nil, nil
		}
		img = imaging.Resize(img, 0, h, imaging.Lanczos)
	case common.ImageResizeModeStretch:
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	default:
		return nil, nil
	}

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(cfg.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("unable to encode cover: %w", err)
	}
	data, err := ensureJFIF(buf.Bytes())
	if err != nil {
		return nil, err
	}
	return &coverImage{data: data, width: img.Bounds().Dx(), height: img.Bounds().Dy()}, nil
}

// ensureJFIF inserts JFIF APP0 segment (300 dpi) when encoder did not write
// one, some readers refuse to show such covers.
func ensureJFIF(data []byte) ([]byte, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, fmt.Errorf("not a jpeg")
	}
	if data[2] == 0xFF && data[3] == 0xE0 {
		return data, nil
	}

	buf := new(bytes.Buffer)
	buf.Write(data[:2])
	buf.Write([]byte{0xFF, 0xE0})
	_ = binary.Write(buf, binary.BigEndian, uint16(0x10)) // length
	buf.Write([]byte{'J', 'F', 'I', 'F', 0x00, 0x01, 0x02})
	_ = binary.Write(buf, binary.BigEndian, uint8(1)) // pixels per inch
	_ = binary.Write(buf, binary.BigEndian, uint16(300))
	_ = binary.Write(buf, binary.BigEndian, uint16(300))
	_ = binary.Write(buf, binary.BigEndian, uint16(0)) // no thumbnail
	buf.Write(data[2:])
	return buf.Bytes(), nil
}

func mediaType(name string, data []byte) string {
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return strings.TrimSpace(strings.Split(t, ";")[0])
	}
	return "application/octet-stream"
}
