package epub

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"jrr/book"
	"jrr/common"
	"jrr/config"
	"jrr/content"
)

func setupTestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

func testConfig(t *testing.T) *config.DocumentConfig {
	t.Helper()
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return &cfg.Document
}

func createTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, color.RGBA{100, 150, 200, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test PNG: %v", err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(name, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func testContent(t *testing.T) *content.Content {
	t.Helper()
	work := t.TempDir()
	dir := filepath.Join(work, "7")
	writeFile(t, filepath.Join(dir, "Images", "a.png"), createTestPNG(t, 4, 4))
	writeFile(t, filepath.Join(dir, "Images", "cover.png"), createTestPNG(t, 10, 16))
	writeFile(t, filepath.Join(dir, "Images", "notes.txt"), []byte("not an image"))

	return &content.Content{
		Book:     &book.Book{ID: "7", Title: "كتاب", Authors: []string{"First Author", "Second"}, Publisher: "House"},
		Info:     content.Info{FormatVersion: 5, Type: common.BookTypeEpub, Cover: "/Images/cover.png"},
		Language: "ar",
		RTL:      true,
		Dir:      dir,
		Chapters: []content.Chapter{
			{
				Index:    1,
				Title:    "One",
				FileName: "One",
				Body:     `<p style="direction:rtl"><strong>Hi</strong> <img src="Images/a.png"/> <span class="and"></span></p>` + "\n",
				Images:   []string{"Images/a.png"},
			},
			{
				Title:    "حقوق الناشر",
				FileName: content.CopyrightsFileName,
				Body:     `<p style="direction:rtl">All rights</p>`,
			},
		},
	}
}

func readEPUB(t *testing.T, name string) (map[string][]byte, []*zip.File) {
	t.Helper()
	r, err := zip.OpenReader(name)
	if err != nil {
		t.Fatalf("unable to open result: %v", err)
	}
	defer r.Close()

	files := make(map[string][]byte)
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		files[f.Name] = data
	}
	return files, r.File
}

func TestGenerate(t *testing.T) {
	c := testContent(t)
	cfg := testConfig(t)
	out := filepath.Join(t.TempDir(), "out", "book.epub")

	if err := Generate(context.Background(), c, out, cfg, setupTestLogger(t)); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, err := os.Stat(c.Dir + ".epub"); !os.IsNotExist(err) {
		t.Error("temporary package must be removed")
	}

	files, order := readEPUB(t, out)
	if order[0].Name != "mimetype" || order[0].Method != zip.Store || string(files["mimetype"]) != mimetypeContent {
		t.Errorf("first entry = %q method %d", order[0].Name, order[0].Method)
	}
	for _, name := range []string{
		"META-INF/container.xml",
		"OEBPS/content.opf",
		"OEBPS/toc.ncx",
		"OEBPS/nav.xhtml",
		"OEBPS/cover.xhtml",
		"OEBPS/Styles/stylesheet.css",
		"OEBPS/Text/One.xhtml",
		"OEBPS/Text/copyrights.xhtml",
		"OEBPS/Images/a.png",
		"OEBPS/Images/cover.png",
	} {
		if _, ok := files[name]; !ok {
			t.Errorf("missing %s", name)
		}
	}
	if _, ok := files["OEBPS/Images/notes.txt"]; ok {
		t.Error("non image must not be packaged")
	}

	chapter := string(files["OEBPS/Text/One.xhtml"])
	for _, want := range []string{`dir="rtl"`, `<strong>Hi</strong>`, `src="../Images/a.png"`, `alt=""`, `<span class="and"/>`, `href="../Styles/stylesheet.css"`, `<title>One</title>`} {
		if !strings.Contains(chapter, want) {
			t.Errorf("chapter does not contain %q:\n%s", want, chapter)
		}
	}
	if !strings.Contains(string(files["OEBPS/nav.xhtml"]), tocTitleAr) {
		t.Error("nav title must be Arabic")
	}
	if css := string(files["OEBPS/Styles/stylesheet.css"]); !strings.Contains(css, "direction: rtl") || !strings.Contains(css, "text-align: right") {
		t.Errorf("stylesheet = %s", css)
	}

	opf := etree.NewDocument()
	if err := opf.ReadFromBytes(files["OEBPS/content.opf"]); err != nil {
		t.Fatal(err)
	}
	var spine []string
	for _, ref := range opf.FindElements("//spine/itemref") {
		spine = append(spine, ref.SelectAttrValue("idref", ""))
	}
	if strings.Join(spine, ",") != "cover-page,chapter0001,chapter0002,nav" {
		t.Errorf("spine = %v", spine)
	}
	if got := opf.FindElement("//spine").SelectAttrValue("page-progression-direction", ""); got != "rtl" {
		t.Errorf("page progression = %q", got)
	}
	cover := opf.FindElement("//manifest/item[@id='" + coverImageID + "']")
	if cover == nil || cover.SelectAttrValue("href", "") != "Images/cover.png" || cover.SelectAttrValue("properties", "") != "cover-image" {
		t.Errorf("cover item = %v", cover)
	}
	if n := len(opf.FindElements("//metadata/dc:creator")); n != 2 {
		t.Errorf("creators = %d", n)
	}

	ncx := etree.NewDocument()
	if err := ncx.ReadFromBytes(files["OEBPS/toc.ncx"]); err != nil {
		t.Fatal(err)
	}
	var titles []string
	for _, text := range ncx.FindElements("//navPoint/navLabel/text") {
		titles = append(titles, text.Text())
	}
	if strings.Join(titles, "|") != "One|حقوق الناشر" {
		t.Errorf("ncx titles = %v", titles)
	}
}

func TestGenerate_EnglishNoFixZip(t *testing.T) {
	c := testContent(t)
	c.Language, c.RTL = "en", false
	c.Info.Cover = ""
	cfg := testConfig(t)
	cfg.FixZip = false
	out := filepath.Join(t.TempDir(), "book.epub")

	if err := Generate(context.Background(), c, out, cfg, setupTestLogger(t)); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	files, _ := readEPUB(t, out)
	if _, ok := files["OEBPS/cover.xhtml"]; ok {
		t.Error("cover page without cover")
	}
	if !strings.Contains(string(files["OEBPS/nav.xhtml"]), tocTitleEn) {
		t.Error("nav title must be English")
	}
	if css := string(files["OEBPS/Styles/stylesheet.css"]); !strings.Contains(css, "direction: ltr") {
		t.Errorf("stylesheet = %s", css)
	}
}

func TestGenerate_CoverResize(t *testing.T) {
	c := testContent(t)
	cfg := testConfig(t)
	cfg.Cover.Resize = common.ImageResizeModeStretch
	cfg.Cover.Width, cfg.Cover.Height = 20, 30
	out := filepath.Join(t.TempDir(), "book.epub")

	if err := Generate(context.Background(), c, out, cfg, setupTestLogger(t)); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	files, _ := readEPUB(t, out)
	data, ok := files["OEBPS/cover.jpg"]
	if !ok {
		t.Fatal("resized cover is missing")
	}
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF, 0xE0}) {
		t.Error("cover must carry JFIF segment")
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 20 || b.Dy() != 30 {
		t.Errorf("cover size = %v", b)
	}
	if !strings.Contains(string(files["OEBPS/cover.xhtml"]), `viewBox="0 0 20 30"`) {
		t.Errorf("cover page = %s", files["OEBPS/cover.xhtml"])
	}
}

func TestGenerate_Stylesheet(t *testing.T) {
	c := testContent(t)
	cfg := testConfig(t)

	styles := t.TempDir()
	cfg.StylesheetPath = filepath.Join(styles, "book.css")
	writeFile(t, cfg.StylesheetPath, []byte(`@font-face { font-family: x; src: url("fonts/x.ttf"); }
body { direction: {{ .Direction }}; background: url(missing.png); }`))
	writeFile(t, filepath.Join(styles, "fonts", "x.ttf"), []byte("font data"))

	font := filepath.Join(t.TempDir(), "Sans.otf")
	writeFile(t, font, []byte("otf data"))
	cfg.Fonts = []string{font}

	out := filepath.Join(t.TempDir(), "book.epub")
	if err := Generate(context.Background(), c, out, cfg, setupTestLogger(t)); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	files, _ := readEPUB(t, out)
	if string(files["OEBPS/Styles/fonts/x.ttf"]) != "font data" {
		t.Error("stylesheet resource must be packaged")
	}
	if string(files["OEBPS/Fonts/Sans.otf"]) != "otf data" {
		t.Error("configured font must be packaged")
	}
	if css := string(files["OEBPS/Styles/stylesheet.css"]); !strings.Contains(css, "direction: rtl;") {
		t.Errorf("stylesheet = %s", css)
	}
}

func TestGenerate_Failures(t *testing.T) {
	log := setupTestLogger(t)

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := Generate(ctx, testContent(t), filepath.Join(t.TempDir(), "x.epub"), testConfig(t), log); !errors.Is(err, context.Canceled) {
			t.Errorf("Generate() error = %v", err)
		}
	})
	t.Run("bad stylesheet", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.StylesheetPath = filepath.Join(t.TempDir(), "bad.css")
		writeFile(t, cfg.StylesheetPath, []byte("{{ .Nope"))
		out := filepath.Join(t.TempDir(), "x.epub")
		err := Generate(context.Background(), testContent(t), out, cfg, log)
		if !errors.Is(err, common.ErrGeneration) {
			t.Errorf("Generate() error = %v, want generation error", err)
		}
		if _, err := os.Stat(out); !os.IsNotExist(err) {
			t.Error("no output expected on failure")
		}
	})
}

func TestPassthrough(t *testing.T) {
	payload := filepath.Join(t.TempDir(), "DATA.DATAx")
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	w.Write([]byte(mimetypeContent))
	zw.Close()
	writeFile(t, payload, buf.Bytes())

	cfg := testConfig(t)
	out := filepath.Join(t.TempDir(), "sub", "book.epub")
	if err := Passthrough(payload, out, cfg, setupTestLogger(t)); err != nil {
		t.Fatalf("Passthrough() error = %v", err)
	}
	if files, _ := readEPUB(t, out); string(files["mimetype"]) != mimetypeContent {
		t.Error("payload content must be preserved")
	}

	// not an archive is copied verbatim
	writeFile(t, payload, []byte("opaque"))
	if err := Passthrough(payload, out, cfg, setupTestLogger(t)); err != nil {
		t.Fatalf("Passthrough() error = %v", err)
	}
	if data, _ := os.ReadFile(out); string(data) != "opaque" {
		t.Errorf("output = %q", data)
	}

	if err := Passthrough(filepath.Join(t.TempDir(), "missing"), out, cfg, setupTestLogger(t)); !errors.Is(err, common.ErrGeneration) {
		t.Errorf("Passthrough() error = %v", err)
	}
}

func TestAppendMarkup(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{"plain", `<p>a &amp; b</p>`, `<body><p>a &amp; b</p></body>`},
		{"image", `<img src="Images/x.png"/>`, `<body><img src="../Images/x.png" alt=""/></body>`},
		{"remote image", `<img src="http://example.com/x.png" alt="x"/>`, `<body><img src="http://example.com/x.png" alt="x"/></body>`},
		{"unclosed", `<p><strong>bold`, `<body><p><strong>bold</strong></p></body>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := etree.NewDocument()
			body := doc.CreateElement("body")
			if err := appendMarkup(body, tt.markup, "../"); err != nil {
				t.Fatal(err)
			}
			got, err := doc.WriteToString()
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("appendMarkup() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEnsureJFIF(t *testing.T) {
	if _, err := ensureJFIF([]byte{1, 2, 3, 4}); err == nil {
		t.Error("expected error for non jpeg data")
	}
	data := []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00}
	out, err := ensureJFIF(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(data)+18 || !bytes.HasPrefix(out, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}) {
		t.Errorf("ensureJFIF() = % x", out)
	}
	if again, _ := ensureJFIF(out); !bytes.Equal(again, out) {
		t.Error("segment must not be inserted twice")
	}
}
