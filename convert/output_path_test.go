package convert

import (
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"jrr/book"
	"jrr/common"
	"jrr/config"
)

func setupTestDocumentConfig(t *testing.T, transliterate bool, template string) *config.DocumentConfig {
	t.Helper()
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Document.FileNameTransliterate = transliterate
	cfg.Document.OutputNameTemplate = template
	return &cfg.Document
}

func setupTestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

func TestBuildOutputPath(t *testing.T) {
	out := filepath.Join("/output")

	tests := []struct {
		name          string
		title         string
		bookType      common.BookType
		transliterate bool
		template      string
		want          string
	}{
		{
			name:     "default epub",
			title:    "Test Book",
			bookType: common.BookTypeEpub,
			want:     filepath.Join(out, "Test Book.epub"),
		},
		{
			name:     "default pdf",
			title:    "Test Book",
			bookType: common.BookTypePdf,
			want:     filepath.Join(out, "Test Book.pdf"),
		},
		{
			name:     "audio has no extension",
			title:    "Test Book",
			bookType: common.BookTypeMp3,
			want:     filepath.Join(out, "Test Book"),
		},
		{
			name:     "illegal characters",
			title:    `What? A "Book": Part 1`,
			bookType: common.BookTypeEpub,
			want:     filepath.Join(out, "What A Book Part 1.epub"),
		},
		{
			name:     "empty title uses id",
			title:    "???",
			bookType: common.BookTypeEpub,
			want:     filepath.Join(out, "1234.epub"),
		},
		{
			name:          "transliterated",
			title:         "My Book: Part 1",
			bookType:      common.BookTypeEpub,
			transliterate: true,
			want:          filepath.Join(out, "my-book-part-1.epub"),
		},
		{
			name:     "template with subdirectories",
			title:    "Test Book",
			bookType: common.BookTypeEpub,
			template: "{{ .Publisher }}/{{ index .Authors 0 }}/{{ .Title }}",
			want:     filepath.Join(out, "House", "John Doe", "Test Book.epub"),
		},
		{
			name:     "template cannot escape output",
			title:    "Test Book",
			bookType: common.BookTypePdf,
			template: "../../{{ .Title }}",
			want:     filepath.Join(out, "Test Book.pdf"),
		},
		{
			name:     "broken template falls back",
			title:    "Test Book",
			bookType: common.BookTypeEpub,
			template: "{{ .Title",
			want:     filepath.Join(out, "Test Book.epub"),
		},
		{
			name:     "template expanding to nothing falls back",
			title:    "Test Book",
			bookType: common.BookTypeEpub,
			template: "{{ .Missing }}",
			want:     filepath.Join(out, "Test Book.epub"),
		},
		{
			name:     "template only separators falls back",
			title:    "Test Book",
			bookType: common.BookTypeMp3,
			template: "/../",
			want:     filepath.Join(out, "Test Book"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testBook()
			b.Title = tt.title
			cfg := setupTestDocumentConfig(t, tt.transliterate, tt.template)

			got := buildOutputPath(b, tt.bookType, "en", out, cfg, setupTestLogger(t))
			if got != tt.want {
				t.Errorf("buildOutputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildOutputPath_TransliteratedSubdirs(t *testing.T) {
	b := &book.Book{ID: "9", Title: "Война и мир", Authors: []string{"Лев Толстой"}}
	cfg := setupTestDocumentConfig(t, true, "{{ index .Authors 0 }}/{{ .Title }}")

	got := buildOutputPath(b, common.BookTypeEpub, "ru", "out", cfg, setupTestLogger(t))
	want := filepath.Join("out", "lev-tolstoi", "voina-i-mir.epub")
	if got != want {
		t.Errorf("buildOutputPath() = %q, want %q", got, want)
	}
}

func TestSplitAndCleanPath(t *testing.T) {
	sep := string(filepath.Separator)
	tests := []struct {
		in   string
		want []string
	}{
		{"book", []string{"book"}},
		{"a" + sep + "b" + sep + "c", []string{"a", "b", "c"}},
		{"a" + sep + "b" + sep, []string{"a", "b"}},
		{sep + "a", []string{"a"}},
		{"", []string{}},
	}
	for _, tt := range tests {
		if got := splitAndCleanPath(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitAndCleanPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
