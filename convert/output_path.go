package convert

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"jrr/book"
	"jrr/common"
	"jrr/config"
)

// buildOutputPath returns location of final artifact. It uses either default
// naming scheme (book title) or user-defined template which may introduce
// subdirectories. Every path segment is cleaned and, if requested,
// transliterated. Audio books produce directory so there is no extension.
func buildOutputPath(b *book.Book, t common.BookType, lang, outDir string, cfg *config.DocumentConfig, log *zap.Logger) string {
	defaultFile := buildDefaultFileName(b, cfg) + t.Ext()

	if cfg.OutputNameTemplate == "" {
		return filepath.Join(outDir, defaultFile)
	}

	expandedName := expandOutputNameTemplate(b, t, lang, cfg, log)
	if expandedName == "" {
		// fallback to default name if template expansion failed
		return filepath.Join(outDir, defaultFile)
	}

	if name := assemblePathWithSubdirs(outDir, expandedName, t, cfg); name != "" {
		return name
	}
	return filepath.Join(outDir, defaultFile)
}

func buildDefaultFileName(b *book.Book, cfg *config.DocumentConfig) string {
	name := cleanPathSegment(b.Title, cfg)
	if name == "" {
		name = common.SanitizeFileName(b.ID, " ")
	}
	return name
}

func expandOutputNameTemplate(b *book.Book, t common.BookType, lang string, cfg *config.DocumentConfig, log *zap.Logger) string {
	values := buildValues(b, config.OutputNameTemplateFieldName, t, lang)
	expandedName, err := expandTemplate(values, config.OutputNameTemplateFieldName, cfg.OutputNameTemplate)
	if err != nil {
		log.Warn("Unable to prepare output filename", zap.Error(err))
		return ""
	}
	return filepath.FromSlash(strings.TrimSpace(expandedName))
}

// assemblePathWithSubdirs takes an expanded template name (which may contain
// path separators for subdirectories) and assembles it into a full output path,
// cleaning and transliterating segments as needed. Empty result means nothing
// usable was left.
func assemblePathWithSubdirs(outDir, expandedName string, t common.BookType, cfg *config.DocumentConfig) string {
	pathSegments := splitAndCleanPath(expandedName)

	dirParts := make([]string, 0, len(pathSegments)+1)
	dirParts = append(dirParts, outDir)
	for _, segment := range pathSegments {
		// segments like ".." must not escape output directory
		if segment = cleanPathSegment(segment, cfg); segment != "" {
			dirParts = append(dirParts, segment)
		}
	}
	if len(dirParts) == 1 {
		return ""
	}

	dirParts[len(dirParts)-1] += t.Ext()
	return filepath.Join(dirParts...)
}

func splitAndCleanPath(path string) []string {
	path = strings.TrimSuffix(path, string(os.PathSeparator))
	segments := make([]string, 0, 8)

	for head, tail := filepath.Split(path); tail != ""; head, tail = filepath.Split(head) {
		segments = slices.Insert(segments, 0, tail)
		head = strings.TrimSuffix(head, string(os.PathSeparator))
		if head == "" {
			break
		}
	}

	return segments
}

func cleanPathSegment(segment string, cfg *config.DocumentConfig) string {
	if cfg.FileNameTransliterate {
		segment = slug.Make(common.Transliterate(segment))
	}
	return common.SanitizeFileName(segment, " ")
}
