// Package audio turns decrypted audio book chapters into named MP3 tracks
// with extended M3U playlist.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"jrr/book"
	"jrr/common"
	"jrr/config"
	"jrr/content"
	"jrr/decrypt"
	"jrr/markup"
)

const (
	audioDir = "Audio"
	sanitize = " "
)

// Track is single playlist entry.
type Track struct {
	Name    string
	Seconds int
	File    string
	// Source is decrypted chapter binary in extraction folder.
	Source string
}

// ChapterSource returns location of decrypted chapter binary.
func ChapterSource(dir string, index int) string {
	return decrypt.Decrypted(filepath.Join(dir, audioDir, fmt.Sprintf("chapter-%03d.dat", index)))
}

// LoadChapters reads audio table of contents, entries carry track length in
// seconds. Table is optional: absent or unparseable table produces nil.
func LoadChapters(dir string, log *zap.Logger) []markup.TOCEntry {
	toc, err := content.LoadTOC(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("Unable to load audio table of contents, using chapter numbers", zap.Error(err))
		}
		return nil
	}
	return toc
}

// chapterAt falls back to numbered chapter of unknown length.
func chapterAt(chapters []markup.TOCEntry, index int) markup.TOCEntry {
	if index <= len(chapters) && chapters[index-1].Title != "" {
		return chapters[index-1]
	}
	return markup.TOCEntry{Title: fmt.Sprintf("chapter-%02d", index)}
}

func authors(b *book.Book) string {
	return strings.ReplaceAll(b.AuthorList("+"), "_", "-")
}

// Tracks resolves target names of count chapters.
func Tracks(b *book.Book, dir string, count int, chapters []markup.TOCEntry) []Track {
	who, title := authors(b), common.SanitizeFileName(b.Title, sanitize)

	tracks := make([]Track, 0, count)
	for i := 1; i <= count; i++ {
		ch := chapterAt(chapters, i)
		tracks = append(tracks, Track{
			Name:    fmt.Sprintf("%s - %s - %s", who, title, ch.Title),
			Seconds: max(ch.Length, 0),
			File:    common.SanitizeFileName(fmt.Sprintf("%s_%s_%02d_%s.mp3", who, title, i, ch.Title), sanitize),
			Source:  ChapterSource(dir, i),
		})
	}
	return tracks
}

// PlaylistName returns file name of the book playlist.
func PlaylistName(b *book.Book) string {
	return common.SanitizeFileName(fmt.Sprintf("%s_%s_00_Playlist.m3u8", authors(b), common.SanitizeFileName(b.Title, sanitize)), sanitize)
}

// Playlist renders extended M3U playlist. Empty cover or album omit their
// tags.
func Playlist(tracks []Track, cover, album string) string {
	var sb strings.Builder
	sb.WriteString("#EXTM3U\n#EXTENC: UTF-8")
	if cover != "" {
		sb.WriteString("\n#EXTIMG:" + cover)
	}
	if album != "" {
		sb.WriteString("\n#EXTALB:" + album)
	}
	for _, t := range tracks {
		fmt.Fprintf(&sb, "\n#EXTINF:%d,%s\n%s", t.Seconds, t.Name, t.File)
	}
	return sb.String()
}

const chapterPattern = "chapter-*.dat" + decrypt.DecryptedSuffix

// countChapters is used when metadata does not declare number of chapters.
func countChapters(dir string) int {
	names, _ := filepath.Glob(filepath.Join(dir, audioDir, chapterPattern))
	return len(names)
}

// Generate moves decrypted chapters of book extracted into dir to outputDir
// giving them readable names and writes playlist next to them. Nothing is
// moved unless every chapter is present. Tracks are staged in work area and
// directory is moved to its final location when complete.
func Generate(ctx context.Context, b *book.Book, info content.Info, dir, outputDir string, cfg *config.AudioConfig, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log = log.Named("audio")

	count := info.Chapters
	if count == 0 {
		count = countChapters(dir)
		log.Debug("Chapter count is not declared, using chapter files", zap.Int("chapters", count))
	}
	if count == 0 {
		return common.NewError(common.ErrorKindGeneration, "audio", errors.New("book has no chapters"))
	}

	tracks := Tracks(b, dir, count, LoadChapters(dir, log))
	for i, t := range tracks {
		if _, err := os.Stat(t.Source); err != nil {
			return common.NewError(common.ErrorKindGeneration, "audio", fmt.Errorf("chapter %d: %w", i+1, err))
		}
	}

	stage := dir + ".audio"
	if err := os.RemoveAll(stage); err != nil {
		return common.NewError(common.ErrorKindGeneration, "audio", err)
	}
	if err := os.MkdirAll(stage, 0755); err != nil {
		return common.NewError(common.ErrorKindGeneration, "audio", err)
	}

	log.Info("Generating audio book", zap.Int("tracks", len(tracks)), zap.String("output", outputDir))
	if err := assemble(ctx, b, info, dir, stage, tracks, cfg, log); err != nil {
		return common.NewError(common.ErrorKindGeneration, "audio", err)
	}
	if err := common.Move(stage, outputDir); err != nil {
		return common.NewError(common.ErrorKindGeneration, "audio", err)
	}
	return nil
}

func assemble(ctx context.Context, b *book.Book, info content.Info, dir, stage string, tracks []Track, cfg *config.AudioConfig, log *zap.Logger) error {
	for _, t := range tracks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.Rename(t.Source, filepath.Join(stage, t.File)); err != nil {
			return fmt.Errorf("unable to stage track: %w", err)
		}
		log.Debug("Track staged", zap.String("file", t.File), zap.Int("seconds", t.Seconds))
	}

	var cover, album string
	if cfg.PlaylistCover {
		cover = stageCover(info.Cover, dir, stage, log)
	}
	if cfg.Album {
		album = b.AuthorList("+")
	}
	if err := os.WriteFile(filepath.Join(stage, PlaylistName(b)), []byte(Playlist(tracks, cover, album)), 0644); err != nil {
		return fmt.Errorf("unable to write playlist: %w", err)
	}
	return nil
}

// stageCover copies cover image shipped with the book next to the tracks,
// other references are kept as they are.
func stageCover(cover, dir, stage string, log *zap.Logger) string {
	if cover == "" || strings.Contains(cover, "://") {
		return cover
	}
	name := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(cover, `\`, "/")), "/")
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil {
		log.Debug("Cover is not part of the book", zap.String("cover", cover), zap.Error(err))
		return cover
	}
	target := "cover" + path.Ext(name)
	if err := os.WriteFile(filepath.Join(stage, target), data, 0644); err != nil {
		log.Warn("Unable to copy cover", zap.Error(err))
		return cover
	}
	return target
}
