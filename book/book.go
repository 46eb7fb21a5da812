// Package book defines store book entity as it is known to the decryption
// pipeline and persisted in settings.
package book

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"jrr/common"
)

// Book describes single purchased title. Zero Key means legacy key.
type Book struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	URL          string          `json:"url"`
	Type         common.BookType `json:"type"`
	Publisher    string          `json:"publisher"`
	Authors      []string        `json:"authors"`
	Cover        string          `json:"cover,omitempty"`
	Thumb        string          `json:"thumb,omitempty"`
	BookPath     string          `json:"book_path,omitempty"`
	Access       bool            `json:"access"`
	FileMD5      string          `json:"file_md5"`
	Header       string          `json:"header"`
	Key          Key             `json:"key"`
	FileID       string          `json:"file_id"`
	LatestFileID string          `json:"latest_file_id"`
	Size         int64           `json:"size"`
	DownloadedAt int64           `json:"downloaded_at,omitempty"`
}

// Listing is a single item of store library listing.
type Listing struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	URL          string   `json:"url"`
	Type         string   `json:"type"`
	Publisher    string   `json:"publisher"`
	Authors      []string `json:"authors"`
	Cover        string   `json:"cover"`
	Thumb        string   `json:"thumb"`
	Access       bool     `json:"access"`
	FileMD5      string   `json:"file_md5"`
	Header       string   `json:"header"`
	FileID       string   `json:"file_id"`
	LatestFileID string   `json:"latest_file_id"`
	Size         int64    `json:"size"`
}

// parseType never fails, anything we cannot produce is unknown.
func parseType(s string) common.BookType {
	t, err := common.ParseBookType(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return common.BookTypeUnknown
	}
	return t
}

// FromListing builds book from store listing entry filling defaults.
func FromListing(l Listing) *Book {
	b := &Book{
		ID:           l.ID,
		Title:        l.Title,
		URL:          l.URL,
		Type:         parseType(l.Type),
		Publisher:    l.Publisher,
		Authors:      l.Authors,
		Cover:        l.Cover,
		Thumb:        l.Thumb,
		Access:       l.Access,
		FileMD5:      l.FileMD5,
		Header:       l.Header,
		Key:          LegacyKey(),
		FileID:       l.FileID,
		LatestFileID: l.LatestFileID,
		Size:         l.Size,
	}
	b.fillDefaults()
	return b
}

// FromSnapshot restores book previously saved with Snapshot.
func FromSnapshot(data []byte) (*Book, error) {
	type alias Book
	aux := struct {
		*alias
		Type string `json:"type"`
	}{alias: &alias{}}

	if err := json.Unmarshal(data, &aux); err != nil {
		return nil, fmt.Errorf("unable to decode book snapshot: %w", err)
	}
	b := (*Book)(aux.alias)
	b.Type = parseType(aux.Type)
	if len(b.Key) == 0 {
		b.Key = LegacyKey()
	}
	b.fillDefaults()
	return b, nil
}

// Snapshot serializes book for persistence.
func (b *Book) Snapshot() ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("unable to encode book snapshot: %w", err)
	}
	return data, nil
}

func (b *Book) fillDefaults() {
	if b.Authors == nil {
		b.Authors = []string{}
	}
	if b.FileID == "" {
		b.FileID = b.ID
	}
	if b.LatestFileID == "" {
		b.LatestFileID = b.FileID
	}
}

// UsesHeaderFlow tells if book key has to be recovered from encrypted header
// rather than using legacy key.
func (b *Book) UsesHeaderFlow() bool {
	return b.Header != ""
}

// URLFilename returns last path element of download URL.
func (b *Book) URLFilename() string {
	u := b.URL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if i := strings.LastIndex(u, "/"); i >= 0 {
		return u[i+1:]
	}
	return u
}

var typeMarks = map[common.BookType]string{
	common.BookTypePdf:  "[pdf]",
	common.BookTypeEpub: "[epub]",
	common.BookTypeMp3:  "[mp3]",
}

// DisplayName is used in listings: id, type mark and transliterated title.
func (b *Book) DisplayName() string {
	return fmt.Sprintf("%s%s: %s  (%s)", b.ID, typeMarks[b.Type], common.Transliterate(b.Title), b.Title)
}

// AuthorList joins authors the way they are used in audio file names.
func (b *Book) AuthorList(sep string) string {
	return strings.Join(b.Authors, sep)
}

// MarkDownloaded records location of the final artifact.
func (b *Book) MarkDownloaded(path string, at time.Time) {
	b.BookPath = path
	b.DownloadedAt = at.Unix()
}
