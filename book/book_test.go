package book

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"jrr/common"
)

func TestLegacyKey(t *testing.T) {
	want := []byte{0x73, 0xdc, 0x6e, 0xa3, 0x4e, 0xea, 0x3f, 0xb9, 0x61, 0x82, 0x56, 0x42, 0xdc, 0x2e, 0x0d, 0xa0}

	k := LegacyKey()
	if !bytes.Equal(k, want) {
		t.Errorf("LegacyKey() = %v, want %v", []byte(k), want)
	}
	if got := k.Hex(); got != "73dc6ea34eea3fb961825642dc2e0da0" {
		t.Errorf("Hex() = %s", got)
	}

	// returned key must be a copy
	k[0] = 0
	if LegacyKey()[0] != 0x73 {
		t.Error("LegacyKey() returned shared slice")
	}
}

func TestKeyJSON(t *testing.T) {
	var k Key
	if err := json.Unmarshal([]byte(`[115,-36,255,0]`), &k); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !bytes.Equal(k, []byte{0x73, 0xdc, 0xff, 0x00}) {
		t.Errorf("decoded key = %v", []byte(k))
	}

	data, err := json.Marshal(k)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `[115,220,255,0]` {
		t.Errorf("Marshal() = %s", data)
	}

	if err := json.Unmarshal([]byte(`[300]`), &k); err == nil {
		t.Error("expected out of range error")
	}
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("73dc6ea34eea3fb961825642dc2e0da0")
	if err != nil {
		t.Fatalf("ParseKey() error = %v", err)
	}
	if !bytes.Equal(k, LegacyKey()) {
		t.Error("parsed key differs from legacy key")
	}
	if _, err := ParseKey("zz"); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestFromListing(t *testing.T) {
	b := FromListing(Listing{
		ID:      "42",
		Title:   "Test",
		URL:     "https://cdn.example.com/books/42.zip?sig=1",
		Type:    "comic",
		Authors: nil,
	})

	if b.Type != common.BookTypeUnknown {
		t.Errorf("Type = %v, want unknown", b.Type)
	}
	if !bytes.Equal(b.Key, LegacyKey()) {
		t.Error("expected legacy key by default")
	}
	if b.FileID != "42" || b.LatestFileID != "42" {
		t.Errorf("file ids = %q/%q, want book id", b.FileID, b.LatestFileID)
	}
	if b.Authors == nil {
		t.Error("authors must not be nil")
	}
	if b.UsesHeaderFlow() {
		t.Error("book without header must use legacy flow")
	}
	if got := b.URLFilename(); got != "42.zip" {
		t.Errorf("URLFilename() = %q", got)
	}

	b = FromListing(Listing{ID: "7", Type: "MP3", FileID: "8", Header: "aGVhZGVy"})
	if b.Type != common.BookTypeMp3 {
		t.Errorf("Type = %v, want mp3", b.Type)
	}
	if b.LatestFileID != "8" {
		t.Errorf("LatestFileID = %q, want file id", b.LatestFileID)
	}
	if !b.UsesHeaderFlow() {
		t.Error("book with header must use header flow")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	b := FromListing(Listing{ID: "1", Title: "كتاب", Type: "epub", Authors: []string{"A", "B"}})
	b.Key = Key{1, 2, 250}
	b.MarkDownloaded("/books/1.epub", time.Unix(1700000000, 0))

	data, err := b.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	got, err := FromSnapshot(data)
	if err != nil {
		t.Fatalf("FromSnapshot() error = %v", err)
	}
	if got.Type != common.BookTypeEpub || got.Title != b.Title || got.BookPath != b.BookPath || got.DownloadedAt != 1700000000 {
		t.Errorf("restored book differs: %+v", got)
	}
	if !bytes.Equal(got.Key, b.Key) {
		t.Errorf("restored key = %v", []byte(got.Key))
	}
}

func TestFromSnapshot_Legacy(t *testing.T) {
	// persisted by older versions: signed key, "-" type
	data := `{"id":"5","title":"x","url":"","type":"-","publisher":"","authors":["a"],"access":true,"file_md5":"","header":"","key":[115,-36,110,-93,78,-22,63,-71,97,-126,86,66,-36,46,13,-96],"file_id":"5","latest_file_id":"5","size":10}`
	b, err := FromSnapshot([]byte(data))
	if err != nil {
		t.Fatalf("FromSnapshot() error = %v", err)
	}
	if b.Type != common.BookTypeUnknown {
		t.Errorf("Type = %v, want unknown", b.Type)
	}
	if !bytes.Equal(b.Key, LegacyKey()) {
		t.Error("signed key not normalized")
	}

	b, err = FromSnapshot([]byte(`{"id":"6","type":"pdf"}`))
	if err != nil {
		t.Fatalf("FromSnapshot() error = %v", err)
	}
	if !bytes.Equal(b.Key, LegacyKey()) {
		t.Error("missing key must default to legacy key")
	}

	if _, err := FromSnapshot([]byte(`{`)); err == nil {
		t.Error("expected error for malformed snapshot")
	}
}

func TestDisplayName(t *testing.T) {
	b := &Book{ID: "9", Title: "Война", Type: common.BookTypePdf}
	if got := b.DisplayName(); !strings.HasPrefix(got, "9[pdf]: Voina") {
		t.Errorf("DisplayName() = %q", got)
	}
}
