package content

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"jrr/archive"
	"jrr/common"
	"jrr/decrypt"
	"jrr/markup"
)

const (
	infoName      = "info.json"
	preferredInfo = "Index/" + infoName
)

// Info is book metadata carried in archive.
type Info struct {
	FormatVersion int             `json:"formatVersion"`
	Type          common.BookType `json:"type"`
	Chapters      int             `json:"chapters"`
	Language      string          `json:"language"`
	Cover         string          `json:"cover"`
}

// DefaultInfo is used when archive carries no usable metadata.
func DefaultInfo() Info {
	return Info{FormatVersion: decrypt.DefaultFormatVersion}
}

// lenientInt accepts numbers and numeric strings, anything else is ignored.
func lenientInt(raw json.RawMessage) (int, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if v, err := n.Int64(); err == nil {
			return int(v), true
		}
		if f, err := n.Float64(); err == nil {
			return int(f), true
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v, true
		}
	}
	return 0, false
}

// ParseInfo never fails on content: unparseable document or fields keep
// defaults. Returned error only tells caller why defaults were used.
func ParseInfo(data []byte) (Info, error) {
	info := DefaultInfo()

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(markup.StripBOM(data), &raw); err != nil {
		return info, fmt.Errorf("unable to parse %s: %w", infoName, err)
	}
	if v, ok := raw["formatVersion"]; ok {
		if n, ok := lenientInt(v); ok && n > 0 {
			info.FormatVersion = n
		}
	}
	if v, ok := raw["chapters"]; ok {
		if n, ok := lenientInt(v); ok && n > 0 {
			info.Chapters = n
		}
	}
	if v, ok := raw["type"]; ok {
		var s string
		if json.Unmarshal(v, &s) == nil {
			if t, err := common.ParseBookType(strings.ToLower(strings.TrimSpace(s))); err == nil {
				info.Type = t
			}
		}
	}
	if v, ok := raw["language"]; ok {
		var s string
		if json.Unmarshal(v, &s) == nil {
			info.Language = strings.TrimSpace(s)
		}
	}
	if v, ok := raw["cover"]; ok {
		var s string
		if json.Unmarshal(v, &s) == nil {
			info.Cover = s
		}
	}
	return info, nil
}

// ReadInfo reads metadata directly from archive before it is extracted,
// Index/info.json is preferred to any other info.json. Archive without
// metadata produces defaults.
func ReadInfo(zipPath string) (Info, error) {
	var (
		data      []byte
		preferred bool
	)
	err := archive.Walk(zipPath, "", func(_ string, f *zip.File) error {
		if path.Base(f.Name) != infoName || preferred {
			return nil
		}
		if data != nil && f.Name != preferredInfo {
			return nil
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		defer rc.Close()

		if data, err = io.ReadAll(io.LimitReader(rc, 1<<20)); err != nil {
			return err
		}
		preferred = f.Name == preferredInfo
		return nil
	})
	if err != nil {
		return DefaultInfo(), err
	}
	if data == nil {
		return DefaultInfo(), nil
	}
	info, _ := ParseInfo(data)
	return info, nil
}

// LoadInfo reads metadata from extraction folder.
func LoadInfo(dir string) (Info, error) {
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(preferredInfo)))
	if errors.Is(err, os.ErrNotExist) {
		data, err = findInfo(dir)
	}
	if err != nil {
		return DefaultInfo(), err
	}
	if data == nil {
		return DefaultInfo(), nil
	}
	info, _ := ParseInfo(data)
	return info, nil
}

func findInfo(dir string) ([]byte, error) {
	var data []byte
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == infoName {
			data, err = os.ReadFile(p)
			if err != nil {
				return err
			}
			return filepath.SkipAll
		}
		return nil
	})
	return data, err
}

// Lang returns declared language or def when book does not declare one.
func (i Info) Lang(def string) string {
	if i.Language != "" {
		return i.Language
	}
	return def
}

var rtlBases = map[string]bool{"ar": true, "fa": true, "he": true, "ur": true, "yi": true, "ps": true}

// IsRTL reports whether text in language is written right to left.
// Unparseable tags are treated as right to left.
func IsRTL(lang string) bool {
	tag, err := language.Parse(lang)
	if err != nil {
		return true
	}
	base, _ := tag.Base()
	return rtlBases[base.String()]
}

// IsArabic reports whether language base is Arabic.
func IsArabic(lang string) bool {
	tag, err := language.Parse(lang)
	if err != nil {
		return false
	}
	base, _ := tag.Base()
	return base.String() == "ar"
}
