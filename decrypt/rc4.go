// Package decrypt restores book archive entries and recovers per-book keys.
package decrypt

import (
	"bytes"
	"compress/zlib"
	"crypto/rc4"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"jrr/book"
	"jrr/common"
)

const (
	// DecryptedSuffix is appended to entry path for final decrypted output.
	DecryptedSuffix = "x"
	// intermediate RC4 output of text entries before inflating
	rawSuffix = "_x"

	// Text entries index and span tables are only encrypted since this
	// version of archive layout.
	textIndexVersion = 10
	// DefaultFormatVersion is assumed when archive does not declare one.
	DefaultFormatVersion = 5
)

var (
	reWholeBook = regexp.MustCompile(`(^|/)DATA\.DATA$`)
	reChapter   = regexp.MustCompile(`(^|/)chapter-[0-9]+\.dat$`)
	reHTML      = regexp.MustCompile(`\.html$`)
	reIndex     = regexp.MustCompile(`\.(json|spans)$`)
)

// Classify decides how archive entry has to be treated.
func Classify(name string, formatVersion int) common.EntryKind {
	switch {
	case reWholeBook.MatchString(name), reChapter.MatchString(name):
		return common.EntryKindBinary
	case reHTML.MatchString(name):
		return common.EntryKindText
	case formatVersion >= textIndexVersion && reIndex.MatchString(name) && path.Base(name) != "info.json":
		return common.EntryKindText
	}
	return common.EntryKindSkip
}

// Decrypted returns location of decrypted output for the entry path.
func Decrypted(name string) string {
	return name + DecryptedSuffix
}

// rc4Cipher derives keystream from hex form of the key, so signed/unsigned
// confusion is impossible at this point.
func rc4Cipher(key book.Key) (*rc4.Cipher, error) {
	raw, err := hex.DecodeString(key.Hex())
	if err != nil {
		return nil, err
	}
	c, err := rc4.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize cipher: %w", err)
	}
	return c, nil
}

// XOR applies RC4 keystream to data. Operation is its own inverse.
func XOR(data []byte, key book.Key) ([]byte, error) {
	c, err := rc4Cipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

func xorFile(from, to string, key book.Key) ([]byte, error) {
	data, err := os.ReadFile(from)
	if err != nil {
		return nil, err
	}
	out, err := XOR(data, key)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(to, out, 0644); err != nil {
		return nil, err
	}
	return out, nil
}

// Binary decrypts entry at name into name+"x".
func Binary(name string, key book.Key) error {
	if _, err := xorFile(name, Decrypted(name), key); err != nil {
		return fmt.Errorf("unable to decrypt %s: %w", filepath.Base(name), err)
	}
	return nil
}

// TextResult tells caller what happened to text entry.
type TextResult struct {
	Bytes int
	// Fallback is set when payload could not be inflated and empty text has
	// been written instead.
	Fallback bool
}

// Text decrypts entry into name+"_x", inflates it and writes UTF-8 text into
// name+"x". When inflating fails decrypted text is empty, this is not an
// error.
func Text(name string, key book.Key) (TextResult, error) {
	var res TextResult

	raw, err := xorFile(name, name+rawSuffix, key)
	if err != nil {
		return res, fmt.Errorf("unable to decrypt %s: %w", filepath.Base(name), err)
	}

	text, err := inflate(raw)
	if err != nil {
		text, res.Fallback = "", true
	}
	text = strings.ToValidUTF8(text, "\uFFFD")
	// object replacement characters mark line breaks in vendor text
	text = strings.ReplaceAll(text, "\uFFFC", "\n")

	if err := os.WriteFile(Decrypted(name), []byte(text), 0644); err != nil {
		return res, fmt.Errorf("unable to write %s: %w", filepath.Base(name), err)
	}
	res.Bytes = len(text)
	return res, nil
}

func inflate(data []byte) (string, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer zr.Close()

	var sb strings.Builder
	if _, err := io.Copy(&sb, zr); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Entry decrypts extracted file according to its kind.
func Entry(name string, kind common.EntryKind, key book.Key, log *zap.Logger) error {
	switch kind {
	case common.EntryKindBinary:
		return Binary(name, key)
	case common.EntryKindText:
		res, err := Text(name, key)
		if err != nil {
			return err
		}
		if res.Fallback {
			log.Debug("Unable to inflate text entry, using empty text", zap.String("entry", name))
		}
	}
	return nil
}
