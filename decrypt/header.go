package decrypt

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"jrr/book"
	"jrr/common"
)

const (
	headerKeySalt = "platform"
	headerKeyLen  = 32
	headerIV      = "1234567812345678"

	// names of entries in combined archive
	headerEntry = "header"
	bodyEntry   = "body"
)

var ErrInvalidPadding = errors.New("invalid PKCS7 padding")

// HeaderKey derives AES-256 key from user access token: first 32 characters
// of hex encoded SHA-1 of token with salt.
func HeaderKey(token string) []byte {
	sum := sha1.Sum([]byte(token + headerKeySalt))
	h := hex.EncodeToString(sum[:])
	if len(h) < headerKeyLen {
		h += strings.Repeat("0", headerKeyLen-len(h))
	}
	return []byte(h[:headerKeyLen])
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrInvalidPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrInvalidPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrInvalidPadding
		}
	}
	return data[:len(data)-n], nil
}

// DecryptHeader decodes base64 header and decrypts it with key derived from
// token. Any failure is key derivation error.
func DecryptHeader(header, token string) ([]byte, error) {
	enc, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header))
	if err != nil {
		return nil, common.NewError(common.ErrorKindKeyDerivation, "decode header", err)
	}
	if len(enc) == 0 || len(enc)%aes.BlockSize != 0 {
		return nil, common.NewError(common.ErrorKindKeyDerivation, "decrypt header",
			fmt.Errorf("invalid encrypted header size: %d (not multiple of %d)", len(enc), aes.BlockSize))
	}

	block, err := aes.NewCipher(HeaderKey(token))
	if err != nil {
		return nil, common.NewError(common.ErrorKindKeyDerivation, "decrypt header", err)
	}
	out := make([]byte, len(enc))
	cipher.NewCBCDecrypter(block, []byte(headerIV)).CryptBlocks(out, enc)

	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return nil, common.NewError(common.ErrorKindKeyDerivation, "decrypt header", err)
	}
	return plain, nil
}

// Combine restores real book archive from downloaded body and encrypted
// header. Decrypted header followed by body forms a zip which carries the
// book key ("header" entry) and the archive itself ("body" entry). Archive is
// written to outPath, key is returned. Temporary files never survive the call.
func Combine(ctx context.Context, bodyPath, header, token, outPath string) (key book.Key, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix, err := DecryptHeader(header, token)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(outPath), filepath.Base(outPath)+".*.combined")
	if err != nil {
		return nil, common.NewError(common.ErrorKindKeyDerivation, "create temporary file", err)
	}
	defer func() {
		tmp.Close()
		if er := os.Remove(tmp.Name()); er != nil && !errors.Is(er, os.ErrNotExist) {
			err = multierr.Append(err, er)
		}
	}()

	if err := concat(tmp, prefix, bodyPath); err != nil {
		return nil, common.NewError(common.ErrorKindKeyDerivation, "combine", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, err := zip.OpenReader(tmp.Name())
	if err != nil {
		return nil, common.NewError(common.ErrorKindKeyDerivation, "open combined archive", err)
	}
	defer r.Close()

	var hdr, body *zip.File
	for _, f := range r.File {
		switch f.Name {
		case headerEntry:
			hdr = f
		case bodyEntry:
			body = f
		}
	}
	if hdr == nil || body == nil {
		return nil, common.NewError(common.ErrorKindKeyDerivation, "",
			fmt.Errorf("combined archive is missing %q or %q entry", headerEntry, bodyEntry))
	}

	if key, err = readEntry(hdr); err != nil {
		return nil, common.NewError(common.ErrorKindKeyDerivation, "read key", err)
	}
	if err := copyEntry(body, outPath); err != nil {
		os.Remove(outPath)
		return nil, common.NewError(common.ErrorKindKeyDerivation, "write archive", err)
	}
	return key, nil
}

func concat(dst *os.File, prefix []byte, bodyPath string) error {
	body, err := os.Open(bodyPath)
	if err != nil {
		return err
	}
	defer body.Close()

	if _, err := io.Copy(dst, io.MultiReader(bytes.NewReader(prefix), body)); err != nil {
		return err
	}
	return dst.Sync()
}

func readEntry(f *zip.File) (book.Key, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return book.Key(data), nil
}

func copyEntry(f *zip.File, to string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(to)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return err
	}
	return out.Close()
}
