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
	"os"
	"path/filepath"
	"testing"

	"jrr/common"
)

func TestHeaderKey(t *testing.T) {
	sum := sha1.Sum([]byte("abc123platform"))
	want := hex.EncodeToString(sum[:])[:32]

	got := HeaderKey("abc123")
	if string(got) != want {
		t.Errorf("HeaderKey() = %s, want %s", got, want)
	}
	if len(got) != 32 {
		t.Errorf("key length = %d, want 32", len(got))
	}
}

func TestPKCS7Unpad(t *testing.T) {
	tests := []struct {
		name    string
		in      []byte
		want    []byte
		wantErr bool
	}{
		{"full block of padding", bytes.Repeat([]byte{16}, 16), []byte{}, false},
		{"partial", append([]byte("0123456789abc"), 3, 3, 3), []byte("0123456789abc"), false},
		{"zero pad", append([]byte("0123456789abcde"), 0), nil, true},
		{"inconsistent", append([]byte("0123456789abc"), 1, 2, 3), nil, true},
		{"not block aligned", []byte{1}, nil, true},
		{"empty", nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pkcs7Unpad(tt.in, aes.BlockSize)
			if (err != nil) != tt.wantErr {
				t.Fatalf("pkcs7Unpad() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(got, tt.want) {
				t.Errorf("pkcs7Unpad() = %q, want %q", got, tt.want)
			}
		})
	}
}

// encryptHeader produces what server sends as book header.
func encryptHeader(t *testing.T, plain []byte, token string) string {
	t.Helper()

	n := aes.BlockSize - len(plain)%aes.BlockSize
	padded := append(append([]byte{}, plain...), bytes.Repeat([]byte{byte(n)}, n)...)

	block, err := aes.NewCipher(HeaderKey(token))
	if err != nil {
		t.Fatal(err)
	}
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, []byte(headerIV)).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out)
}

func makeZip(t *testing.T, entries map[string][]byte, order ...string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range order {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(entries[name]); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// splitDownload prepares header and body file the way server delivers them.
func splitDownload(t *testing.T, dir string, combined []byte, token string) (string, string) {
	t.Helper()

	cut := 100
	header := encryptHeader(t, combined[:cut], token)
	body := filepath.Join(dir, "42.zip.body")
	if err := os.WriteFile(body, combined[cut:], 0644); err != nil {
		t.Fatal(err)
	}
	return header, body
}

func TestCombine(t *testing.T) {
	dir := t.TempDir()
	token := "abc123"

	bookKey := []byte{0x10, 0x20, 0xfe, 0xff}
	inner := makeZip(t, map[string][]byte{"Index/info.json": []byte(`{"type":"pdf"}`)}, "Index/info.json")
	combined := makeZip(t, map[string][]byte{"header": bookKey, "body": inner}, "header", "body")
	header, body := splitDownload(t, dir, combined, token)

	out := filepath.Join(dir, "42.zip")
	key, err := Combine(context.Background(), body, header, token, out)
	if err != nil {
		t.Fatalf("Combine() error = %v", err)
	}
	if !bytes.Equal(key, bookKey) {
		t.Errorf("key = %x, want %x", []byte(key), bookKey)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, inner) {
		t.Error("restored archive differs from original body")
	}

	// only body, restored archive and nothing else
	files, _ := os.ReadDir(dir)
	if len(files) != 2 {
		var names []string
		for _, f := range files {
			names = append(names, f.Name())
		}
		t.Errorf("unexpected files left: %v", names)
	}
}

func TestCombine_Failures(t *testing.T) {
	ctx := context.Background()
	token := "abc123"

	t.Run("missing body entry", func(t *testing.T) {
		dir := t.TempDir()
		combined := makeZip(t, map[string][]byte{"header": {1, 2, 3}, "other": bytes.Repeat([]byte("x"), 200)}, "header", "other")
		header, body := splitDownload(t, dir, combined, token)

		out := filepath.Join(dir, "42.zip")
		_, err := Combine(ctx, body, header, token, out)
		if !errors.Is(err, common.ErrKeyDerivation) {
			t.Fatalf("Combine() error = %v, want key derivation error", err)
		}
		if _, err := os.Stat(out); err == nil {
			t.Error("output must not be created")
		}
		files, _ := os.ReadDir(dir)
		if len(files) != 1 {
			t.Errorf("temporary files left: %d entries", len(files))
		}
	})

	t.Run("wrong token", func(t *testing.T) {
		dir := t.TempDir()
		combined := makeZip(t, map[string][]byte{"header": {1}, "body": bytes.Repeat([]byte("y"), 200)}, "header", "body")
		header, body := splitDownload(t, dir, combined, token)

		_, err := Combine(ctx, body, header, "not-the-token", filepath.Join(dir, "42.zip"))
		if !errors.Is(err, common.ErrKeyDerivation) {
			t.Errorf("Combine() error = %v, want key derivation error", err)
		}
	})

	t.Run("malformed header", func(t *testing.T) {
		dir := t.TempDir()
		_, err := Combine(ctx, filepath.Join(dir, "none"), "%%%not base64", token, filepath.Join(dir, "42.zip"))
		if !errors.Is(err, common.ErrKeyDerivation) {
			t.Errorf("Combine() error = %v, want key derivation error", err)
		}

		_, err = DecryptHeader(base64.StdEncoding.EncodeToString([]byte("short")), token)
		if !errors.Is(err, common.ErrKeyDerivation) {
			t.Errorf("DecryptHeader() error = %v, want key derivation error", err)
		}
	})
}
