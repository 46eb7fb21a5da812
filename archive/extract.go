package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"jrr/common"
)

// Entry describes single extracted archive item.
type Entry struct {
	// Name is slash separated path inside archive.
	Name string
	// Path is location on disk.
	Path   string
	IsFile bool
	Size   int64
}

// EntryFunc is called synchronously for every extracted entry before the next
// one is processed.
type EntryFunc func(e Entry) error

// Extract unpacks src into dst preserving archive paths and returns number of
// extracted files. Empty source file is reported as corrupt archive so caller
// could remove it and download again, all other failures are extraction
// errors. Cancellation is checked between entries.
func Extract(ctx context.Context, src, dst string, fn EntryFunc) (int, error) {
	fi, err := os.Stat(src)
	if err != nil {
		return 0, common.NewError(common.ErrorKindExtraction, "stat archive", err)
	}
	if fi.Size() == 0 {
		return 0, common.NewError(common.ErrorKindCorruptArchive, "", fmt.Errorf("archive %q is empty", src))
	}

	r, err := zip.OpenReader(src)
	if err != nil {
		return 0, common.NewError(common.ErrorKindExtraction, "open archive", err)
	}
	defer r.Close()

	if err := os.MkdirAll(dst, 0755); err != nil {
		return 0, common.NewError(common.ErrorKindExtraction, "create destination", err)
	}

	count := 0
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		name := f.FileHeader.Name
		if !isSafePath(name) {
			return count, common.NewError(common.ErrorKindExtraction, "",
				fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name))
		}

		e := Entry{
			Name:   name,
			Path:   filepath.Join(dst, filepath.FromSlash(name)),
			IsFile: !f.FileInfo().IsDir(),
			Size:   int64(f.UncompressedSize64),
		}

		if e.IsFile {
			if err := extractFile(f, e.Path); err != nil {
				return count, common.NewError(common.ErrorKindExtraction, "extract "+name, err)
			}
			count++
		} else if err := os.MkdirAll(e.Path, 0755); err != nil {
			return count, common.NewError(common.ErrorKindExtraction, "create "+name, err)
		}

		if fn == nil {
			continue
		}
		if err := fn(e); err != nil {
			var ce *common.Error
			if errors.As(err, &ce) {
				return count, err
			}
			return count, common.NewError(common.ErrorKindExtraction, "process "+name, err)
		}
	}
	return count, nil
}

func extractFile(f *zip.File, to string) error {
	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return err
	}

	in, err := f.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(to)
	if err != nil {
		return err
	}
	defer out.Close()

	n, err := io.Copy(out, in)
	if err != nil {
		return err
	}
	if uint64(n) != f.UncompressedSize64 {
		return fmt.Errorf("short write: %d of %d bytes", n, f.UncompressedSize64)
	}
	return out.Close()
}
