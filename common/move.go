package common

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Move renames file or directory tree from into to creating parent directory
// as necessary. When rename is impossible (target on different volume) data
// is copied and source removed.
func Move(from, to string) error {
	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return fmt.Errorf("unable to create directory for %q: %w", to, err)
	}
	if err := os.Rename(from, to); err == nil {
		return nil
	}
	if err := Copy(from, to); err != nil {
		return err
	}
	return os.RemoveAll(from)
}

// Copy duplicates file or directory tree keeping permissions and modification
// times of regular files. Special files are skipped. Partial copy is removed
// on failure.
func Copy(from, to string) error {
	fi, err := os.Stat(from)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return err
	}
	if fi.IsDir() {
		err = copyTree(from, to)
	} else {
		err = copyFile(from, to, fi)
	}
	if err != nil {
		os.RemoveAll(to)
	}
	return err
}

func copyTree(from, to string) error {
	return filepath.WalkDir(from, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(from, p)
		if err != nil {
			return err
		}
		target := filepath.Join(to, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0755)
		case !d.Type().IsRegular():
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(p, target, fi)
	})
}

func copyFile(from, to string, fi fs.FileInfo) error {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(to, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("unable to copy %q: %w", from, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(to, fi.ModTime(), fi.ModTime())
}
