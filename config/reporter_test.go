package config

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readReport(t *testing.T, name string) map[string]string {
	t.Helper()

	r, err := zip.OpenReader(name)
	if err != nil {
		t.Fatalf("unable to open report: %v", err)
	}
	defer r.Close()

	out := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		out[f.Name] = string(data)
	}
	return out
}

func TestReport(t *testing.T) {
	dir := t.TempDir()
	conf := ReporterConfig{Destination: filepath.Join(dir, "report.zip")}
	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	// extracted book folder which is removed before report is closed
	book := filepath.Join(dir, "42")
	if err := os.MkdirAll(filepath.Join(book, "Index"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(book, "Index", "info.json"), []byte(`{"type":"epub"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := r.StoreCopy("book-42", book); err != nil {
		t.Fatalf("StoreCopy() error = %v", err)
	}
	if err := os.RemoveAll(book); err != nil {
		t.Fatal(err)
	}

	logFile := filepath.Join(dir, "final.log")
	if err := os.WriteFile(logFile, []byte("log line"), 0644); err != nil {
		t.Fatal(err)
	}
	r.Store("final.log", logFile)
	r.StoreData("config.yaml", []byte("version: 1\n"))

	temps := append([]string{}, r.temps...)
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	files := readReport(t, r.Name())
	if files["book-42/Index/info.json"] != `{"type":"epub"}` {
		t.Errorf("snapshot missing from report: %v", files)
	}
	if files["final.log"] != "log line" || files["config.yaml"] != "version: 1\n" {
		t.Errorf("unexpected report content: %v", files)
	}
	if !strings.Contains(files["MANIFEST"], "book-42") {
		t.Errorf("MANIFEST = %q", files["MANIFEST"])
	}

	// snapshots are removed, stored files are not
	for _, tmp := range temps {
		if _, err := os.Stat(tmp); !os.IsNotExist(err) {
			os.RemoveAll(tmp)
			t.Errorf("snapshot %s was not removed", tmp)
		}
	}
	if _, err := os.Stat(logFile); err != nil {
		t.Errorf("stored file should not be removed: %v", err)
	}
}

func TestReport_Overwrite(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	r.Store("a", "/tmp/a")
	r.Store("a", "/tmp/a")

	defer func() {
		if recover() == nil {
			t.Error("expected panic on conflicting store")
		}
	}()
	r.Store("a", "/tmp/b")
}

func TestReportClose_NilReport(t *testing.T) {
	var r *Report
	if err := r.Close(); err != nil {
		t.Errorf("Close on nil report should not error, got: %v", err)
	}
	r.Store("x", "y")
	r.StoreData("x", nil)
	if err := r.StoreCopy("x", "y"); err != nil {
		t.Errorf("StoreCopy on nil report should not error, got: %v", err)
	}
	if r.Name() != "" {
		t.Error("nil report must not have name")
	}
}

func TestReportClose_NilFile(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	if err := r.Close(); err != nil {
		t.Errorf("Close with nil file should not error, got: %v", err)
	}
}
