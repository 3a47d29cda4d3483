package main

import (
	"archive/zip"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// TestArchiveThenExport crawls a small local site through the CLI and packs
// the result into a bundle, covering the two commands end to end.
func TestArchiveThenExport(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/about">about</a><a href="/contact">contact</a></body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>about page</body></html>`)
	})
	mux.HandleFunc("/contact", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>contact page</body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	archiveDir := filepath.Join(t.TempDir(), "archive")
	bundlePath := filepath.Join(t.TempDir(), "site.wacz")

	root := NewRootCmd()
	root.SetArgs([]string{
		"archive",
		"-o", archiveDir,
		"-d", "1",
		"--host-delay", "0s",
		server.URL + "/",
	})
	if err := root.Execute(); err != nil {
		t.Fatalf("archive command failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(archiveDir, "archive.warc.gz")); err != nil {
		t.Fatalf("archive file should exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(archiveDir, "report.md")); err != nil {
		t.Errorf("crawl report should exist: %v", err)
	}

	root = NewRootCmd()
	root.SetArgs([]string{
		"export",
		"-i", archiveDir,
		"-o", bundlePath,
	})
	if err := root.Execute(); err != nil {
		t.Fatalf("export command failed: %v", err)
	}

	zr, err := zip.OpenReader(bundlePath)
	if err != nil {
		t.Fatalf("bundle should be a valid zip: %v", err)
	}
	defer zr.Close()

	want := map[string]bool{
		"datapackage.json":        false,
		"indexes/index.cdx":       false,
		"pages/pages.jsonl":       false,
		"archive/archive.warc.gz": false,
	}
	for _, f := range zr.File {
		if _, ok := want[f.Name]; ok {
			want[f.Name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("bundle should contain %s", name)
		}
	}
}

// TestExportMissingArchive tests that export fails cleanly when the archive
// directory has nothing to pack.
func TestExportMissingArchive(t *testing.T) {
	t.Parallel()

	bundlePath := filepath.Join(t.TempDir(), "empty.wacz")

	root := NewRootCmd()
	root.SetArgs([]string{
		"export",
		"-i", t.TempDir(),
		"-o", bundlePath,
	})
	if err := root.Execute(); err == nil {
		t.Fatal("expected error for empty archive directory")
	}

	if _, err := os.Stat(bundlePath); !os.IsNotExist(err) {
		t.Error("failed export should not leave a bundle file behind")
	}
}
