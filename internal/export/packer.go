package export

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yomogi/webarc/internal/digest"
	"github.com/yomogi/webarc/internal/surt"
	"github.com/yomogi/webarc/internal/warc"
)

// Bundle layout.
const (
	indexPath       = "indexes/index.cdx"
	pagesPath       = "pages/pages.jsonl"
	archivePath     = "archive/" + warc.ArchiveFileName
	datapackagePath = "datapackage.json"
)

// waczVersion is the bundle format version the manifest declares.
const waczVersion = "1.1.1"

// DataPackage is the bundle manifest.
type DataPackage struct {
	Profile     string             `json:"profile"`
	WACZVersion string             `json:"wacz_version"`
	Software    string             `json:"software"`
	Created     string             `json:"created"`
	Resources   []DataPackageEntry `json:"resources"`
}

// DataPackageEntry describes one bundled file.
type DataPackageEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Hash  string `json:"hash"`
	Bytes int64  `json:"bytes"`
}

// pageEntry is one pages.jsonl line.
type pageEntry struct {
	ID  string `json:"id"`
	URL string `json:"url"`
	TS  string `json:"ts"`
}

// pagesHeader is the first pages.jsonl line.
type pagesHeader struct {
	Format string `json:"format"`
	ID     string `json:"id"`
	Title  string `json:"title"`
}

// Packer builds a portable bundle from a finished archive directory.
type Packer struct {
	software string
	logger   *slog.Logger
}

// NewPacker creates a Packer. The software string goes into the manifest.
func NewPacker(software string, logger *slog.Logger) *Packer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Packer{software: software, logger: logger}
}

// Pack scans the archive inside archiveDir and writes the bundle to
// bundlePath. The scan rebuilds the index from the archive itself rather
// than trusting the catalog, so a bundle can be produced from a bare archive
// file. A truncated final record (crawl killed mid-append) is skipped with a
// warning; everything before it is bundled.
func (p *Packer) Pack(ctx context.Context, archiveDir, bundlePath string) (*DataPackage, error) {
	entries, pages, err := p.scan(ctx, archiveDir)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("export: archive in %s has no records", archiveDir)
	}
	sortEntries(entries)

	p.logger.Info("packing bundle", "records", len(entries), "output", bundlePath)

	out, err := os.Create(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("export: create bundle %s: %w", bundlePath, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	var resources []DataPackageEntry

	indexBytes, err := renderIndex(entries)
	if err != nil {
		return nil, err
	}
	entry, err := addDeflated(zw, indexPath, indexBytes)
	if err != nil {
		return nil, err
	}
	resources = append(resources, entry)

	pagesBytes, err := renderPages(pages)
	if err != nil {
		return nil, err
	}
	entry, err = addDeflated(zw, pagesPath, pagesBytes)
	if err != nil {
		return nil, err
	}
	resources = append(resources, entry)

	entry, err = addArchive(zw, filepath.Join(archiveDir, warc.ArchiveFileName))
	if err != nil {
		return nil, err
	}
	resources = append(resources, entry)

	manifest := &DataPackage{
		Profile:     "data-package",
		WACZVersion: waczVersion,
		Software:    p.software,
		Created:     time.Now().UTC().Format(time.RFC3339),
		Resources:   resources,
	}
	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: marshal manifest: %w", err)
	}
	if _, err := addDeflated(zw, datapackagePath, manifestBytes); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("export: finalize bundle: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("export: close bundle: %w", err)
	}

	return manifest, nil
}

// scan walks the archive once, building index entries and the page list.
func (p *Packer) scan(ctx context.Context, archiveDir string) ([]IndexEntry, []pageEntry, error) {
	r, err := warc.NewReader(archiveDir)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()

	var entries []IndexEntry
	var pages []pageEntry
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return entries, pages, nil
		}
		if errors.Is(err, warc.ErrTruncated) {
			p.logger.Warn("archive ends in a truncated record, bundling the intact prefix",
				"records", len(entries))
			return entries, pages, nil
		}
		if err != nil {
			return nil, nil, err
		}

		key, err := surt.Parse(rec.TargetURI())
		if err != nil {
			p.logger.Warn("skipping record with unparseable target URI",
				"uri", rec.TargetURI(), "error", err)
			continue
		}

		mime := rec.HTTPContentType()
		if rec.Type() == warc.TypeRevisit {
			mime = "warc/revisit"
		}

		entries = append(entries, IndexEntry{
			Key:  key,
			Time: rec.Date(),
			Block: Block{
				URL:      rec.TargetURI(),
				Digest:   rec.PayloadDigest(),
				MIME:     mime,
				Filename: archivePath,
				Offset:   rec.Offset,
				Length:   rec.Length,
				Status:   rec.HTTPStatus(),
			},
		})
		pages = append(pages, pageEntry{
			ID:  recordID(rec),
			URL: rec.TargetURI(),
			TS:  rec.Date().UTC().Format(time.RFC3339),
		})
	}
}

// recordID strips the <urn:uuid:...> wrapping from a WARC-Record-ID.
func recordID(rec *warc.Record) string {
	id := strings.TrimPrefix(rec.Header["WARC-Record-ID"], "<urn:uuid:")
	return strings.TrimSuffix(id, ">")
}

// renderIndex joins sorted entries into the CDXJ file body.
func renderIndex(entries []IndexEntry) ([]byte, error) {
	var buf bytes.Buffer
	for i := range entries {
		line, err := entries[i].Line()
		if err != nil {
			return nil, err
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// renderPages renders the pages.jsonl body: a header line, then one entry
// per page.
func renderPages(pages []pageEntry) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(pagesHeader{Format: "json-pages-1.0", ID: "pages", Title: "Crawled Pages"}); err != nil {
		return nil, fmt.Errorf("export: encode pages header: %w", err)
	}
	for _, page := range pages {
		if err := enc.Encode(page); err != nil {
			return nil, fmt.Errorf("export: encode page entry: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// addDeflated writes an in-memory file into the zip with compression and
// returns its manifest entry.
func addDeflated(zw *zip.Writer, path string, data []byte) (DataPackageEntry, error) {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: path, Method: zip.Deflate})
	if err != nil {
		return DataPackageEntry{}, fmt.Errorf("export: create %s in bundle: %w", path, err)
	}
	if _, err := w.Write(data); err != nil {
		return DataPackageEntry{}, fmt.Errorf("export: write %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return DataPackageEntry{
		Name:  filepath.Base(path),
		Path:  path,
		Hash:  digest.Prefix + hex.EncodeToString(sum[:]),
		Bytes: int64(len(data)),
	}, nil
}

// addArchive streams the archive file into the zip uncompressed, hashing it
// on the way through. Stored, not deflated: the records are already gzip
// members and must stay byte-addressable at the offsets the index carries.
func addArchive(zw *zip.Writer, path string) (DataPackageEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return DataPackageEntry{}, fmt.Errorf("export: open archive %s: %w", path, err)
	}
	defer f.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: archivePath, Method: zip.Store})
	if err != nil {
		return DataPackageEntry{}, fmt.Errorf("export: create %s in bundle: %w", archivePath, err)
	}

	h := sha256.New()
	n, err := io.Copy(w, io.TeeReader(f, h))
	if err != nil {
		return DataPackageEntry{}, fmt.Errorf("export: copy archive into bundle: %w", err)
	}

	return DataPackageEntry{
		Name:  warc.ArchiveFileName,
		Path:  archivePath,
		Hash:  digest.Prefix + hex.EncodeToString(h.Sum(nil)),
		Bytes: n,
	}, nil
}
