package warc

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
)

// ArchiveFileName is the archive's file name inside the output directory.
const ArchiveFileName = "archive.warc.gz"

// Position locates one record inside the archive file.
type Position struct {
	Offset int64
	Length int64
}

// Writer appends records to the archive file. It is single-owner: exactly
// one goroutine writes, which is what keeps the file's record order
// meaningful. A write error is fatal to the archive; the Writer refuses
// further appends after one so a torn record is never followed by more data.
type Writer struct {
	f      *os.File
	offset int64
	broken bool
}

// NewWriter opens (or creates) the archive inside dir and positions itself
// at the end, so interrupted crawls can be resumed by appending.
func NewWriter(dir string) (*Writer, error) {
	path := filepath.Join(dir, ArchiveFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("warc: open archive %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("warc: stat archive %s: %w", path, err)
	}

	return &Writer{f: f, offset: info.Size()}, nil
}

// Append compresses the record into one gzip member and appends it. The
// member is built in memory first and written with a single call, so a
// failed write never leaves a half-record followed by a good one.
func (w *Writer) Append(rec *Record) (Position, error) {
	if w.broken {
		return Position{}, fmt.Errorf("warc: archive writer is poisoned by an earlier write error")
	}

	var raw bytes.Buffer
	rec.encode(&raw)

	var member bytes.Buffer
	zw, err := gzip.NewWriterLevel(&member, gzip.BestSpeed)
	if err != nil {
		return Position{}, fmt.Errorf("warc: create gzip member: %w", err)
	}
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return Position{}, fmt.Errorf("warc: compress record: %w", err)
	}
	if err := zw.Close(); err != nil {
		return Position{}, fmt.Errorf("warc: finish gzip member: %w", err)
	}

	n, err := w.f.Write(member.Bytes())
	if err != nil {
		w.broken = true
		return Position{}, fmt.Errorf("warc: append record: %w", err)
	}

	pos := Position{Offset: w.offset, Length: int64(n)}
	w.offset += int64(n)
	rec.Offset = pos.Offset
	rec.Length = pos.Length
	return pos, nil
}

// Size returns the current archive size in bytes.
func (w *Writer) Size() int64 {
	return w.offset
}

// Close syncs and closes the archive file. It runs on every shutdown path,
// clean or not, so whatever was durably appended stays readable.
func (w *Writer) Close() error {
	syncErr := w.f.Sync()
	closeErr := w.f.Close()
	if syncErr != nil {
		return fmt.Errorf("warc: sync archive: %w", syncErr)
	}
	return closeErr
}
