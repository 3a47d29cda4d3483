package warc

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrTruncated is returned when the archive ends inside a gzip member,
// which happens when a crawl was killed mid-append. Records before the torn
// member have already been returned and are valid.
var ErrTruncated = errors.New("warc: archive ends in a truncated record")

// Reader scans the archive sequentially, one record per gzip member,
// reporting each record's byte offset and compressed length.
type Reader struct {
	f  *os.File
	cr *countingReader
	br *bufio.Reader
}

// NewReader opens the archive inside dir for a sequential scan.
func NewReader(dir string) (*Reader, error) {
	path := filepath.Join(dir, ArchiveFileName)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("warc: open archive %s: %w", path, err)
	}

	cr := &countingReader{r: f}
	return &Reader{f: f, cr: cr, br: bufio.NewReader(cr)}, nil
}

// Next returns the next record. It returns io.EOF at the clean end of the
// archive and ErrTruncated when the final member is torn.
func (r *Reader) Next() (*Record, error) {
	offset := r.cr.n - int64(r.br.Buffered())

	zr, err := gzip.NewReader(r.br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, ErrTruncated
	}
	zr.Multistream(false)

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, ErrTruncated
	}
	if err := zr.Close(); err != nil {
		return nil, ErrTruncated
	}

	rec, err := decode(raw)
	if err != nil {
		return nil, err
	}
	rec.Offset = offset
	rec.Length = r.cr.n - int64(r.br.Buffered()) - offset
	return rec, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// headerSpelling restores the writer's header names from textproto's
// canonical MIME form, which lowercases the URI/ID suffixes (for example
// "WARC-Target-URI" comes back as "Warc-Target-Uri").
var headerSpelling = map[string]string{
	"Warc-Type":           "WARC-Type",
	"Warc-Target-Uri":     "WARC-Target-URI",
	"Warc-Date":           "WARC-Date",
	"Warc-Record-Id":      "WARC-Record-ID",
	"Warc-Protocol":       "WARC-Protocol",
	"Warc-Block-Digest":   "WARC-Block-Digest",
	"Warc-Payload-Digest": "WARC-Payload-Digest",
	"Warc-Profile":        "WARC-Profile",
}

// decode parses one decompressed record: version line, WARC headers, blank
// line, then Content-Length block bytes.
func decode(raw []byte) (*Record, error) {
	version, rest, ok := bytes.Cut(raw, []byte("\r\n"))
	if !ok || !strings.HasPrefix(string(version), "WARC/") {
		return nil, fmt.Errorf("warc: malformed record: missing version line")
	}

	br := bufio.NewReader(bytes.NewReader(rest))
	tp := textproto.NewReader(br)
	mime, err := tp.ReadMIMEHeader()
	if err != nil {
		return nil, fmt.Errorf("warc: malformed record headers: %w", err)
	}

	// Restore the writer's spellings so lookups like TargetURI() match.
	header := make(map[string]string, len(mime))
	for name, values := range mime {
		if spelled, ok := headerSpelling[name]; ok {
			name = spelled
		} else if strings.HasPrefix(name, "Warc-") {
			name = "WARC-" + strings.TrimPrefix(name, "Warc-")
		}
		header[name] = values[0]
	}

	length, err := strconv.Atoi(header["Content-Length"])
	if err != nil {
		return nil, fmt.Errorf("warc: malformed Content-Length: %w", err)
	}

	block := make([]byte, length)
	if _, err := io.ReadFull(br, block); err != nil {
		return nil, fmt.Errorf("warc: short record block: %w", err)
	}

	return &Record{Header: header, Block: block}, nil
}

// countingReader tracks how many bytes have been consumed from the
// underlying file, letting the reader compute member offsets despite the
// bufio layer's read-ahead.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
