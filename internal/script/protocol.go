package script

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/yomogi/webarc/internal/model"
)

// Host-to-script opcodes.
const (
	opPage  byte = 0x00 // page frame: metadata + body chunks
	opClose byte = 0x03 // shut the script down
)

// Script-to-host opcodes.
const (
	opSubmit byte = 0x00 // submit a discovered URL
	opDrop   byte = 0x01 // drop the page from the archive
	opEnd    byte = 0x02 // done with this page
)

// bodyChunkSize is how the page body is split into length-prefixed chunks.
const bodyChunkSize = 64 * 1024

// pageMeta is the JSON metadata block of a page frame.
type pageMeta struct {
	ID        uuid.UUID   `json:"id"`
	URL       string      `json:"url"`
	FinalURL  string      `json:"final_url"`
	Status    int         `json:"status"`
	Proto     string      `json:"proto"`
	Headers   http.Header `json:"headers"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// hostWriter frames host-to-script messages.
type hostWriter struct {
	w *bufio.Writer
}

func newHostWriter(w io.Writer) *hostWriter {
	return &hostWriter{w: bufio.NewWriter(w)}
}

// writePage sends a fetched page: the opcode, a u64-LE length-prefixed JSON
// metadata block, then u64-LE length-prefixed body chunks ending with a
// zero-length terminator.
func (hw *hostWriter) writePage(res *model.FetchResult) error {
	meta, err := json.Marshal(pageMeta{
		ID:        res.ID,
		URL:       res.URL,
		FinalURL:  res.FinalURL,
		Status:    res.StatusCode,
		Proto:     res.Proto,
		Headers:   res.Headers,
		FetchedAt: res.FetchedAt,
	})
	if err != nil {
		return fmt.Errorf("script: marshal page metadata: %w", err)
	}

	if err := hw.w.WriteByte(opPage); err != nil {
		return err
	}
	if err := binary.Write(hw.w, binary.LittleEndian, uint64(len(meta))); err != nil {
		return err
	}
	if _, err := hw.w.Write(meta); err != nil {
		return err
	}

	body := res.Body
	for len(body) > 0 {
		chunk := body
		if len(chunk) > bodyChunkSize {
			chunk = chunk[:bodyChunkSize]
		}
		if err := binary.Write(hw.w, binary.LittleEndian, uint64(len(chunk))); err != nil {
			return err
		}
		if _, err := hw.w.Write(chunk); err != nil {
			return err
		}
		body = body[len(chunk):]
	}
	if err := binary.Write(hw.w, binary.LittleEndian, uint64(0)); err != nil {
		return err
	}

	return hw.w.Flush()
}

// writeClose tells the script to exit.
func (hw *hostWriter) writeClose() error {
	if err := hw.w.WriteByte(opClose); err != nil {
		return err
	}
	return hw.w.Flush()
}

// reply is one script-to-host message.
type reply struct {
	op  byte
	url string // set for opSubmit
}

// hostReader decodes script-to-host messages.
type hostReader struct {
	r *bufio.Reader
}

func newHostReader(r io.Reader) *hostReader {
	return &hostReader{r: bufio.NewReader(r)}
}

// readReply reads the next script message. A malformed message is returned
// as an error; the caller treats it as a protocol violation and discards the
// instance.
func (hr *hostReader) readReply() (reply, error) {
	op, err := hr.r.ReadByte()
	if err != nil {
		return reply{}, err
	}

	switch op {
	case opSubmit:
		var n uint16
		if err := binary.Read(hr.r, binary.LittleEndian, &n); err != nil {
			return reply{}, err
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(hr.r, buf); err != nil {
			return reply{}, err
		}
		return reply{op: opSubmit, url: string(buf)}, nil
	case opDrop, opEnd:
		return reply{op: op}, nil
	default:
		return reply{}, fmt.Errorf("script: unexpected opcode 0x%02x", op)
	}
}
