package warc

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yomogi/webarc/internal/model"
)

// Record types.
const (
	TypeResponse = "response"
	TypeRevisit  = "revisit"
)

// revisitProfile is the WARC 1.1 profile URI for digest-based revisits.
const revisitProfile = "http://netpreserve.org/warc/1.1/revisit/identical-payload-digest"

// Record is one archive record, either freshly built for writing or decoded
// from the archive file.
type Record struct {
	// Offset and Length locate the record's gzip member in the archive
	// file. Set by the writer on append and by the reader on scan.
	Offset int64
	Length int64

	// Header holds the WARC header fields.
	Header map[string]string

	// Block is the record block. For response records this is the raw HTTP
	// exchange (status line, headers, body); revisit records have none.
	Block []byte
}

// NewResponse builds a response record from a fetch result. The digest is
// the sha256 of the body in sha256:<hex> form; it is stored both as the
// block digest and, for dedup lookups on warm starts, the payload digest.
func NewResponse(res *model.FetchResult, digest string) *Record {
	block := httpBlock(res)
	return &Record{
		Header: map[string]string{
			"WARC-Type":           TypeResponse,
			"WARC-Target-URI":     res.FinalURL,
			"WARC-Date":           res.FetchedAt.UTC().Format(time.RFC3339),
			"WARC-Record-ID":      fmt.Sprintf("<urn:uuid:%s>", res.ID),
			"WARC-Protocol":       protocolName(res.Proto),
			"WARC-Block-Digest":   digest,
			"WARC-Payload-Digest": digest,
			"Content-Type":        "application/http;msgtype=response",
			"Content-Length":      strconv.Itoa(len(block)),
		},
		Block: block,
	}
}

// NewRevisit builds a revisit record pointing at previously stored content
// with the same payload digest. It carries the response metadata but no
// block.
func NewRevisit(res *model.FetchResult, digest string) *Record {
	return &Record{
		Header: map[string]string{
			"WARC-Type":           TypeRevisit,
			"WARC-Target-URI":     res.FinalURL,
			"WARC-Date":           res.FetchedAt.UTC().Format(time.RFC3339),
			"WARC-Record-ID":      fmt.Sprintf("<urn:uuid:%s>", res.ID),
			"WARC-Protocol":       protocolName(res.Proto),
			"WARC-Profile":        revisitProfile,
			"WARC-Payload-Digest": digest,
			"Content-Length":      "0",
		},
	}
}

// Type returns the WARC-Type header.
func (r *Record) Type() string { return r.Header["WARC-Type"] }

// TargetURI returns the WARC-Target-URI header.
func (r *Record) TargetURI() string { return r.Header["WARC-Target-URI"] }

// Date returns the parsed WARC-Date, or the zero time.
func (r *Record) Date() time.Time {
	t, _ := time.Parse(time.RFC3339, r.Header["WARC-Date"])
	return t
}

// PayloadDigest returns the WARC-Payload-Digest header.
func (r *Record) PayloadDigest() string { return r.Header["WARC-Payload-Digest"] }

// HTTPStatus parses the status code from a response record's HTTP block.
// Returns 0 for revisit records and unparseable blocks.
func (r *Record) HTTPStatus() int {
	line, _, _ := bytes.Cut(r.Block, []byte("\r\n"))
	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) < 2 {
		return 0
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0
	}
	return status
}

// HTTPContentType returns the Content-Type of a response record's HTTP
// block without parameters, or "".
func (r *Record) HTTPContentType() string {
	_, rest, ok := bytes.Cut(r.Block, []byte("\r\n"))
	if !ok {
		return ""
	}
	tp := textproto.NewReader(bufio.NewReader(bytes.NewReader(rest)))
	headers, err := tp.ReadMIMEHeader()
	if err != nil && len(headers) == 0 {
		return ""
	}
	ct, _, _ := strings.Cut(headers.Get("Content-Type"), ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

// encode serializes the record: version line, headers, blank line, block.
// Header order is fixed (sorted) so identical records encode identically.
func (r *Record) encode(buf *bytes.Buffer) {
	buf.WriteString("WARC/1.1\r\n")

	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(r.Header[name])
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	buf.Write(r.Block)
	buf.WriteString("\r\n\r\n")
}

// httpBlock renders a fetch result as a raw HTTP/1.1 exchange.
func httpBlock(res *model.FetchResult) []byte {
	var buf bytes.Buffer

	statusText := http.StatusText(res.StatusCode)
	if statusText == "" {
		statusText = "Unknown"
	}
	fmt.Fprintf(&buf, "%s %d %s\r\n", res.Proto, res.StatusCode, statusText)

	names := make([]string, 0, len(res.Headers))
	for name := range res.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, value := range res.Headers[name] {
			fmt.Fprintf(&buf, "%s: %s\r\n", name, value)
		}
	}
	buf.WriteString("\r\n")
	buf.Write(res.Body)

	return buf.Bytes()
}

// protocolName maps Go's protocol string to the WARC-Protocol token.
func protocolName(proto string) string {
	switch proto {
	case "HTTP/2.0":
		return "h2"
	case "HTTP/3.0":
		return "h3"
	default:
		return strings.ToLower(proto)
	}
}
