package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
)

// Summary is everything the crawl report shows.
type Summary struct {
	// Seeds are the URLs the crawl started from.
	Seeds []string

	// StartedAt and FinishedAt bound the session.
	StartedAt  time.Time
	FinishedAt time.Time

	// Interrupted is true when the crawl was stopped by a signal rather
	// than finishing the frontier.
	Interrupted bool

	// Archived counts full response records; Deduped counts revisit
	// records; Dropped counts pages the policy declined to archive.
	Archived int
	Deduped  int
	Dropped  int

	// Failed counts transient failures that exhausted their retries;
	// Dead counts permanently failed URLs.
	Failed int
	Dead   int

	// ArchiveSize is the archive file's size in bytes.
	ArchiveSize int64

	// OutputDir is where the archive and catalog live.
	OutputDir string
}

// Writer outputs crawl summaries in Markdown.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation; the fluent table API keeps this file declarative.
type Writer struct {
	output io.Writer
}

// NewWriter creates a Writer that outputs to the given writer.
func NewWriter(output io.Writer) *Writer {
	return &Writer{output: output}
}

// Write renders the summary.
func (w *Writer) Write(s *Summary) error {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seeds", "`" + strings.Join(s.Seeds, "`, `") + "`"},
			{"Started", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Finished", s.FinishedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", s.FinishedAt.Sub(s.StartedAt).Round(time.Second).String()},
			{"Status", w.statusText(s)},
			{"Output", "`" + s.OutputDir + "`"},
			{"Archive size", formatBytes(s.ArchiveSize)},
		},
	})
	md.PlainText("")

	md.H2("Pages")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Archived", strconv.Itoa(s.Archived)},
			{"Deduplicated (revisit)", strconv.Itoa(s.Deduped)},
			{"Dropped by policy", strconv.Itoa(s.Dropped)},
			{"Failed (retries exhausted)", strconv.Itoa(s.Failed)},
			{"Dead (permanent errors)", strconv.Itoa(s.Dead)},
		},
	})

	return md.Build()
}

// statusText describes how the session ended.
func (w *Writer) statusText(s *Summary) string {
	if s.Interrupted {
		return "⚠️ Interrupted (partial crawl)"
	}
	return "✅ Complete"
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
