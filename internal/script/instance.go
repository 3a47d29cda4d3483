package script

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"time"

	"github.com/yomogi/webarc/internal/model"
)

// closeGrace is how long a closed script gets to exit before being killed.
const closeGrace = 100 * time.Millisecond

// instance is a single running script process. Not safe for concurrent use;
// the owning Script serializes access through its pool.
type instance struct {
	cmd    *exec.Cmd
	in     *hostWriter
	out    *hostReader
	logger *slog.Logger
}

// spawn starts one script process with piped stdin/stdout. Stderr is left
// attached to the host's stderr so script diagnostics stay visible.
func spawn(command string, args []string, logger *slog.Logger) (*instance, error) {
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("script: open stdin of %s: %w", command, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("script: open stdout of %s: %w", command, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("script: start %s: %w", command, err)
	}

	logger.Debug("script instance started", "command", command, "pid", cmd.Process.Pid)

	return &instance{
		cmd:    cmd,
		in:     newHostWriter(stdin),
		out:    newHostReader(stdout),
		logger: logger,
	}, nil
}

// evaluate sends one page to the process and collects its replies until the
// end marker. Submitted URLs are resolved against the page's final URL, so
// scripts may answer with relative paths. Any protocol or I/O error poisons
// the instance; the caller must discard it.
func (i *instance) evaluate(ctx context.Context, res *model.FetchResult) ([]string, bool, error) {
	if err := i.in.writePage(res); err != nil {
		return nil, false, fmt.Errorf("script: send page %s: %w", res.URL, err)
	}

	base, _ := url.Parse(res.FinalURL)

	keep := true
	var links []string
	for {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		rep, err := i.out.readReply()
		if err != nil {
			return nil, false, fmt.Errorf("script: read reply for %s: %w", res.URL, err)
		}

		switch rep.op {
		case opSubmit:
			links = append(links, resolveLink(base, rep.url))
		case opDrop:
			keep = false
		case opEnd:
			return links, keep, nil
		}
	}
}

// resolveLink resolves a submitted URL against the page URL. Unparseable
// submissions pass through unchanged; scope admission rejects them later.
func resolveLink(base *url.URL, raw string) string {
	if base == nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

// close asks the process to exit and kills it if it lingers.
func (i *instance) close() error {
	err := i.in.writeClose()

	done := make(chan error, 1)
	go func() { done <- i.cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(closeGrace):
		if killErr := i.cmd.Process.Kill(); killErr != nil && err == nil {
			err = killErr
		}
		<-done
	}
	return err
}

// kill terminates the process without the close handshake. Used when the
// instance violated the protocol and its pipes can no longer be trusted.
func (i *instance) kill() {
	if i.cmd.Process != nil {
		_ = i.cmd.Process.Kill()
	}
	_ = i.cmd.Wait()
}
