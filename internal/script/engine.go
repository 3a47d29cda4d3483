package script

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/yomogi/webarc/internal/config"
	"github.com/yomogi/webarc/internal/model"
)

// ErrClosed is returned when evaluating through a closed engine.
var ErrClosed = errors.New("script: engine closed")

// Evaluator runs the traversal policy against one fetched page, returning
// the candidate links to enqueue and whether the page should be archived.
type Evaluator interface {
	Evaluate(ctx context.Context, res *model.FetchResult) (links []string, keep bool, err error)
	Close() error
}

// filter decides which pages a script sees.
type filter struct {
	urlPattern *regexp.Regexp // nil matches every URL
	mimeTypes  []string       // glob patterns; empty matches every type
}

func (f *filter) matches(res *model.FetchResult) bool {
	if f.urlPattern != nil && !f.urlPattern.MatchString(res.FinalURL) {
		return false
	}
	if len(f.mimeTypes) == 0 {
		return true
	}
	ct := res.ContentType()
	for _, pattern := range f.mimeTypes {
		if ok, err := path.Match(strings.ToLower(pattern), ct); err == nil && ok {
			return true
		}
	}
	return false
}

// Script is one named policy script: a filter plus a pool of identical
// process instances. Evaluations borrow an instance from the pool, so up to
// Workers pages are evaluated by this script concurrently.
type Script struct {
	name    string
	command string
	args    []string
	filter  filter
	pool    chan *instance
	logger  *slog.Logger
}

// NewScript starts the configured number of instances of one policy script.
// Already-started instances are torn down if a later one fails to spawn.
func NewScript(name string, cfg config.ScriptConfig, logger *slog.Logger) (*Script, error) {
	s := &Script{
		name:    name,
		command: cfg.Command,
		args:    cfg.Args,
		logger:  logger.With("script", name),
	}

	if cfg.URLPattern != "" {
		re, err := regexp.Compile(cfg.URLPattern)
		if err != nil {
			return nil, &config.ScriptConfigError{Name: name, Reason: err.Error()}
		}
		s.filter.urlPattern = re
	}
	s.filter.mimeTypes = cfg.MIMETypes

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	s.pool = make(chan *instance, workers)
	for idx := 0; idx < workers; idx++ {
		inst, err := spawn(cfg.Command, cfg.Args, s.logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.pool <- inst
	}

	return s, nil
}

// Evaluate sends the page to one instance of this script. On a script error
// the failed instance is replaced with a fresh one and the error propagates;
// the page is not retried.
func (s *Script) Evaluate(ctx context.Context, res *model.FetchResult) ([]string, bool, error) {
	var inst *instance
	var ok bool
	select {
	case inst, ok = <-s.pool:
		if !ok {
			return nil, false, ErrClosed
		}
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
	if inst == nil {
		// A previous respawn failed; try again now.
		fresh, err := spawn(s.command, s.args, s.logger)
		if err != nil {
			s.pool <- nil
			return nil, false, err
		}
		inst = fresh
	}

	links, keep, err := inst.evaluate(ctx, res)
	if err != nil {
		// The instance's stream state is unknown; replace it.
		inst.kill()
		fresh, spawnErr := spawn(s.command, s.args, s.logger)
		if spawnErr != nil {
			s.logger.Error("script respawn failed", "error", spawnErr)
			s.pool <- nil
		} else {
			s.pool <- fresh
		}
		return nil, false, err
	}

	s.pool <- inst
	return links, keep, nil
}

// Close shuts down all instances. It must not be called while evaluations
// are still in flight.
func (s *Script) Close() error {
	var firstErr error
	close(s.pool)
	for inst := range s.pool {
		if inst == nil {
			continue
		}
		if err := inst.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Engine is the top-level traversal policy. It fans each page out to every
// matching script and merges their answers; pages no script claims fall back
// to the built-in extractor so the crawl can still discover links.
//
// Merge semantics: links are the union of all submissions, deduplicated in
// arrival order; the page is kept unless any script drops it. A script error
// confines the damage to this page: it evaluates as drop with no links.
type Engine struct {
	scripts []*Script
	builtin *Extractor
	logger  *slog.Logger
}

// NewEngine builds the policy engine from the configured scripts. Scripts
// run in name order, so the merged link order is stable between runs. With
// no scripts, every page goes through the built-in extractor.
func NewEngine(scripts map[string]config.ScriptConfig, logger *slog.Logger) (*Engine, error) {
	e := &Engine{
		builtin: NewExtractor(),
		logger:  logger,
	}

	names := make([]string, 0, len(scripts))
	for name := range scripts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s, err := NewScript(name, scripts[name], logger)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.scripts = append(e.scripts, s)
	}

	return e, nil
}

// Evaluate runs the page through the policy. The returned error is
// informational: the caller logs it and treats the page as dropped with no
// links, per the returned values.
func (e *Engine) Evaluate(ctx context.Context, res *model.FetchResult) ([]string, bool, error) {
	matched := false
	keep := true
	var links []string
	seen := make(map[string]bool)

	for _, s := range e.scripts {
		if !s.filter.matches(res) {
			continue
		}
		matched = true

		sLinks, sKeep, err := s.Evaluate(ctx, res)
		if err != nil {
			e.logger.Warn("script evaluation failed, dropping page",
				"script", s.name, "url", res.URL, "error", err)
			return nil, false, err
		}
		if !sKeep {
			keep = false
		}
		for _, l := range sLinks {
			if !seen[l] {
				seen[l] = true
				links = append(links, l)
			}
		}
	}

	if !matched {
		return e.builtin.Evaluate(ctx, res)
	}
	return links, keep, nil
}

// Close shuts down every script.
func (e *Engine) Close() error {
	var firstErr error
	for _, s := range e.scripts {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
