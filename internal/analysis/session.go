package analysis

import (
	"context"
	"errors"
	"sync"

	"github.com/unklstewy/viewscout/internal/metrics"
)

// ErrSuperseded is returned by Session.Run when a newer run started before
// this one finished.
var ErrSuperseded = errors.New("analysis superseded by a newer request")

// Analyzer runs one analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*Report, error)
}

// Session serializes the analyses of one interactive client with
// last-request-wins semantics: starting a run cancels the one in flight,
// and a run that is no longer the latest never returns its result.
type Session struct {
	analyzer Analyzer

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	last   *Report
}

// NewSession creates a session backed by analyzer.
func NewSession(analyzer Analyzer) *Session {
	return &Session{analyzer: analyzer}
}

// Run starts an analysis, superseding any run in flight.
func (s *Session) Run(ctx context.Context, req Request) (*Report, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.mu.Unlock()

	report, err := s.analyzer.Analyze(runCtx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		metrics.AnalysesTotal.WithLabelValues("superseded").Inc()
		return nil, ErrSuperseded
	}
	s.cancel = nil
	if err != nil {
		return nil, err
	}
	s.last = report
	return report, nil
}

// Last returns the most recent successful report, or nil.
func (s *Session) Last() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Clear cancels any run in flight and forgets the last report.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.last = nil
}
