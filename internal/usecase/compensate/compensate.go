// Package compensate rolls back non-transactional multi-document write
// sequences. A sequence records an undo step after each confirmed write;
// when a later write fails the recorded steps run in reverse. Compensation
// is best effort: a crash between writes, or a failing undo, can leave an
// orphan document. Failing undos are logged and never mask the original
// error.
package compensate

import (
	"context"

	"go.uber.org/zap"

	"github.com/studycat-io/studycat/internal/metrics"
)

type step struct {
	name string
	fn   func(context.Context) error
}

// List is an ordered compensation list for one write sequence.
type List struct {
	log      *zap.Logger
	sequence string
	steps    []step
}

// New creates an empty compensation list for the named write sequence.
func New(log *zap.Logger, sequence string) *List {
	return &List{log: log, sequence: sequence}
}

// Add records an undo step for a write that just succeeded.
func (l *List) Add(name string, fn func(context.Context) error) {
	l.steps = append(l.steps, step{name: name, fn: fn})
}

// Run executes the recorded steps in reverse order. Failures are logged and
// skipped so the remaining steps still run.
func (l *List) Run(ctx context.Context) {
	if len(l.steps) == 0 {
		return
	}
	metrics.CompensationRunsTotal.WithLabelValues(l.sequence).Inc()
	for i := len(l.steps) - 1; i >= 0; i-- {
		s := l.steps[i]
		if err := s.fn(ctx); err != nil {
			l.log.Warn("compensation step failed, orphan possible",
				zap.String("sequence", l.sequence),
				zap.String("step", s.name), zap.Error(err))
		}
	}
	l.steps = nil
}
