package progress

import (
	"log/slog"
	"sync"
)

// BarProgressTracker reports progress of a bounded job, such as driving a
// fixed number of host writes through an engine.
type BarProgressTracker interface {
	SetMessage(msg string)
	SetTotal(total int64)
	SetDone(n int64)
	SetError(err error)
	MarkFinished()
}

type NoopBarProgressTracker struct{}

var _ BarProgressTracker = NoopBarProgressTracker{}

func (n NoopBarProgressTracker) SetMessage(msg string) {}
func (n NoopBarProgressTracker) SetTotal(total int64)  {}
func (n NoopBarProgressTracker) SetDone(n2 int64)      {}
func (n NoopBarProgressTracker) SetError(err error)    {}
func (n NoopBarProgressTracker) MarkFinished()         {}

// LogBarProgressTracker logs a line each time progress crosses another
// step percent of the total. Safe for concurrent use.
type LogBarProgressTracker struct {
	logger *slog.Logger
	step   int64

	mu       sync.Mutex
	msg      string
	total    int64
	lastStep int64
	err      error
}

var _ BarProgressTracker = (*LogBarProgressTracker)(nil)

func NewLogBarProgressTracker(logger *slog.Logger, stepPercent int64) *LogBarProgressTracker {
	if stepPercent <= 0 || stepPercent > 100 {
		stepPercent = 10
	}
	return &LogBarProgressTracker{logger: logger, step: stepPercent}
}

func (l *LogBarProgressTracker) SetMessage(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msg = msg
}

func (l *LogBarProgressTracker) SetTotal(total int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total = total
	l.lastStep = 0
}

func (l *LogBarProgressTracker) SetDone(n int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.total <= 0 {
		return
	}
	pct := n * 100 / l.total
	if pct/l.step > l.lastStep {
		l.lastStep = pct / l.step
		l.logger.Info(l.msg, "done", n, "total", l.total, "percent", pct)
	}
}

func (l *LogBarProgressTracker) SetError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
	l.logger.Error(l.msg, "error", err)
}

func (l *LogBarProgressTracker) MarkFinished() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err == nil {
		l.logger.Info(l.msg+" finished", "total", l.total)
	}
}
