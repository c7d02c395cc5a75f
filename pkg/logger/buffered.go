package logger

import (
	"fmt"
	"sync"
)

// Severity of a buffered record
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Record is one buffered console message
type Record struct {
	Severity Severity
	Message  string
	Cause    error
}

// BufferedLog collects console messages until a real sink exists, then
// replays them into it exactly once. After the replay every call is
// forwarded to the sink directly.
type BufferedLog struct {
	mu      sync.Mutex
	records []Record
	target  ConsoleLogger
}

// NewBufferedLog creates an empty buffer
func NewBufferedLog() *BufferedLog {
	return &BufferedLog{}
}

func (b *BufferedLog) Log(format string, args ...any) {
	b.add(Record{Severity: SeverityInfo, Message: fmt.Sprintf(format, args...)})
}

func (b *BufferedLog) Warn(msg string, cause error) {
	b.add(Record{Severity: SeverityWarn, Message: msg, Cause: cause})
}

func (b *BufferedLog) Error(msg string, cause error) {
	b.add(Record{Severity: SeverityError, Message: msg, Cause: cause})
}

func (b *BufferedLog) add(rec Record) {
	b.mu.Lock()
	target := b.target
	if target == nil {
		b.records = append(b.records, rec)
	}
	b.mu.Unlock()

	if target != nil {
		emit(target, rec)
	}
}

// ReplayInto forwards every buffered record, in emission order, to sink and
// discards the buffer. It reports false when the buffer was already replayed.
func (b *BufferedLog) ReplayInto(sink ConsoleLogger) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.target != nil {
		return false
	}

	// Holding the lock keeps concurrent writers behind the replayed records.
	for _, rec := range b.records {
		emit(sink, rec)
	}
	b.records = nil
	b.target = sink
	return true
}

// Replayed reports whether the buffer has been drained into a sink
func (b *BufferedLog) Replayed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.target != nil
}

// Records returns a copy of the records still waiting for replay
func (b *BufferedLog) Records() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}

func emit(sink ConsoleLogger, rec Record) {
	switch rec.Severity {
	case SeverityWarn:
		sink.Warn(rec.Message, rec.Cause)
	case SeverityError:
		sink.Error(rec.Message, rec.Cause)
	default:
		sink.Log("%s", rec.Message)
	}
}
