package logger

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// recordingConsole keeps every call for inspection
type recordingConsole struct {
	mu      sync.Mutex
	records []Record
}

func (r *recordingConsole) Log(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{Severity: SeverityInfo, Message: fmt.Sprintf(format, args...)})
}

func (r *recordingConsole) Warn(msg string, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{Severity: SeverityWarn, Message: msg, Cause: cause})
}

func (r *recordingConsole) Error(msg string, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{Severity: SeverityError, Message: msg, Cause: cause})
}

func TestBufferedLogReplay(t *testing.T) {
	t.Run("PreservesOrderAndSeverity", func(t *testing.T) {
		buf := NewBufferedLog()
		cause := errors.New("bad value")

		buf.Log("loading %s", ".env")
		buf.Warn("PORT is not a number", cause)
		buf.Error("config invalid", nil)
		buf.Log("done")

		sink := &recordingConsole{}
		require.True(t, buf.ReplayInto(sink))

		require.Len(t, sink.records, 4)
		assert.Equal(t, Record{Severity: SeverityInfo, Message: "loading .env"}, sink.records[0])
		assert.Equal(t, Record{Severity: SeverityWarn, Message: "PORT is not a number", Cause: cause}, sink.records[1])
		assert.Equal(t, Record{Severity: SeverityError, Message: "config invalid"}, sink.records[2])
		assert.Equal(t, Record{Severity: SeverityInfo, Message: "done"}, sink.records[3])
		assert.Empty(t, buf.Records())
	})

	t.Run("SecondReplayIsNoop", func(t *testing.T) {
		buf := NewBufferedLog()
		buf.Log("one")

		first := &recordingConsole{}
		second := &recordingConsole{}
		require.True(t, buf.ReplayInto(first))
		assert.False(t, buf.ReplayInto(second))

		assert.Len(t, first.records, 1)
		assert.Empty(t, second.records)
	})

	t.Run("WritesAfterReplayGoStraightToSink", func(t *testing.T) {
		buf := NewBufferedLog()
		sink := &recordingConsole{}
		buf.ReplayInto(sink)

		buf.Warn("late", nil)

		require.Len(t, sink.records, 1)
		assert.Equal(t, "late", sink.records[0].Message)
		assert.Empty(t, buf.Records())
		assert.True(t, buf.Replayed())
	})

	t.Run("PercentSignsSurviveReplay", func(t *testing.T) {
		buf := NewBufferedLog()
		buf.Log("disk %d%% full", 90)

		sink := &recordingConsole{}
		buf.ReplayInto(sink)

		require.Len(t, sink.records, 1)
		assert.Equal(t, "disk 90% full", sink.records[0].Message)
	})
}

func TestBufferedLogIntoZap(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	console := NewZapConsole(zap.New(core))

	buf := NewBufferedLog()
	buf.Log("first")
	buf.Warn("second", errors.New("cause"))
	buf.Error("third", nil)
	buf.ReplayInto(console)

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "second", entries[1].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "cause", entries[1].ContextMap()["error"])
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}
