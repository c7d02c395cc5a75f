package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// trace records start/stop calls across resources
type trace struct {
	calls []string
}

type fakeResource struct {
	name     string
	trace    *trace
	startErr error
	stopErr  error
	panicOn  string
}

func (f *fakeResource) Start() error {
	f.trace.calls = append(f.trace.calls, "start "+f.name)
	if f.panicOn == "start" {
		panic("boom")
	}
	return f.startErr
}

func (f *fakeResource) Stop() error {
	f.trace.calls = append(f.trace.calls, "stop "+f.name)
	if f.panicOn == "stop" {
		panic("boom")
	}
	return f.stopErr
}

type recordingObserver struct {
	started []string
	stopped []string
	failed  []string
}

func (o *recordingObserver) ResourceStarted(name string) { o.started = append(o.started, name) }

func (o *recordingObserver) ResourceStopped(name string, err error) {
	o.stopped = append(o.stopped, name)
	if err != nil {
		o.failed = append(o.failed, name)
	}
}

func TestContainerAdd(t *testing.T) {
	t.Run("StartsImmediately", func(t *testing.T) {
		tr := &trace{}
		c := NewContainer()

		require.NoError(t, c.Add("a", &fakeResource{name: "a", trace: tr}))
		assert.Equal(t, []string{"start a"}, tr.calls)
		assert.Equal(t, []string{"a"}, c.Names())
	})

	t.Run("FailedStartIsNotRegistered", func(t *testing.T) {
		tr := &trace{}
		c := NewContainer()
		startErr := errors.New("no disk")

		err := c.Add("a", &fakeResource{name: "a", trace: tr, startErr: startErr})
		require.Error(t, err)
		assert.ErrorIs(t, err, startErr)
		assert.Equal(t, 0, c.Len())

		require.NoError(t, c.Shutdown())
		assert.Equal(t, []string{"start a"}, tr.calls, "stop must not run for a resource that never started")
	})

	t.Run("PanicInStartBecomesError", func(t *testing.T) {
		c := NewContainer()
		err := c.Add("a", &fakeResource{name: "a", trace: &trace{}, panicOn: "start"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic")
		assert.Equal(t, 0, c.Len())
	})

	t.Run("DuplicateNameRejected", func(t *testing.T) {
		tr := &trace{}
		c := NewContainer()
		require.NoError(t, c.Add("a", &fakeResource{name: "a", trace: tr}))

		err := c.Add("a", &fakeResource{name: "a", trace: tr})
		assert.ErrorIs(t, err, ErrDuplicateResource)
		assert.Equal(t, []string{"start a"}, tr.calls)
	})

	t.Run("FuncTriple", func(t *testing.T) {
		var calls []string
		c := NewContainer()
		require.NoError(t, c.AddFunc("f",
			func() error { calls = append(calls, "start"); return nil },
			func() error { calls = append(calls, "stop"); return nil },
		))
		require.NoError(t, c.AddFunc("noop", nil, nil))
		require.NoError(t, c.Shutdown())
		assert.Equal(t, []string{"start", "stop"}, calls)
	})
}

func TestContainerShutdown(t *testing.T) {
	t.Run("ReverseOrder", func(t *testing.T) {
		tr := &trace{}
		c := NewContainer()
		for _, name := range []string{"A", "B", "C"} {
			require.NoError(t, c.Add(name, &fakeResource{name: name, trace: tr}))
		}
		tr.calls = nil

		require.NoError(t, c.Shutdown())
		assert.Equal(t, []string{"stop C", "stop B", "stop A"}, tr.calls)
	})

	t.Run("ContinuesAfterFailure", func(t *testing.T) {
		tr := &trace{}
		core, logs := observer.New(zapcore.DebugLevel)
		obs := &recordingObserver{}
		c := NewContainer()
		c.SetLogger(zap.New(core))
		c.SetObserver(obs)

		stopErr := errors.New("flush failed")
		require.NoError(t, c.Add("A", &fakeResource{name: "A", trace: tr}))
		require.NoError(t, c.Add("B", &fakeResource{name: "B", trace: tr, stopErr: stopErr}))
		require.NoError(t, c.Add("C", &fakeResource{name: "C", trace: tr, panicOn: "stop"}))
		tr.calls = nil

		err := c.Shutdown()
		require.Error(t, err)
		assert.ErrorIs(t, err, stopErr)
		assert.Equal(t, []string{"stop C", "stop B", "stop A"}, tr.calls)

		assert.Equal(t, []string{"A", "B", "C"}, obs.started)
		assert.Equal(t, []string{"C", "B", "A"}, obs.stopped)
		assert.Equal(t, []string{"C", "B"}, obs.failed)

		assert.Len(t, logs.FilterMessage("Failed to stop resource").All(), 2)
		assert.Len(t, logs.FilterMessage("Resource stopped").All(), 1)
	})

	t.Run("SecondShutdownIsNoop", func(t *testing.T) {
		tr := &trace{}
		c := NewContainer()
		require.NoError(t, c.Add("A", &fakeResource{name: "A", trace: tr}))
		require.NoError(t, c.Shutdown())
		require.NoError(t, c.Shutdown())
		assert.Equal(t, []string{"start A", "stop A"}, tr.calls)
	})

	t.Run("NameReusableAfterShutdown", func(t *testing.T) {
		tr := &trace{}
		c := NewContainer()
		require.NoError(t, c.Add("A", &fakeResource{name: "A", trace: tr}))
		require.NoError(t, c.Shutdown())
		assert.NoError(t, c.Add("A", &fakeResource{name: "A", trace: tr}))
	})
}
