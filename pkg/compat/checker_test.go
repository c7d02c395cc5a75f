package compat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeRuntime struct {
	goVersion string
	arch      string
	cpus      int
	panics    bool
}

func (f fakeRuntime) GoVersion() string {
	if f.panics {
		panic("metadata unavailable")
	}
	return f.goVersion
}
func (f fakeRuntime) OS() string   { return "linux" }
func (f fakeRuntime) Arch() string { return f.arch }
func (f fakeRuntime) NumCPU() int  { return f.cpus }

func TestCheckAndWarn(t *testing.T) {
	cases := []struct {
		name       string
		meta       fakeRuntime
		compatible bool
		warning    string
	}{
		{"Supported", fakeRuntime{goVersion: "go1.24.3", arch: "amd64", cpus: 8}, true, ""},
		{"ExperimentSuffix", fakeRuntime{goVersion: "go1.25.0 X:nodwarf5", arch: "arm64", cpus: 4}, true, ""},
		{"OldGo", fakeRuntime{goVersion: "go1.21.6", arch: "amd64", cpus: 8}, false, "Go runtime is older than the supported minimum"},
		{"DevelBuild", fakeRuntime{goVersion: "devel +abc123", arch: "amd64", cpus: 8}, false, "Unable to determine Go runtime version; the server may not behave as expected"},
		{"ThirtyTwoBit", fakeRuntime{goVersion: "go1.24.0", arch: "386", cpus: 8}, false, "Unsupported architecture for the storage engine; a 64-bit platform is recommended"},
		{"SingleCPU", fakeRuntime{goVersion: "go1.24.0", arch: "amd64", cpus: 1}, false, "Running on a single CPU; background compaction will compete with request handling"},
		{"PanickingSource", fakeRuntime{panics: true}, false, "Unable to verify runtime compatibility"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			checker := NewChecker(zap.New(core), tc.meta)

			assert.NotPanics(t, func() {
				assert.Equal(t, tc.compatible, checker.CheckAndWarn())
			})

			warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
			if tc.warning == "" {
				assert.Empty(t, warnings)
				return
			}
			if assert.Len(t, warnings, 1) {
				assert.Equal(t, tc.warning, warnings[0].Message)
			}
		})
	}
}

func TestCheckerDefaultsToCurrentRuntime(t *testing.T) {
	checker := NewChecker(nil, nil)
	assert.NotPanics(t, func() { checker.CheckAndWarn() })
}
