// Package compat performs the one-shot runtime environment check made during
// startup. Findings are logged as warnings and never stop the server.
package compat

import (
	"fmt"
	"go/version"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// MinimumGoVersion is the oldest toolchain the daemon is tested with
const MinimumGoVersion = "go1.24"

// RuntimeMetadata describes the environment the process runs in
type RuntimeMetadata interface {
	GoVersion() string
	OS() string
	Arch() string
	NumCPU() int
}

// GoRuntime reads metadata from package runtime
type GoRuntime struct{}

func (GoRuntime) GoVersion() string { return runtime.Version() }
func (GoRuntime) OS() string        { return runtime.GOOS }
func (GoRuntime) Arch() string      { return runtime.GOARCH }
func (GoRuntime) NumCPU() int       { return runtime.NumCPU() }

// 64-bit architectures badger is built and tested on
var supportedArchs = map[string]bool{
	"amd64":   true,
	"arm64":   true,
	"ppc64le": true,
	"s390x":   true,
	"riscv64": true,
}

// Checker validates the runtime and reports problems to its logger
type Checker struct {
	log  *zap.Logger
	meta RuntimeMetadata
}

// NewChecker creates a checker. A nil meta reads the current runtime.
func NewChecker(log *zap.Logger, meta RuntimeMetadata) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	if meta == nil {
		meta = GoRuntime{}
	}
	return &Checker{log: log, meta: meta}
}

// CheckAndWarn runs every check and reports whether the environment looked
// compatible. It never fails.
func (c *Checker) CheckAndWarn() (compatible bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("Unable to verify runtime compatibility", zap.String("reason", fmt.Sprint(r)))
			compatible = false
		}
	}()

	compatible = true
	goVersion := c.meta.GoVersion()
	lang := languageVersion(goVersion)

	switch {
	case !version.IsValid(lang):
		c.log.Warn("Unable to determine Go runtime version; the server may not behave as expected",
			zap.String("go_version", goVersion))
		compatible = false
	case version.Compare(lang, MinimumGoVersion) < 0:
		c.log.Warn("Go runtime is older than the supported minimum",
			zap.String("go_version", goVersion),
			zap.String("minimum", MinimumGoVersion))
		compatible = false
	}

	if arch := c.meta.Arch(); !supportedArchs[arch] {
		c.log.Warn("Unsupported architecture for the storage engine; a 64-bit platform is recommended",
			zap.String("arch", arch),
			zap.String("os", c.meta.OS()))
		compatible = false
	}

	if n := c.meta.NumCPU(); n < 2 {
		c.log.Warn("Running on a single CPU; background compaction will compete with request handling",
			zap.Int("cpu_count", n))
		compatible = false
	}

	if compatible {
		c.log.Debug("Runtime compatibility verified",
			zap.String("go_version", goVersion),
			zap.String("os", c.meta.OS()),
			zap.String("arch", c.meta.Arch()))
	}
	return compatible
}

// languageVersion strips experiment and build suffixes such as
// "go1.24.3 X:nocoverageredesign"
func languageVersion(v string) string {
	v = strings.TrimSpace(v)
	if i := strings.IndexByte(v, ' '); i >= 0 {
		v = v[:i]
	}
	return v
}
