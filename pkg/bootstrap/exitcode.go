package bootstrap

import (
	"errors"

	"storaged/pkg/storage"
)

// ExitCode is the process exit status produced by Start
type ExitCode int

const (
	OK                     ExitCode = 0
	ServerStartupError     ExitCode = 1 // Bad configuration or the network layer failed
	DependencyStartupError ExitCode = 2 // The database layer failed
)

func (c ExitCode) String() string {
	switch c {
	case OK:
		return "ok"
	case ServerStartupError:
		return "server_startup_error"
	case DependencyStartupError:
		return "dependency_startup_error"
	default:
		return "unknown"
	}
}

// Classify maps a startup failure to its exit code. Only failures raised by
// the storage layer are dependency errors; everything else, unclassified
// failures included, counts against the server.
func Classify(err error) ExitCode {
	if err == nil {
		return OK
	}
	var startupErr *storage.StartupError
	if errors.As(err, &startupErr) {
		return DependencyStartupError
	}
	return ServerStartupError
}
