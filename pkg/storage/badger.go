package storage

import (
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// BadgerStorage is the embedded database behind the server
type BadgerStorage struct {
	db       *badger.DB
	location string
	isClosed int32 // Track if database has been closed (atomic)
	openedAt time.Time
	logger   *zap.Logger

	gc        *GarbageCollector // Value log garbage collector
	gcEnabled bool              // Whether the GC loop is expected to run
}

// BadgerOptions contains options for opening the store
type BadgerOptions struct {
	DataDir         string        // Directory to store BadgerDB files
	PerformanceMode bool          // Enable performance optimizations
	CacheSize       int64         // In-memory block cache size in bytes
	GCInterval      time.Duration // Value log GC interval; zero disables the loop
	GCThreshold     float64       // Minimum ratio of reclaimable space to rewrite a value log file
	Logger          *zap.Logger   // Destination for badger's own log output
}

// Location returns the database directory
func (s *BadgerStorage) Location() string {
	return s.location
}

// badgerLogger forwards badger's internal logging to zap
type badgerLogger struct {
	log *zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.log.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.log.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.log.Infof(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   { l.log.Debugf(format, args...) }

// RunGC performs one value log garbage collection pass
func (s *BadgerStorage) RunGC() error {
	if s.IsClosed() {
		return ErrStorageClosed
	}
	return s.gc.RunGC()
}
