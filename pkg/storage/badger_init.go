package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// badger reports a held directory lock only through its message text
const dirLockMessage = "Cannot acquire directory lock"

// getOptimizedBadgerOptions returns performance-optimized BadgerDB options
func getOptimizedBadgerOptions(dataDir string, opts BadgerOptions) badger.Options {
	options := badger.DefaultOptions(dataDir)

	if opts.PerformanceMode {
		options = options.
			WithMemTableSize(8 << 20).      // 8MB memtable (much smaller than 64MB default)
			WithValueLogFileSize(16 << 20). // 16MB value log files (much smaller than 1GB default)
			WithValueLogMaxEntries(50000).
			WithBaseTableSize(4 << 20). // 4MB SST files
			WithSyncWrites(false).
			WithBlockSize(4096).
			WithBloomFalsePositive(0.01).
			WithNumCompactors(2).
			WithNumLevelZeroTables(2).
			WithNumLevelZeroTablesStall(4)
	} else {
		// Conservative configuration for reliability
		options = options.
			WithSyncWrites(true).
			WithNumCompactors(2)
	}

	options = options.
		WithDetectConflicts(true).
		WithNumVersionsToKeep(1) // Keep only latest version

	if opts.Logger != nil {
		options = options.WithLogger(badgerLogger{log: opts.Logger.Named("badger").Sugar()})
	} else {
		options = options.WithLogger(nil)
	}

	if opts.CacheSize > 0 {
		options = options.WithBlockCacheSize(opts.CacheSize)
	}

	return options
}

// Open opens the database in opts.DataDir. Every failure is a *StartupError;
// a directory held by another process also matches ErrLocationInUse.
func Open(opts BadgerOptions) (*BadgerStorage, error) {
	if opts.DataDir == "" {
		opts.DataDir = "data/badger"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dataDir := filepath.Clean(opts.DataDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, &StartupError{Location: dataDir, Err: fmt.Errorf("failed to create data directory: %w", err)}
	}

	db, err := badger.Open(getOptimizedBadgerOptions(dataDir, opts))
	if err != nil {
		if strings.Contains(err.Error(), dirLockMessage) {
			err = fmt.Errorf("%w: %v", ErrLocationInUse, err)
		} else {
			err = fmt.Errorf("failed to open BadgerDB: %w", err)
		}
		return nil, &StartupError{Location: dataDir, Err: err}
	}

	storage := &BadgerStorage{
		db:       db,
		location: dataDir,
		openedAt: time.Now(),
		logger:   logger,
	}

	storage.gc = NewGarbageCollector(db, logger)
	if opts.GCThreshold > 0 {
		storage.gc.SetGCThreshold(opts.GCThreshold)
	}
	if opts.GCInterval > 0 {
		storage.gc.SetInterval(opts.GCInterval)
		storage.gc.Start()
		storage.gcEnabled = true
	}

	logger.Info("BadgerDB storage opened",
		zap.String("data_dir", dataDir),
		zap.Bool("performance_mode", opts.PerformanceMode),
		zap.Int64("cache_size_bytes", opts.CacheSize),
		zap.Duration("gc_interval", opts.GCInterval),
	)

	return storage, nil
}
