package storage

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Close stops background work and closes the database. Closing twice is a no-op.
func (s *BadgerStorage) Close() error {
	if !atomic.CompareAndSwapInt32(&s.isClosed, 0, 1) {
		return nil
	}

	start := time.Now()
	if s.gc != nil {
		s.gc.Stop()
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("BadgerDB close failed", zap.String("data_dir", s.location), zap.Error(err))
		return fmt.Errorf("failed to close BadgerDB at %s: %w", s.location, err)
	}

	s.logger.Info("BadgerDB storage closed",
		zap.String("data_dir", s.location),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// IsClosed reports whether Close has been called
func (s *BadgerStorage) IsClosed() bool {
	return atomic.LoadInt32(&s.isClosed) == 1
}
