package core

// export_limiter.go bounds the number of CSV exports streaming at once.
//
// Exports hold a database connection for as long as the client keeps
// reading, so a burst of slow downloads could starve the dashboard pages.
// Slots are a buffered channel; Acquire waits up to maxWait for one.

import (
	"context"
	"errors"
	"time"
)

// ErrTooManyExports is returned when no export slot frees up within the wait
// timeout. Clients should retry after a short delay.
var ErrTooManyExports = errors.New("too many concurrent exports, please try again later")

// DefaultMaxConcurrentExports is used when the configured limit is not positive.
const DefaultMaxConcurrentExports = 4

// DefaultExportWait is used when the configured wait is not positive.
const DefaultExportWait = 10 * time.Second

// ExportLimiter is a counting semaphore for exports.
type ExportLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
}

// NewExportLimiter allows at most maxConcurrent simultaneous exports.
func NewExportLimiter(maxConcurrent int, maxWait time.Duration) *ExportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentExports
	}
	if maxWait <= 0 {
		maxWait = DefaultExportWait
	}
	return &ExportLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most maxWait. The caller must Release it.
func (l *ExportLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyExports
	}
}

// Release frees a slot taken by Acquire.
func (l *ExportLimiter) Release() {
	<-l.slots
}

// Active returns the number of exports in progress.
func (l *ExportLimiter) Active() int {
	return len(l.slots)
}

// MaxConcurrent returns the slot count.
func (l *ExportLimiter) MaxConcurrent() int {
	return cap(l.slots)
}

// WaitForDrain blocks until no export is running or ctx is done. Used on
// shutdown so downloads in flight can finish.
func (l *ExportLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.Active() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
