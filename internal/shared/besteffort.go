package shared

import (
	"context"
	"log/slog"
	"time"
)

// BestEffort runs side-channel work (audit entries, notifications, emails)
// that must never fail or block the primary request path. Every call site
// goes through Dispatch so the never-block, never-throw contract lives in
// one place.
type BestEffort struct {
	logger  *slog.Logger
	timeout time.Duration
}

// NewBestEffort constructs a dispatcher with a bounded per-call timeout.
func NewBestEffort(logger *slog.Logger, timeout time.Duration) *BestEffort {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BestEffort{logger: logger, timeout: timeout}
}

// Dispatch executes fn with a detached, bounded context. Errors and panics
// are logged with the given name and swallowed. The primary operation's
// success is independent of anything dispatched here.
func (b *BestEffort) Dispatch(ctx context.Context, name string, fn func(context.Context) error) {
	if b == nil || fn == nil {
		return
	}
	// Detach from the request context so a cancelled request does not abort
	// work that belongs to an already-committed decision.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil && b.logger != nil {
			b.logger.Error("side effect panicked", slog.String("effect", name), slog.Any("panic", rec))
		}
	}()

	if err := fn(runCtx); err != nil && b.logger != nil {
		b.logger.Error("side effect failed", slog.String("effect", name), slog.Any("error", err))
	}
}
