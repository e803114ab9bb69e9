package storage

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultMaxRetries   = 5
	defaultInitialDelay = 200 * time.Millisecond
	defaultMaxDelay     = 5 * time.Second
)

// Runner executes write units of work inside immediate write transactions,
// retrying transient failures (typically SQLITE_BUSY lock contention) with
// exponential backoff and jitter. After the retry budget is exhausted the
// last failure is returned to the caller rather than swallowed: persistent
// contention must surface, or writes would silently drop.
type Runner struct {
	db     *gorm.DB
	logger *zap.Logger

	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	onRetry      func()

	sleep     func(ctx context.Context, d time.Duration) error
	randFloat func() float64
}

type Option func(*Runner)

// WithMaxRetries bounds the number of retries after the first attempt.
// Zero means a single attempt.
func WithMaxRetries(n int) Option {
	return func(r *Runner) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

func WithInitialDelay(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.initialDelay = d
		}
	}
}

func WithMaxDelay(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.maxDelay = d
		}
	}
}

// WithRetryHook registers a callback invoked once per retry, used to feed
// the contention counter.
func WithRetryHook(hook func()) Option {
	return func(r *Runner) {
		if hook != nil {
			r.onRetry = hook
		}
	}
}

func NewRunner(db *gorm.DB, logger *zap.Logger, opts ...Option) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Runner{
		db:           db,
		logger:       logger,
		maxRetries:   defaultMaxRetries,
		initialDelay: defaultInitialDelay,
		maxDelay:     defaultMaxDelay,
		onRetry:      func() {},
		sleep:        sleepCtx,
		randFloat:    rand.Float64,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.initialDelay > r.maxDelay {
		r.initialDelay = r.maxDelay
	}

	return r, nil
}

// Run executes fn inside one all-or-nothing transaction on the runner's
// shared handle. See RunOn.
func (r *Runner) Run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.RunOn(ctx, r.db, fn)
}

// RunOn executes fn inside a transaction begun on handle. If handle is
// already a transaction, fn runs inline and the outer caller keeps ownership
// of commit and rollback; transactions never nest. Results flow out of fn
// through closure capture.
func (r *Runner) RunOn(ctx context.Context, handle *gorm.DB, fn func(tx *gorm.DB) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if handle == nil {
		handle = r.db
	}

	if inTransaction(handle) {
		return fn(handle)
	}

	attempt := 0
	delay := r.initialDelay

	for {
		err := r.runOnce(ctx, handle, fn)
		if err == nil {
			return nil
		}

		if attempt >= r.maxRetries {
			return err
		}

		wait := r.jittered(delay)
		r.onRetry()
		r.logger.Debug("retrying write transaction",
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		// A canceled context cuts the loop short; the last failure is
		// still what the caller needs to see.
		if sleepErr := r.sleep(ctx, wait); sleepErr != nil {
			return err
		}

		delay = min(delay*2, r.maxDelay)
		attempt++
	}
}

func (r *Runner) runOnce(ctx context.Context, handle *gorm.DB, fn func(tx *gorm.DB) error) error {
	tx := handle.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	if err := fn(tx); err != nil {
		// Rollback errors are swallowed so the original error propagates.
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// jittered perturbs delay by ±10% and clamps the result to [1ms, maxDelay].
func (r *Runner) jittered(delay time.Duration) time.Duration {
	jitter := (r.randFloat()*2 - 1) * 0.1
	wait := time.Duration(float64(delay) * (1 + jitter))
	if wait > r.maxDelay {
		wait = r.maxDelay
	}
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

func inTransaction(db *gorm.DB) bool {
	if db == nil || db.Statement == nil {
		return false
	}
	_, ok := db.Statement.ConnPool.(gorm.TxCommitter)
	return ok
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
