package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.sqlite") + "?_fk=1&_busy_timeout=1000&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open in-memory sqlite: %v", err)
	}

	if err := db.Exec(`CREATE TABLE entries (id INTEGER PRIMARY KEY AUTOINCREMENT, steps INTEGER NOT NULL)`).Error; err != nil {
		t.Fatalf("failed to create table: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func newTestRunner(t *testing.T, db *gorm.DB, opts ...Option) *Runner {
	t.Helper()

	base := []Option{
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(2 * time.Millisecond),
	}
	r, err := NewRunner(db, nil, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	return r
}

func countEntries(t *testing.T, db *gorm.DB) int64 {
	t.Helper()

	var n int64
	if err := db.Raw(`SELECT COUNT(*) FROM entries`).Scan(&n).Error; err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	return n
}

func TestRun_CommitsOnSuccess(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	r := newTestRunner(t, db)

	var inserted int64
	err := r.Run(context.Background(), func(tx *gorm.DB) error {
		res := tx.Exec(`INSERT INTO entries (steps) VALUES (?)`, 9000)
		inserted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if inserted != 1 {
		t.Fatalf("rows affected = %d, want 1", inserted)
	}
	if got := countEntries(t, db); got != 1 {
		t.Fatalf("entries = %d, want 1", got)
	}
}

func TestRun_RollsBackOnError(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	r := newTestRunner(t, db, WithMaxRetries(0))

	wantErr := errors.New("boom")
	err := r.Run(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Exec(`INSERT INTO entries (steps) VALUES (?)`, 100).Error; err != nil {
			return err
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run() error = %v, want %v", err, wantErr)
	}
	if got := countEntries(t, db); got != 0 {
		t.Fatalf("entries = %d, want 0 after rollback", got)
	}
}

func TestRun_RetryBudget(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		maxRetries   int
		wantAttempts int
	}{
		{name: "zero retries means one attempt", maxRetries: 0, wantAttempts: 1},
		{name: "two retries means three attempts", maxRetries: 2, wantAttempts: 3},
		{name: "five retries means six attempts", maxRetries: 5, wantAttempts: 6},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			db := newTestDB(t)
			r := newTestRunner(t, db, WithMaxRetries(tc.maxRetries))

			locked := errors.New("database is locked")
			attempts := 0
			err := r.Run(context.Background(), func(tx *gorm.DB) error {
				attempts++
				return locked
			})
			if !errors.Is(err, locked) {
				t.Fatalf("Run() error = %v, want the simulated contention error", err)
			}
			if attempts != tc.wantAttempts {
				t.Fatalf("attempts = %d, want %d", attempts, tc.wantAttempts)
			}
		})
	}
}

func TestRun_RetryHookFiresPerRetry(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)

	retries := 0
	r := newTestRunner(t, db, WithMaxRetries(3), WithRetryHook(func() { retries++ }))

	_ = r.Run(context.Background(), func(tx *gorm.DB) error {
		return errors.New("database is locked")
	})
	if retries != 3 {
		t.Fatalf("retry hook fired %d times, want 3", retries)
	}
}

func TestRun_BackoffWithinJitterBounds(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)

	const (
		initial = 100 * time.Millisecond
		maxD    = 350 * time.Millisecond
	)

	r, err := NewRunner(db, nil,
		WithMaxRetries(4),
		WithInitialDelay(initial),
		WithMaxDelay(maxD),
	)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	var waits []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	r.randFloat = func() float64 { return 1 } // +10% jitter every time

	_ = r.Run(context.Background(), func(tx *gorm.DB) error {
		return errors.New("database is locked")
	})

	if len(waits) != 4 {
		t.Fatalf("recorded %d waits, want 4", len(waits))
	}

	base := initial
	for k, wait := range waits {
		lower := time.Duration(float64(base) * 0.9)
		upper := time.Duration(float64(base) * 1.1)
		if upper > maxD {
			upper = maxD
		}
		if wait < lower || wait > upper {
			t.Fatalf("wait[%d] = %v, want within [%v, %v]", k, wait, lower, upper)
		}
		base = min(base*2, maxD)
	}
}

func TestRunOn_InlineInsideOpenTransaction(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	r := newTestRunner(t, db)

	innerCalls := 0
	err := r.Run(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Exec(`INSERT INTO entries (steps) VALUES (?)`, 1).Error; err != nil {
			return err
		}

		// Re-entering the runner with an in-flight transaction must run the
		// unit of work inline with no extra begin/commit pair.
		return r.RunOn(context.Background(), tx, func(inner *gorm.DB) error {
			innerCalls++
			if inner != tx {
				t.Error("inner work did not receive the outer transaction")
			}
			return inner.Exec(`INSERT INTO entries (steps) VALUES (?)`, 2).Error
		})
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if innerCalls != 1 {
		t.Fatalf("inner work ran %d times, want 1", innerCalls)
	}
	if got := countEntries(t, db); got != 2 {
		t.Fatalf("entries = %d, want 2", got)
	}
}

func TestRunOn_InlineErrorLeavesOuterOwnership(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	r := newTestRunner(t, db, WithMaxRetries(0))

	wantErr := errors.New("inner failed")
	err := r.Run(context.Background(), func(tx *gorm.DB) error {
		if innerErr := r.RunOn(context.Background(), tx, func(inner *gorm.DB) error {
			return wantErr
		}); innerErr != nil {
			return innerErr
		}
		return nil
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run() error = %v, want %v", err, wantErr)
	}
}

func TestRun_CancellationStopsRetries(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	r := newTestRunner(t, db, WithMaxRetries(5), WithInitialDelay(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())

	locked := errors.New("database is locked")
	attempts := 0
	err := r.RunOn(ctx, db, func(tx *gorm.DB) error {
		attempts++
		cancel()
		return locked
	})
	if !errors.Is(err, locked) {
		t.Fatalf("Run() error = %v, want the last failure", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 after cancellation", attempts)
	}
}
