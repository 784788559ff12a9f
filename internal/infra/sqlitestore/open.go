package sqlitestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/boddenberg/budget-tracker-go/internal/domain"
	"github.com/boddenberg/budget-tracker-go/internal/infra/observability"
	"github.com/boddenberg/budget-tracker-go/internal/infra/resilience"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Options configures how a store file is opened.
type Options struct {
	Path string
	// OpenTimeout bounds how long the upgrade waits for a lock held by
	// another connection before failing with ErrOpenBlocked.
	OpenTimeout time.Duration
	// SeedDemoData inserts demo accounts and categories into a new store.
	SeedDemoData bool
	// Now stamps records. Defaults to time.Now.
	Now func() time.Time
}

// State is the lifecycle of a store handle.
type State int

const (
	StateUnopened State = iota
	StateOpening
	StateOpen
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Opener owns the single store handle of a process. Open is idempotent and
// concurrent callers share one in-flight open.
type Opener struct {
	opts    Options
	metrics *observability.Metrics
	logger  *zap.Logger

	group singleflight.Group

	mu    sync.Mutex
	state State
	store *Store
}

// NewOpener creates an unopened handle.
func NewOpener(opts Options, metrics *observability.Metrics, logger *zap.Logger) *Opener {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 5 * time.Second
	}
	return &Opener{opts: opts, metrics: metrics, logger: logger}
}

// State returns the current lifecycle state.
func (o *Opener) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Open returns the open store, opening and upgrading it on first use. A
// failed open may be retried.
func (o *Opener) Open(ctx context.Context) (*Store, error) {
	o.mu.Lock()
	switch o.state {
	case StateOpen:
		s := o.store
		o.mu.Unlock()
		return s, nil
	case StateClosed:
		o.mu.Unlock()
		return nil, &domain.ErrOpenFailed{Path: o.opts.Path, Err: errors.New("store handle closed")}
	}
	o.state = StateOpening
	o.mu.Unlock()

	// The shared open must not be cancelled by whichever caller started it.
	openCtx := context.WithoutCancel(ctx)
	v, err, shared := o.group.Do(o.opts.Path, func() (any, error) {
		// A caller that lost the race may arrive after the open finished.
		o.mu.Lock()
		if o.state == StateOpen {
			s := o.store
			o.mu.Unlock()
			return s, nil
		}
		o.mu.Unlock()

		s, err := openStore(openCtx, o.opts, o.metrics, o.logger)

		o.mu.Lock()
		defer o.mu.Unlock()
		if o.state == StateClosed {
			if s != nil {
				_ = s.close()
			}
			return nil, &domain.ErrOpenFailed{Path: o.opts.Path, Err: errors.New("store handle closed")}
		}
		if err != nil {
			o.state = StateFailed
			return nil, err
		}
		o.state = StateOpen
		o.store = s
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		o.logger.Debug("joined in-flight store open", zap.String("path", o.opts.Path))
	}
	return v.(*Store), nil
}

// OpenWithRetry calls Open with exponential backoff while the store is
// blocked by another connection. Other failures return at once.
func (o *Opener) OpenWithRetry(ctx context.Context, retries int, backoff time.Duration) (*Store, error) {
	var store *Store
	err := resilience.RetryWithBackoff(ctx, resilience.Config{
		MaxRetries:     retries,
		InitialBackoff: backoff,
		Retryable:      IsBlocked,
	}, func() error {
		var err error
		store, err = o.Open(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// IsBlocked reports whether err is an ErrOpenBlocked.
func IsBlocked(err error) bool {
	var blocked *domain.ErrOpenBlocked
	return errors.As(err, &blocked)
}

// Close releases the database. The handle cannot be reopened.
func (o *Opener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state = StateClosed
	if o.store == nil {
		return nil
	}
	err := o.store.close()
	o.store = nil
	return err
}

func openStore(ctx context.Context, opts Options, metrics *observability.Metrics, logger *zap.Logger) (*Store, error) {
	start := time.Now()
	logger.Info("opening store", zap.String("path", opts.Path), zap.Int("target_version", SchemaVersion))

	s, err := doOpen(ctx, opts, metrics, logger)
	if err != nil {
		var blocked *domain.ErrOpenBlocked
		if errors.As(err, &blocked) {
			metrics.IncrStoreOpen("blocked")
			logger.Warn("store upgrade blocked by another connection", zap.String("path", opts.Path), zap.Error(err))
		} else {
			metrics.IncrStoreOpen("failed")
			logger.Error("store open failed", zap.String("path", opts.Path), zap.Error(err))
		}
		return nil, err
	}

	metrics.IncrStoreOpen("ok")
	logger.Info("store opened",
		zap.String("path", opts.Path),
		zap.Int("version", s.version),
		zap.Duration("latency", time.Since(start)),
	)
	return s, nil
}

func doOpen(ctx context.Context, opts Options, metrics *observability.Metrics, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, &domain.ErrOpenFailed{Path: opts.Path, Err: fmt.Errorf("create db dir: %w", err)}
	}

	// Every transaction begins IMMEDIATE so the upgrade takes the write
	// lock up front and waits at most OpenTimeout for it.
	dsn := fmt.Sprintf("%s?_txlock=immediate&_busy_timeout=%d", opts.Path, opts.OpenTimeout.Milliseconds())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, classifyOpenError(opts.Path, fmt.Errorf("open database: %w", err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, &domain.ErrOpenFailed{Path: opts.Path, Err: fmt.Errorf("get sql db: %w", err)}
	}
	// One connection: writes from this process are applied in call order.
	sqlDB.SetMaxOpenConns(1)
	_, _ = sqlDB.Exec("PRAGMA journal_mode = WAL;")
	_, _ = sqlDB.Exec("PRAGMA synchronous = NORMAL;")

	fail := func(err error) (*Store, error) {
		_ = sqlDB.Close()
		return nil, classifyOpenError(opts.Path, err)
	}

	old, err := readVersion(db.WithContext(ctx))
	if err != nil {
		return fail(err)
	}
	if old > SchemaVersion {
		return fail(fmt.Errorf("store version %d is newer than supported version %d", old, SchemaVersion))
	}

	if old < SchemaVersion {
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// Re-read under the write lock: another process may have
			// upgraded while we waited.
			cur, err := readVersion(tx)
			if err != nil {
				return err
			}
			if cur >= SchemaVersion {
				return nil
			}
			return upgrade(tx, cur, SchemaVersion, opts.SeedDemoData, opts.Now(), logger)
		})
		if err != nil {
			return fail(err)
		}
	}

	return &Store{
		db:      db,
		path:    opts.Path,
		version: SchemaVersion,
		now:     opts.Now,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// classifyOpenError maps lock contention to ErrOpenBlocked and everything
// else to ErrOpenFailed.
func classifyOpenError(path string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
		return &domain.ErrOpenBlocked{Path: path, Err: err}
	}
	return &domain.ErrOpenFailed{Path: path, Err: err}
}
