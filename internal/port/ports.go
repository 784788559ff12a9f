// Package port defines the interfaces (ports) between the services and the
// persistence layer. Services depend on these, never on the SQLite adapter.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/budget-tracker-go/internal/domain"
)

// RecordReader reads records from named collections.
type RecordReader interface {
	Get(ctx context.Context, coll domain.Collection, id string) (domain.Record, error)
	GetAll(ctx context.Context, coll domain.Collection) ([]domain.Record, error)
	// FindBy returns the records whose indexed field equals value.
	FindBy(ctx context.Context, coll domain.Collection, field, value string) ([]domain.Record, error)
}

// RecordWriter mutates records. Implementations stamp createdAt/updatedAt.
type RecordWriter interface {
	Add(ctx context.Context, coll domain.Collection, rec domain.Record) (domain.Record, error)
	Update(ctx context.Context, coll domain.Collection, rec domain.Record) (domain.Record, error)
	Delete(ctx context.Context, coll domain.Collection, id string) error
}

// RecordTx is the view of the store inside one atomic transaction.
type RecordTx interface {
	RecordReader
	RecordWriter
}

// RecordStore is the versioned record store.
type RecordStore interface {
	RecordTx

	// InTx runs fn atomically across collections. Any error rolls back.
	InTx(ctx context.Context, fn func(tx RecordTx) error) error

	ClearAll(ctx context.Context) error
	ExportAll(ctx context.Context) (*domain.Snapshot, error)
	ImportAll(ctx context.Context, snap *domain.Snapshot, overwrite bool) error

	Version() int
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// Clock returns the current time. Services derive "today" from it.
type Clock func() time.Time
