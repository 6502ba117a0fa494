package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ErrCacheDisabled is returned by Open once the store has failed to open.
var ErrCacheDisabled = errors.New("repository: location cache disabled")

const createLocationCacheTable = `
	CREATE TABLE IF NOT EXISTS LocationCache (
		geoLocation TEXT PRIMARY KEY,
		fullPlacename TEXT
	)
`

// PoolOpener opens a connection pool on first use.
type PoolOpener func(ctx context.Context) (*pgxpool.Pool, error)

// OpenPool returns a PoolOpener that connects to dsn and checks the
// connection before handing the pool out.
func OpenPool(dsn string) PoolOpener {
	return func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to create pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("repository: failed to reach database: %w", err)
		}
		return pool, nil
	}
}

// LocationCacheRepository is the PostgreSQL table of geocoder envelopes
// keyed by the high-precision location key. The pool is opened lazily; if
// opening fails the store disables itself and behaves as always empty.
type LocationCacheRepository struct {
	open     PoolOpener
	once     sync.Once
	pool     *pgxpool.Pool
	disabled atomic.Bool
}

// NewLocationCacheRepository creates a store that opens its pool on first use.
func NewLocationCacheRepository(open PoolOpener) *LocationCacheRepository {
	return &LocationCacheRepository{open: open}
}

// NewLocationCacheRepositoryWithPool creates a store over an already open pool.
func NewLocationCacheRepositoryWithPool(pool *pgxpool.Pool) *LocationCacheRepository {
	return NewLocationCacheRepository(func(context.Context) (*pgxpool.Pool, error) {
		return pool, nil
	})
}

// Open connects and creates the table if needed. Subsequent calls return
// the result of the first, which is not tied to the first caller's
// cancellation.
func (r *LocationCacheRepository) Open(ctx context.Context) error {
	r.once.Do(func() {
		ctx := context.WithoutCancel(ctx)
		pool, err := r.open(ctx)
		if err == nil {
			_, err = pool.Exec(ctx, createLocationCacheTable)
			if err != nil {
				pool.Close()
				err = fmt.Errorf("repository: failed to create LocationCache table: %w", err)
			}
		}
		if err != nil {
			r.disabled.Store(true)
			log.Error().Err(err).Msg("Location cache unavailable, continuing without it")
			return
		}
		r.pool = pool
	})

	if r.disabled.Load() {
		return ErrCacheDisabled
	}
	return nil
}

// Disabled reports whether opening the store failed.
func (r *LocationCacheRepository) Disabled() bool {
	return r.disabled.Load()
}

func (r *LocationCacheRepository) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	if err := r.Open(ctx); err != nil {
		return nil, err
	}
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to acquire connection: %w", err)
	}
	return conn, nil
}

// Get returns the stored envelope for key. A disabled store reports a miss.
func (r *LocationCacheRepository) Get(ctx context.Context, key string) (string, bool, error) {
	conn, err := r.acquire(ctx)
	if errors.Is(err, ErrCacheDisabled) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer conn.Release()

	var value *string
	err = conn.QueryRow(ctx,
		`SELECT fullPlacename FROM LocationCache WHERE geoLocation = $1`, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("repository: failed to query location cache: %w", err)
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

// Put stores value under key unless the key already exists.
func (r *LocationCacheRepository) Put(ctx context.Context, key, value string) error {
	_, err := r.Insert(ctx, key, value)
	if errors.Is(err, ErrCacheDisabled) {
		return nil
	}
	return err
}

// Insert is Put that reports whether a new row was written.
func (r *LocationCacheRepository) Insert(ctx context.Context, key, value string) (bool, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
		INSERT INTO LocationCache (geoLocation, fullPlacename)
		VALUES ($1, $2)
		ON CONFLICT (geoLocation) DO NOTHING
	`, key, value)
	if err != nil {
		return false, fmt.Errorf("repository: failed to insert location cache row: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Count returns the number of cached rows.
func (r *LocationCacheRepository) Count(ctx context.Context) (int64, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var count int64
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM LocationCache`).Scan(&count); err != nil {
		return 0, fmt.Errorf("repository: failed to count location cache rows: %w", err)
	}
	return count, nil
}

// Close releases the pool if it was opened. It waits for an Open in
// progress, and a store closed before its first use stays disabled.
func (r *LocationCacheRepository) Close() {
	r.once.Do(func() {
		r.disabled.Store(true)
	})
	if r.pool != nil {
		r.pool.Close()
	}
}
