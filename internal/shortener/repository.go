// Package shortener maps short codes to their original targets.
package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// URLMap is a committed short-code mapping. Entries are created once and
// never updated or deleted.
type URLMap struct {
	ID        int64     `json:"id"`
	Original  string    `json:"original"`
	Short     string    `json:"short"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrNotFound is returned when no mapping exists for a short code.
var ErrNotFound = errors.New("short link not found")

// ErrShortTaken is returned when a short code is already occupied, whether
// detected by a pre-check or by the store's uniqueness constraint.
var ErrShortTaken = errors.New("short link already exists")

// Store persists mappings. Insert must report ErrShortTaken when the short
// code collides with an existing row — the allocation engine drives its
// retry loop on that signal rather than on a lookup-then-insert sequence.
type Store interface {
	Insert(ctx context.Context, original, short string) (*URLMap, error)
	GetByShort(ctx context.Context, short string) (*URLMap, error)
}

// Repository implements Store on top of PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Insert persists a new mapping and returns the created record.
func (r *Repository) Insert(ctx context.Context, original, short string) (*URLMap, error) {
	m := &URLMap{}
	err := r.db.QueryRow(ctx,
		`INSERT INTO url_maps (original, short)
		 VALUES ($1, $2)
		 RETURNING id, original, short, created_at`,
		original, short,
	).Scan(&m.ID, &m.Original, &m.Short, &m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrShortTaken
		}
		return nil, fmt.Errorf("insert url map: %w", err)
	}
	return m, nil
}

// GetByShort fetches a mapping by its short code (exact, case-sensitive match).
func (r *Repository) GetByShort(ctx context.Context, short string) (*URLMap, error) {
	m := &URLMap{}
	err := r.db.QueryRow(ctx,
		`SELECT id, original, short, created_at
		 FROM url_maps WHERE short = $1`,
		short,
	).Scan(&m.ID, &m.Original, &m.Short, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get url map by short: %w", err)
	}
	return m, nil
}

// isUniqueViolation checks whether an error is a PostgreSQL unique_violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
