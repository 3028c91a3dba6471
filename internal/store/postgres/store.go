// Package postgres implements the document store on a single jsonb row.
// The whole-document read/mutate/write contract is the same as the file
// backend; Postgres only adds durability beyond a single host volume.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/plantops/breakdown-board/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists the document in the board_document table.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Postgres-backed document store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Name identifies the backend in logs and metrics.
func (s *Store) Name() string { return "postgres" }

// Migrate applies pending schema migrations.
func Migrate(pool *pgxpool.Pool) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Load reads the document, seeding the row if it does not exist yet.
func (s *Store) Load(ctx context.Context) (*store.Document, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM board_document WHERE id = 1`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		seed := store.Seed()
		if err := s.Save(ctx, seed); err != nil {
			return nil, fmt.Errorf("seed document: %w", err)
		}
		return seed, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}

	var doc store.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}

// Save upserts the document row.
func (s *Store) Save(ctx context.Context, doc *store.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO board_document (id, body, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		raw,
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// Raw returns the stored document bytes verbatim.
func (s *Store) Raw(ctx context.Context) ([]byte, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM board_document WHERE id = 1`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := s.Load(ctx); err != nil {
			return nil, err
		}
		return s.Raw(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}
	return raw, nil
}
