package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx database/sql driver

	"github.com/MeKo-Tech/subtext/internal/pipeline"
)

const createTranslationsTable = `
create table if not exists translations (
	id          bigserial primary key,
	created_at  timestamptz not null default now(),
	request_id  text not null default '',
	x           integer not null,
	y           integer not null,
	w           integer not null,
	h           integer not null,
	message     text not null,
	translation text not null
)`

const insertTranslation = `
insert into translations (request_id, x, y, w, h, message, translation)
values ($1, $2, $3, $4, $5, $6, $7)`

// PostgresSink records every entry in the translations table.
type PostgresSink struct {
	DB *sql.DB
}

// OpenPostgres connects with the pgx driver and creates the table if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresSink, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := NewPostgresSink(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresSink uses an already opened database.
func NewPostgresSink(db *sql.DB) *PostgresSink { return &PostgresSink{DB: db} }

// Migrate creates the translations table.
func (s *PostgresSink) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, createTranslationsTable); err != nil {
		return fmt.Errorf("create translations table: %w", err)
	}
	return nil
}

// Report implements pipeline.Sink. The entries of one image are written in a
// single transaction.
func (s *PostgresSink) Report(ctx context.Context, entries []pipeline.Entry) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin report transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id := pipeline.RequestID(ctx)
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, insertTranslation, id, e.X, e.Y, e.W, e.H, e.Message, e.Translation); err != nil {
			return fmt.Errorf("insert translation: %w", err)
		}
	}
	return tx.Commit()
}

// Close implements pipeline.Sink.
func (s *PostgresSink) Close() error { return s.DB.Close() }
