// Package postgres implements the row store over PostgreSQL.
//
// A database holds one document. Sheets live in the sheets table with their
// header list; each row is a JSONB object keyed by header name.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/sheetrest/internal/core"
)

// DBTX is the subset of pgx used by the store.
// Satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sheets (
	sheet_index INTEGER PRIMARY KEY,
	title       TEXT    NOT NULL,
	headers     TEXT[]  NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS sheet_rows (
	row_ref     BIGSERIAL PRIMARY KEY,
	sheet_index INTEGER NOT NULL REFERENCES sheets (sheet_index) ON DELETE CASCADE,
	cells       JSONB   NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS sheet_rows_sheet_idx ON sheet_rows (sheet_index, row_ref);
`

// Store opens document handles backed by a connection pool.
type Store struct {
	pool       *pgxpool.Pool
	documentID string
}

// New returns a Store reporting documentID as the document identifier.
func New(pool *pgxpool.Pool, documentID string) *Store {
	return &Store{pool: pool, documentID: documentID}
}

// EnsureSchema creates the sheets and sheet_rows tables if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres: create schema: %w", err)
	}
	return nil
}

// CreateSheet adds a sheet after the last existing one and returns its
// zero-based index.
func (s *Store) CreateSheet(ctx context.Context, title string, headers []string) (int, error) {
	var index int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sheets (sheet_index, title, headers)
		SELECT COALESCE(MAX(sheet_index) + 1, 0), $1, $2 FROM sheets
		RETURNING sheet_index`, title, headers).Scan(&index)
	if err != nil {
		return 0, fmt.Errorf("postgres: create sheet %q: %w", title, err)
	}
	return index, nil
}

// Open acquires a connection and loads sheet metadata. The connection is
// released by Close.
func (s *Store) Open(ctx context.Context) (core.Document, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: acquire connection: %w", err)
	}

	sheets, err := loadSheets(ctx, conn)
	if err != nil {
		conn.Release()
		return nil, err
	}

	return &document{conn: conn, db: conn, id: s.documentID, sheets: sheets}, nil
}

func loadSheets(ctx context.Context, db DBTX) ([]core.SheetInfo, error) {
	rows, err := db.Query(ctx, `
		SELECT s.sheet_index, s.title, s.headers, COUNT(r.row_ref)
		FROM sheets s
		LEFT JOIN sheet_rows r ON r.sheet_index = s.sheet_index
		GROUP BY s.sheet_index, s.title, s.headers
		ORDER BY s.sheet_index`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load sheets: %w", err)
	}
	defer rows.Close()

	var out []core.SheetInfo
	for rows.Next() {
		var (
			id      int64
			info    core.SheetInfo
			headers []string
			count   int64
		)
		if err := rows.Scan(&id, &info.Title, &headers, &count); err != nil {
			return nil, fmt.Errorf("postgres: scan sheet: %w", err)
		}
		info.Index = len(out)
		info.ID = id
		info.Headers = headers
		info.RowCount = int(count)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load sheets: %w", err)
	}
	return out, nil
}

type document struct {
	conn   *pgxpool.Conn
	db     DBTX
	id     string
	sheets []core.SheetInfo
}

func (d *document) ID() string { return d.id }

func (d *document) Sheets() []core.SheetInfo { return d.sheets }

func (d *document) Rows(ctx context.Context, info core.SheetInfo, page core.Page) ([]core.Record, error) {
	var limit *int64
	if page.Limit > 0 {
		l := int64(page.Limit)
		limit = &l
	}

	rows, err := d.db.Query(ctx, `
		SELECT row_ref, cells FROM sheet_rows
		WHERE sheet_index = $1
		ORDER BY row_ref
		LIMIT $2 OFFSET $3`, info.ID, limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: read rows of %q: %w", info.Title, err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Record, error) {
		var (
			ref   int64
			cells map[string]any
		)
		if err := row.Scan(&ref, &cells); err != nil {
			return core.Record{}, err
		}
		return core.Record{Ref: core.RowRef(ref), Cells: cells}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan rows of %q: %w", info.Title, err)
	}
	return records, nil
}

func (d *document) AppendRow(ctx context.Context, info core.SheetInfo, row core.Row) error {
	_, err := d.db.Exec(ctx,
		`INSERT INTO sheet_rows (sheet_index, cells) VALUES ($1, $2)`,
		info.ID, row.Map())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: %q", core.ErrSheetNotFound, info.Title)
		}
		return fmt.Errorf("postgres: append to %q: %w", info.Title, err)
	}
	return nil
}

func (d *document) UpdateRow(ctx context.Context, info core.SheetInfo, rec core.Record) error {
	tag, err := d.db.Exec(ctx,
		`UPDATE sheet_rows SET cells = $3 WHERE row_ref = $1 AND sheet_index = $2`,
		int64(rec.Ref), info.ID, rec.Cells)
	if err != nil {
		return fmt.Errorf("postgres: update row %d: %w", rec.Ref, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: ref %d", core.ErrRowNotFound, rec.Ref)
	}
	return nil
}

func (d *document) DeleteRow(ctx context.Context, info core.SheetInfo, ref core.RowRef) error {
	tag, err := d.db.Exec(ctx,
		`DELETE FROM sheet_rows WHERE row_ref = $1 AND sheet_index = $2`,
		int64(ref), info.ID)
	if err != nil {
		return fmt.Errorf("postgres: delete row %d: %w", ref, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: ref %d", core.ErrRowNotFound, ref)
	}
	return nil
}

func (d *document) Close() error {
	if d.conn != nil {
		d.conn.Release()
		d.conn = nil
	}
	return nil
}
