package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS documents (
	id   INTEGER PRIMARY KEY,
	data BLOB NOT NULL
)`

// SQLiteRepo keeps one row per document in a SQLite database file. Each
// statement runs in its own implicit transaction, which gives Put its
// all-or-nothing behavior.
type SQLiteRepo struct {
	db *sql.DB
}

// OpenSQLiteRepo opens (creating if needed) the database at path.
func OpenSQLiteRepo(ctx context.Context, path string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fault("open", 0, fmt.Errorf("open sqlite %s: %w", path, err))
	}
	// a single connection serializes writers and keeps the pragma below in effect
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		sqliteSchema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fault("open", 0, fmt.Errorf("init sqlite: %w", err))
		}
	}
	return &SQLiteRepo{db: db}, nil
}

func (r *SQLiteRepo) Put(ctx context.Context, id uint64, data []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (id, data) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		int64(id), data)
	if err != nil {
		return fault("put", id, err)
	}
	return nil
}

func (r *SQLiteRepo) Get(ctx context.Context, id uint64) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE id = ?`, int64(id)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, fault("get", id, err)
	}
	return data, nil
}

func (r *SQLiteRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, int64(id))
	if err != nil {
		return fault("delete", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fault("delete", id, err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func (r *SQLiteRepo) Keys(ctx context.Context) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM documents ORDER BY id`)
	if err != nil {
		return nil, fault("keys", 0, err)
	}
	defer rows.Close()

	ids := []uint64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fault("keys", 0, err)
		}
		ids = append(ids, uint64(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fault("keys", 0, err)
	}
	return ids, nil
}

func (r *SQLiteRepo) Clear(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents`)
	if err != nil {
		return 0, fault("clear", 0, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fault("clear", 0, err)
	}
	return int(n), nil
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

var _ Repository = (*SQLiteRepo)(nil)
