// Package sqlite keeps the memory store durable by writing its collections
// as JSON blobs to a single SQLite table as part of every transaction. A
// transaction whose write fails is not applied in memory either.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/Spok95/batch-weighing/internal/infra/persistence/memory"
)

type Store struct {
	*memory.Store
	db   *sql.DB
	path string
}

var buckets = []string{"products", "materials", "processes", "archive", "packaging"}

func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "weighd.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}

	s := &Store{db: db, path: path}
	s.Store = memory.New(memory.WithCommitHook(s.persist))
	if err := s.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		snap  memory.Snapshot
		found bool
	)
	for rows.Next() {
		var (
			bucket  string
			payload []byte
		)
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		found = true
		var target any
		switch bucket {
		case "products":
			target = &snap.Products
		case "materials":
			target = &snap.Materials
		case "processes":
			target = &snap.Processes
		case "archive":
			target = &snap.Archive
		case "packaging":
			target = &snap.Packaging
		default:
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if found {
		s.Import(snap)
	}
	return nil
}

// persist runs inside the memory store lock, so writes are already serialized.
func (s *Store) persist(ctx context.Context, snap memory.Snapshot) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range buckets {
		var data []byte
		switch bucket {
		case "products":
			data, err = json.Marshal(snap.Products)
		case "materials":
			data, err = json.Marshal(snap.Materials)
		case "processes":
			data, err = json.Marshal(snap.Processes)
		case "archive":
			data, err = json.Marshal(snap.Archive)
		case "packaging":
			data, err = json.Marshal(snap.Packaging)
		}
		if err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	return tx.Commit()
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Path() string { return s.path }
