//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package sqlite provides SQLite-based checkpoint storage.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Register the "sqlite" driver.

	"trpc.group/trpc-go/trpc-agent-scout/checkpoint"
)

// DriverName is the database/sql driver name registered by modernc.org/sqlite.
const DriverName = "sqlite"

const (
	sqliteCreateCheckpoints = "CREATE TABLE IF NOT EXISTS checkpoints (" +
		"seq INTEGER PRIMARY KEY AUTOINCREMENT, " +
		"thread_id TEXT NOT NULL, " +
		"checkpoint_id TEXT NOT NULL, " +
		"parent_checkpoint_id TEXT NOT NULL DEFAULT '', " +
		"ts INTEGER NOT NULL, " +
		"messages_json BLOB NOT NULL, " +
		"metadata_json BLOB NOT NULL, " +
		"UNIQUE (thread_id, checkpoint_id)" +
		")"

	sqliteCreateThreadIndex = "CREATE INDEX IF NOT EXISTS idx_checkpoints_thread " +
		"ON checkpoints (thread_id, seq)"

	sqliteInsertCheckpoint = "INSERT INTO checkpoints (" +
		"thread_id, checkpoint_id, parent_checkpoint_id, ts, messages_json, metadata_json) " +
		"VALUES (?, ?, ?, ?, ?, ?)"

	sqliteSelectColumns = "SELECT thread_id, checkpoint_id, parent_checkpoint_id, ts, messages_json, metadata_json " +
		"FROM checkpoints "

	sqliteSelectLatest = sqliteSelectColumns + "WHERE thread_id = ? ORDER BY seq DESC LIMIT 1"

	sqliteSelectByID = sqliteSelectColumns + "WHERE thread_id = ? AND checkpoint_id = ? LIMIT 1"

	sqliteSelectList = sqliteSelectColumns + "WHERE thread_id = ? ORDER BY seq DESC LIMIT ?"

	sqliteExistsID = "SELECT COUNT(*) FROM checkpoints WHERE thread_id = ? AND checkpoint_id = ?"

	sqlitePruneThread = "DELETE FROM checkpoints WHERE thread_id = ? AND seq NOT IN (" +
		"SELECT seq FROM checkpoints WHERE thread_id = ? ORDER BY seq DESC LIMIT ?)"

	sqliteDeleteThread = "DELETE FROM checkpoints WHERE thread_id = ?"

	sqliteSelectThreads = "SELECT DISTINCT thread_id FROM checkpoints ORDER BY thread_id"
)

var _ checkpoint.Saver = (*Saver)(nil)

type saverOpts struct {
	maxCheckpointsPerThread int
}

// Option configures the SQLite saver.
type Option func(*saverOpts)

// WithMaxCheckpointsPerThread keeps only the newest n checkpoints of each
// thread. n <= 0 keeps everything.
func WithMaxCheckpointsPerThread(n int) Option {
	return func(opts *saverOpts) {
		opts.maxCheckpointsPerThread = n
	}
}

// Saver is a SQLite-backed checkpoint.Saver.
// Messages and metadata are stored as JSON blobs.
type Saver struct {
	db     *sql.DB
	ownsDB bool
	opts   saverOpts
}

// Open opens (creating if missing) the SQLite database at path and returns a
// saver that closes the database on Close.
func Open(ctx context.Context, path string, opts ...Option) (*Saver, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection keeps Put serialized.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	s, err := NewSaver(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// NewSaver creates a new saver using the provided DB.
// The DB must use a SQLite driver. The constructor creates tables if needed.
func NewSaver(db *sql.DB, opts ...Option) (*Saver, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if _, err := db.Exec(sqliteCreateCheckpoints); err != nil {
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}
	if _, err := db.Exec(sqliteCreateThreadIndex); err != nil {
		return nil, fmt.Errorf("create checkpoints index: %w", err)
	}
	o := saverOpts{maxCheckpointsPerThread: checkpoint.DefaultMaxCheckpointsPerThread}
	for _, opt := range opts {
		opt(&o)
	}
	return &Saver{db: db, opts: o}, nil
}

// Put implements checkpoint.Saver.
func (s *Saver) Put(ctx context.Context, cp *checkpoint.Checkpoint) (err error) {
	if cp == nil {
		return checkpoint.ErrNilCheckpoint
	}
	if cp.ThreadID == "" {
		return checkpoint.ErrThreadIDRequired
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	latest, err := scanCheckpoint(tx.QueryRowContext(ctx, sqliteSelectLatest, cp.ThreadID))
	if err != nil {
		return fmt.Errorf("select latest: %w", err)
	}
	var existsErr error
	stored, err := checkpoint.Prepare(cp, latest, func(id string) bool {
		var n int
		if err := tx.QueryRowContext(ctx, sqliteExistsID, cp.ThreadID, id).Scan(&n); err != nil {
			existsErr = err
			return false
		}
		return n > 0
	})
	if existsErr != nil {
		return fmt.Errorf("check checkpoint id: %w", existsErr)
	}
	if err != nil {
		return err
	}

	messagesJSON, err := json.Marshal(stored.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	metadataJSON, err := json.Marshal(stored.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if _, err = tx.ExecContext(ctx, sqliteInsertCheckpoint,
		stored.ThreadID, stored.ID, stored.ParentID, stored.CreatedAt.UnixNano(),
		messagesJSON, metadataJSON,
	); err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	if max := s.opts.maxCheckpointsPerThread; max > 0 {
		if _, err = tx.ExecContext(ctx, sqlitePruneThread, stored.ThreadID, stored.ThreadID, max); err != nil {
			return fmt.Errorf("prune checkpoints: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	cp.ApplyStored(stored)
	return nil
}

// Get implements checkpoint.Saver.
func (s *Saver) Get(ctx context.Context, threadID string) (*checkpoint.Checkpoint, error) {
	if threadID == "" {
		return nil, checkpoint.ErrThreadIDRequired
	}
	cp, err := scanCheckpoint(s.db.QueryRowContext(ctx, sqliteSelectLatest, threadID))
	if err != nil {
		return nil, fmt.Errorf("select latest: %w", err)
	}
	return cp, nil
}

// GetByID implements checkpoint.Saver.
func (s *Saver) GetByID(ctx context.Context, threadID, id string) (*checkpoint.Checkpoint, error) {
	if threadID == "" {
		return nil, checkpoint.ErrThreadIDRequired
	}
	cp, err := scanCheckpoint(s.db.QueryRowContext(ctx, sqliteSelectByID, threadID, id))
	if err != nil {
		return nil, fmt.Errorf("select by id: %w", err)
	}
	return cp, nil
}

// List implements checkpoint.Saver.
func (s *Saver) List(ctx context.Context, threadID string, limit int) ([]*checkpoint.Checkpoint, error) {
	if threadID == "" {
		return nil, checkpoint.ErrThreadIDRequired
	}
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unbounded.
	}
	rows, err := s.db.QueryContext(ctx, sqliteSelectList, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("select list: %w", err)
	}
	defer rows.Close()

	var out []*checkpoint.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate list: %w", err)
	}
	return out, nil
}

// Delete implements checkpoint.Saver.
func (s *Saver) Delete(ctx context.Context, threadID string) error {
	if threadID == "" {
		return checkpoint.ErrThreadIDRequired
	}
	if _, err := s.db.ExecContext(ctx, sqliteDeleteThread, threadID); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}

// Threads implements checkpoint.Saver.
func (s *Saver) Threads(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectThreads)
	if err != nil {
		return nil, fmt.Errorf("select threads: %w", err)
	}
	defer rows.Close()
	threads := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		threads = append(threads, id)
	}
	return threads, rows.Err()
}

// Close implements checkpoint.Saver. The database is closed only when the
// saver opened it.
func (s *Saver) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanCheckpoint decodes one row; sql.ErrNoRows yields nil, nil.
func scanCheckpoint(row scanner) (*checkpoint.Checkpoint, error) {
	var (
		cp           checkpoint.Checkpoint
		ts           int64
		messagesJSON []byte
		metadataJSON []byte
	)
	if err := row.Scan(&cp.ThreadID, &cp.ID, &cp.ParentID, &ts, &messagesJSON, &metadataJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(messagesJSON, &cp.Messages); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	if err := json.Unmarshal(metadataJSON, &cp.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	cp.CreatedAt = time.Unix(0, ts)
	return &cp, nil
}
