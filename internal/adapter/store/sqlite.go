package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"partnerbot/internal/domain"
)

// SQLiteStore implements domain.PrincipalStore and domain.NonceStore using
// SQLite. Records carry an expiry timestamp; reads treat expired rows as
// absent and the Sweep method removes them for good.
type SQLiteStore struct {
	db       *sql.DB
	ttl      time.Duration
	nonceTTL time.Duration
	now      func() time.Time // test seam
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs the
// schema migration. ttl bounds principal record lifetime, nonceTTL bounds
// how long an issued sign-in link stays redeemable.
func NewSQLiteStore(dbPath string, ttl, nonceTTL time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store db: %w", err)
	}
	return &SQLiteStore{db: db, ttl: ttl, nonceTTL: nonceTTL, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS principals (
			conversation_id TEXT PRIMARY KEY,
			principal       TEXT NOT NULL,
			expires_at      TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS nonces (
			conversation_id TEXT PRIMARY KEY,
			nonce           TEXT NOT NULL,
			expires_at      TEXT NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get implements domain.PrincipalStore.
func (s *SQLiteStore) Get(ctx context.Context, conversationID string) (domain.Principal, error) {
	var raw, expiresStr string
	err := s.db.QueryRowContext(ctx,
		"SELECT principal, expires_at FROM principals WHERE conversation_id = ?", conversationID,
	).Scan(&raw, &expiresStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Principal{}, domain.ErrPrincipalNotFound
		}
		return domain.Principal{}, fmt.Errorf("query principal: %w", err)
	}

	expiresAt, err := time.Parse(time.RFC3339Nano, expiresStr)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("parse principal expiry: %w", err)
	}
	if !s.now().Before(expiresAt) {
		return domain.Principal{}, domain.ErrPrincipalNotFound
	}

	var p domain.Principal
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.Principal{}, fmt.Errorf("unmarshal principal: %w", err)
	}
	return p, nil
}

// Put implements domain.PrincipalStore. The record lifetime restarts on
// every write, so active conversations stay alive.
func (s *SQLiteStore) Put(ctx context.Context, conversationID string, p domain.Principal) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal principal: %w", err)
	}
	expiresAt := s.now().Add(s.ttl).UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO principals (conversation_id, principal, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET principal = excluded.principal, expires_at = excluded.expires_at`,
		conversationID, string(raw), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert principal: %w", err)
	}
	return nil
}

// Delete implements domain.PrincipalStore. Deleting an absent record is not
// an error.
func (s *SQLiteStore) Delete(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM principals WHERE conversation_id = ?", conversationID)
	return err
}

// PutNonce implements domain.NonceStore. A repeated login supersedes the
// previous nonce for the conversation.
func (s *SQLiteStore) PutNonce(ctx context.Context, conversationID, nonce string) error {
	expiresAt := s.now().Add(s.nonceTTL).UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nonces (conversation_id, nonce, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET nonce = excluded.nonce, expires_at = excluded.expires_at`,
		conversationID, nonce, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert nonce: %w", err)
	}
	return nil
}

// GetNonce implements domain.NonceStore.
func (s *SQLiteStore) GetNonce(ctx context.Context, conversationID string) (string, error) {
	var nonce, expiresStr string
	err := s.db.QueryRowContext(ctx,
		"SELECT nonce, expires_at FROM nonces WHERE conversation_id = ?", conversationID,
	).Scan(&nonce, &expiresStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", domain.ErrNonceNotFound
		}
		return "", fmt.Errorf("query nonce: %w", err)
	}

	expiresAt, err := time.Parse(time.RFC3339Nano, expiresStr)
	if err != nil {
		return "", fmt.Errorf("parse nonce expiry: %w", err)
	}
	if !s.now().Before(expiresAt) {
		return "", domain.ErrNonceNotFound
	}
	return nonce, nil
}

// DeleteNonce implements domain.NonceStore.
func (s *SQLiteStore) DeleteNonce(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM nonces WHERE conversation_id = ?", conversationID)
	return err
}

// Sweep implements domain.Sweeper: it deletes principal and nonce rows whose
// expiry has passed, and returns how many went.
func (s *SQLiteStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.UTC().Format(time.RFC3339Nano)
	total := 0

	res, err := s.db.ExecContext(ctx, "DELETE FROM principals WHERE expires_at <= ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep principals: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += int(n)
	}

	res, err = s.db.ExecContext(ctx, "DELETE FROM nonces WHERE expires_at <= ?", cutoff)
	if err != nil {
		return total, fmt.Errorf("sweep nonces: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += int(n)
	}
	return total, nil
}
