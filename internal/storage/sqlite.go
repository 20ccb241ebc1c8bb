package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:banalert.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db, bind: func(int) string { return "?" }}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS deliveries (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			received_at TEXT NOT NULL,
			source TEXT NOT NULL,
			ip_address TEXT NOT NULL,
			ban_type TEXT NOT NULL,
			reason TEXT NOT NULL,
			banned_at TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			admin_login_id TEXT NOT NULL,
			duration_minutes INTEGER,
			outcome TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			error TEXT NOT NULL,
			latency_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_ip ON deliveries(ip_address)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
