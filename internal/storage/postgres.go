package storage

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/banalert?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db, bind: func(n int) string { return "$" + strconv.Itoa(n) }}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS deliveries (
			seq BIGSERIAL PRIMARY KEY,
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
			latency_ms BIGINT NOT NULL
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
