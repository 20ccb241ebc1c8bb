package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"banalert/internal/config"
	"banalert/internal/model"
)

// Store is a best-effort audit log of deliveries.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveDelivery(ctx context.Context, d model.Delivery) error
	RecentDeliveries(ctx context.Context, limit int) ([]model.Delivery, error)
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

// baseStore holds the queries shared by both drivers. bind renders the
// n-th (1-based) placeholder in the driver's syntax.
type baseStore struct {
	db   *sql.DB
	bind func(n int) string
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *baseStore) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = b.bind(i + 1)
	}
	return strings.Join(parts, ", ")
}

func (b *baseStore) SaveDelivery(ctx context.Context, d model.Delivery) error {
	if b.db == nil {
		return nil
	}
	n := d.Notification
	var duration sql.NullInt64
	if n.DurationMinutes != nil {
		duration = sql.NullInt64{Int64: int64(*n.DurationMinutes), Valid: true}
	}
	query := `INSERT INTO deliveries (id, received_at, source, ip_address, ban_type, reason, banned_at, expires_at,
		admin_login_id, duration_minutes, outcome, status_code, error, latency_ms)
		VALUES (` + b.placeholders(14) + `)`
	_, err := b.db.ExecContext(ctx, query,
		d.ID,
		d.ReceivedAt.UTC().Format(time.RFC3339Nano),
		d.Source,
		n.IPAddress,
		n.BanType,
		n.Reason,
		n.BannedAt,
		n.ExpiresAt,
		n.BannedByAdminLoginID,
		duration,
		string(d.Outcome),
		d.StatusCode,
		d.Error,
		d.Latency.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert delivery %s: %w", d.ID, err)
	}
	return nil
}

func (b *baseStore) RecentDeliveries(ctx context.Context, limit int) ([]model.Delivery, error) {
	if b.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, received_at, source, ip_address, ban_type, reason, banned_at, expires_at,
		admin_login_id, duration_minutes, outcome, status_code, error, latency_ms
		FROM deliveries ORDER BY seq DESC LIMIT `+b.bind(1), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Delivery, 0)
	for rows.Next() {
		var (
			d         model.Delivery
			received  string
			outcome   string
			duration  sql.NullInt64
			latencyMS int64
		)
		if err := rows.Scan(&d.ID, &received, &d.Source, &d.Notification.IPAddress, &d.Notification.BanType,
			&d.Notification.Reason, &d.Notification.BannedAt, &d.Notification.ExpiresAt,
			&d.Notification.BannedByAdminLoginID, &duration, &outcome, &d.StatusCode, &d.Error, &latencyMS); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, received); err == nil {
			d.ReceivedAt = ts
		}
		if duration.Valid {
			minutes := int(duration.Int64)
			d.Notification.DurationMinutes = &minutes
		}
		d.Outcome = model.Outcome(outcome)
		d.Latency = time.Duration(latencyMS) * time.Millisecond
		out = append(out, d)
	}
	return out, rows.Err()
}
