package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"banalert/internal/alerts"
	"banalert/internal/config"
	"banalert/internal/metrics"
	"banalert/internal/model"
	"banalert/internal/normalize"
	"banalert/internal/notify"
	"banalert/internal/storage"
)

// Sender delivers a rendered message to the webhook.
type Sender interface {
	Send(ctx context.Context, msg notify.Message) error
}

// Engine maps decoded payloads to notifications and forwards them. It keeps
// no per-request state besides the dedupe cache.
type Engine struct {
	cfg     *config.Config
	logger  *slog.Logger
	sender  Sender
	alerts  *alerts.Store
	store   storage.Store
	metrics *metrics.Metrics
	ignore  *IgnoreList
	deDupe  *DedupeCache
	render  notify.Options
	now     func() time.Time
}

func NewEngine(cfg *config.Config, logger *slog.Logger, sender Sender, alertsStore *alerts.Store, store storage.Store, m *metrics.Metrics) *Engine {
	return &Engine{
		cfg:     cfg,
		logger:  logger,
		sender:  sender,
		alerts:  alertsStore,
		store:   store,
		metrics: m,
		ignore:  buildIgnoreList(cfg.Forward.IgnoreIPs),
		deDupe:  NewDedupeCache(),
		render:  notify.OptionsFrom(cfg.Webhook),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Forward runs one payload through the pipeline. Errors are either
// normalize.ErrMissingIP (nothing was sent) or a *notify.DeliveryError.
func (e *Engine) Forward(ctx context.Context, payload map[string]any, source string) (model.Delivery, error) {
	received := e.now()
	n, err := normalize.MapBan(payload, received)
	if err != nil {
		e.metrics.ObserveRejected(source, "unparseable")
		if e.logger != nil {
			e.logger.Warn("unparseable ban payload", "source", source, "err", err, "payload", payload)
		}
		return model.Delivery{}, fmt.Errorf("schema error: %w", err)
	}

	d := model.Delivery{
		ID:           uuid.NewString(),
		Source:       source,
		ReceivedAt:   received,
		Notification: n,
	}

	window := e.cfg.Forward.DedupeWindow
	key := dedupeKey(n)
	switch {
	case e.ignore.Match(n.IPAddress):
		d.Outcome = model.OutcomeSuppressed
	case window > 0 && e.deDupe.Seen(key, received, window):
		d.Outcome = model.OutcomeDuplicate
	default:
		started := time.Now()
		err = e.sender.Send(ctx, notify.Render(n, e.render))
		d.Latency = time.Since(started)
		if err != nil {
			d.Outcome = model.OutcomeFailed
			d.Error = err.Error()
			var de *notify.DeliveryError
			if errors.As(err, &de) {
				d.StatusCode = de.StatusCode
			}
		} else {
			d.Outcome = model.OutcomeDelivered
			if window > 0 {
				e.deDupe.Mark(key, received, window)
			}
		}
	}

	e.record(ctx, d)
	return d, err
}

func (e *Engine) record(ctx context.Context, d model.Delivery) {
	if e.alerts != nil {
		e.alerts.Add(d)
	}
	e.metrics.ObserveDelivery(d)
	if e.store != nil {
		if err := e.store.SaveDelivery(context.WithoutCancel(ctx), d); err != nil && e.logger != nil {
			e.logger.Warn("audit save failed", "id", d.ID, "err", err)
		}
	}
	if e.logger == nil {
		return
	}
	attrs := []any{
		"id", d.ID,
		"source", d.Source,
		"ip", d.Notification.IPAddress,
		"ban_type", d.Notification.BanType,
		"outcome", d.Outcome,
	}
	if d.Outcome == model.OutcomeFailed {
		e.logger.Warn("ban notification not delivered", append(attrs, "status", d.StatusCode, "err", d.Error)...)
		return
	}
	e.logger.Info("ban notification processed", append(attrs, "latency_ms", d.Latency.Milliseconds())...)
}

func dedupeKey(n model.BanNotification) string {
	duration := ""
	if n.DurationMinutes != nil {
		duration = strconv.Itoa(*n.DurationMinutes)
	}
	parts := []string{n.IPAddress, n.BanType, n.Reason, n.BannedAt, n.ExpiresAt, n.BannedByAdminLoginID, duration}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
