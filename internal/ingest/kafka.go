package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"banalert/internal/config"
	"banalert/internal/normalize"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

func StartKafka(ctx context.Context, cfg config.KafkaConfig, fwd Forwarder, logger *slog.Logger) {
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("kafka ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("kafka ingest enabled", "brokers", cfg.Brokers, "topic", cfg.Topic, "group_id", cfg.GroupID)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	go consume(ctx, reader, fwd, logger)
}

// consume forwards each message once. Delivery failures are logged and the
// offset still advances; retrying is the producer's decision.
func consume(ctx context.Context, reader messageReader, fwd Forwarder, logger *slog.Logger) {
	defer reader.Close()
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if logger != nil {
				logger.Warn("kafka read error", "err", err)
			}
			if !BackoffSleep(ctx, time.Second) {
				return
			}
			continue
		}
		payload := Decode(m.Value, headerValue(m.Headers, "content-encoding"), nil)
		d, err := fwd.Forward(ctx, payload, "kafka")
		if err != nil && logger != nil && !errors.Is(err, normalize.ErrMissingIP) {
			logger.Warn("kafka forward failed", "id", d.ID, "offset", m.Offset, "partition", m.Partition, "err", err)
		}
	}
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Key, key) {
			return string(h.Value)
		}
	}
	return ""
}
