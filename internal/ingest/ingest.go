package ingest

import (
	"context"
	"time"

	"banalert/internal/model"
)

// Forwarder is the pipeline every ingest path hands decoded payloads to.
type Forwarder interface {
	Forward(ctx context.Context, payload map[string]any, source string) (model.Delivery, error)
}

func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
