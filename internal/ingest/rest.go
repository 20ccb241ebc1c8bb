package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"banalert/internal/auth"
	"banalert/internal/config"
	"banalert/internal/metrics"
	"banalert/internal/normalize"
	"banalert/internal/notify"
)

// debugPreviewBytes bounds the raw body dumped when debug logging is on.
const debugPreviewBytes = 4096

type RESTServer struct {
	cfg     *config.Config
	auth    *auth.Authenticator
	fwd     Forwarder
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewRESTServer(cfg *config.Config, authenticator *auth.Authenticator, fwd Forwarder, m *metrics.Metrics, logger *slog.Logger) *RESTServer {
	return &RESTServer{cfg: cfg, auth: authenticator, fwd: fwd, metrics: m, logger: logger}
}

func (s *RESTServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/alert/ban", s.handleBan)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	return mux
}

// StartREST binds the ingest listener and serves until ctx is done.
func StartREST(ctx context.Context, s *RESTServer) (*http.Server, error) {
	addr := s.cfg.Ingest.REST.Addr
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	if s.logger != nil {
		s.logger.Info("rest ingest enabled", "addr", ln.Addr().String())
	}
	// The write timeout leaves room for the webhook call.
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.Webhook.Timeout + 10*time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Error("rest ingest server error", "err", err)
			}
		}
	}()
	return httpServer, nil
}

func (s *RESTServer) handleBan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.auth.Check(r.Header); err != nil {
		s.metrics.ObserveRejected("rest", "unauthorized")
		writeDetail(w, http.StatusUnauthorized, err.Error())
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.Ingest.REST.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeDetail(w, http.StatusBadRequest, "could not read request body")
		return
	}
	if s.cfg.DebugLogs && s.logger != nil {
		s.logger.Info("raw ban alert",
			"body", Preview(body, debugPreviewBytes),
			"content_type", r.Header.Get("Content-Type"),
			"content_encoding", r.Header.Get("Content-Encoding"),
			"content_length", r.ContentLength,
			"user_agent", r.UserAgent(),
		)
	}

	payload := Decode(body, r.Header.Get("Content-Encoding"), r.URL.Query())
	d, err := s.fwd.Forward(r.Context(), payload, "rest")
	if err != nil {
		var de *notify.DeliveryError
		switch {
		case errors.Is(err, normalize.ErrMissingIP):
			writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		case errors.As(err, &de):
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"detail":          de.Error(),
				"upstream_status": de.StatusCode,
				"id":              d.ID,
			})
		default:
			writeDetail(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"id":      d.ID,
		"outcome": d.Outcome,
	})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
