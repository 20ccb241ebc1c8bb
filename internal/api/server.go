package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"banalert/internal/alerts"
	"banalert/internal/config"
	"banalert/internal/metrics"
	"banalert/internal/model"
	"banalert/internal/storage"
)

type Server struct {
	cfg     *config.Config
	alerts  *alerts.Store
	store   storage.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	version string
	started time.Time
}

type statusResponse struct {
	Status  string        `json:"status"`
	Time    string        `json:"time"`
	Version string        `json:"version"`
	Uptime  string        `json:"uptime"`
	Ingest  ingestStatus  `json:"ingest"`
	Webhook webhookStatus `json:"webhook"`
	Forward forwardStatus `json:"forward"`
	Storage storageStatus `json:"storage"`
	History int           `json:"history_size"`
}

type ingestStatus struct {
	RESTAddr string `json:"rest_addr"`
	Kafka    bool   `json:"kafka"`
}

// webhookStatus deliberately omits the URL, which embeds the webhook token.
type webhookStatus struct {
	Timeout    string `json:"timeout"`
	Mentioning bool   `json:"mentioning"`
}

type forwardStatus struct {
	DedupeWindow string   `json:"dedupe_window"`
	IgnoreIPs    []string `json:"ignore_ips"`
}

type storageStatus struct {
	Enabled bool   `json:"enabled"`
	Driver  string `json:"driver,omitempty"`
}

func NewServer(cfg *config.Config, alertsStore *alerts.Store, store storage.Store, m *metrics.Metrics, logger *slog.Logger, version string) *Server {
	return &Server{
		cfg:     cfg,
		alerts:  alertsStore,
		store:   store,
		metrics: m,
		logger:  logger,
		version: version,
		started: time.Now().UTC(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/deliveries", s.handleDeliveries)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

func Start(ctx context.Context, s *Server) *http.Server {
	if s == nil || s.cfg == nil {
		return nil
	}
	current := s.cfg.API
	if !current.Enabled {
		if s.logger != nil {
			s.logger.Info("api disabled")
		}
		return nil
	}
	if s.logger != nil {
		s.logger.Info("api enabled", "addr", current.Addr)
	}
	httpServer := &http.Server{Addr: current.Addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg
	resp := statusResponse{
		Status:  "ok",
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
		Version: s.version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Ingest: ingestStatus{
			RESTAddr: cfg.Ingest.REST.Addr,
			Kafka:    cfg.Ingest.Kafka.Enabled,
		},
		Webhook: webhookStatus{
			Timeout:    cfg.Webhook.Timeout.String(),
			Mentioning: cfg.Webhook.MentionRoleID != "",
		},
		Forward: forwardStatus{
			DedupeWindow: cfg.Forward.DedupeWindow.String(),
			IgnoreIPs:    cfg.Forward.IgnoreIPs,
		},
		Storage: storageStatus{Enabled: s.store != nil},
	}
	if s.store != nil {
		resp.Storage.Driver = cfg.Storage.Driver
	}
	if s.alerts != nil {
		resp.History = s.alerts.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDeliveries serves the in-memory history, or the audit table when
// from=store is given and storage is enabled.
func (s *Server) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var list []model.Delivery
	switch {
	case q.Get("from") == "store":
		if s.store == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		stored, err := s.store.RecentDeliveries(r.Context(), limit)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("list deliveries failed", "err", err)
			}
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		list = stored
	case q.Get("since") != "":
		ts, err := time.Parse(time.RFC3339, q.Get("since"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.alerts.Since(ts)
	default:
		list = s.alerts.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deliveries": list,
		"count":      len(list),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
