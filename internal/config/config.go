package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  string        `json:"log_level" yaml:"log_level"`
	DebugLogs bool          `json:"debug_logs" yaml:"debug_logs"`
	Ingest    IngestConfig  `json:"ingest" yaml:"ingest"`
	Auth      AuthConfig    `json:"auth" yaml:"auth"`
	Webhook   WebhookConfig `json:"webhook" yaml:"webhook"`
	Forward   ForwardConfig `json:"forward" yaml:"forward"`
	API       APIConfig     `json:"api" yaml:"api"`
	Storage   StorageConfig `json:"storage" yaml:"storage"`
	History   HistoryConfig `json:"history" yaml:"history"`
}

type IngestConfig struct {
	REST  RESTConfig  `json:"rest" yaml:"rest"`
	Kafka KafkaConfig `json:"kafka" yaml:"kafka"`
}

type RESTConfig struct {
	Addr         string `json:"addr" yaml:"addr"`
	MaxBodyBytes int64  `json:"max_body_bytes" yaml:"max_body_bytes"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type AuthConfig struct {
	APIKey string `json:"api_key" yaml:"api_key"`
}

type WebhookConfig struct {
	URL           string        `json:"url" yaml:"url"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout"`
	MentionRoleID string        `json:"mention_role_id" yaml:"mention_role_id"`
	Title         string        `json:"title" yaml:"title"`
	Description   string        `json:"description" yaml:"description"`
	Footer        string        `json:"footer" yaml:"footer"`
	Color         int           `json:"color" yaml:"color"`
}

type ForwardConfig struct {
	DedupeWindow time.Duration `json:"dedupe_window" yaml:"dedupe_window"`
	IgnoreIPs    []string      `json:"ignore_ips" yaml:"ignore_ips"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type HistoryConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Ingest: IngestConfig{
			REST:  RESTConfig{Addr: ":8088", MaxBodyBytes: 1 << 20},
			Kafka: KafkaConfig{Enabled: false, GroupID: "banalert"},
		},
		Webhook: WebhookConfig{
			Timeout:     5 * time.Second,
			Title:       "🚫 IP Banned",
			Description: "Automatic or manual ban event",
			Footer:      "IPBan",
			Color:       0xE11D48,
		},
		API:     APIConfig{Enabled: false, Addr: ":8089"},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:banalert.db?_pragma=busy_timeout(5000)"},
		History: HistoryConfig{StoreLimit: 500},
	}
}

// Load builds the effective configuration: defaults, then the optional file,
// then environment overrides. The result is validated.
func Load(path string, lookup LookupFunc) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return errors.New("config file is empty")
	}
	if looksLikeJSON(trimmed) {
		return json.Unmarshal([]byte(trimmed), cfg)
	}
	return yaml.Unmarshal([]byte(trimmed), cfg)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

// ApplyEnv overlays environment variables on cfg. Unset or blank variables
// leave the current value alone.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	get := func(keys ...string) (string, bool) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), true
			}
		}
		return "", false
	}

	if v, ok := get("API_KEY"); ok {
		cfg.Auth.APIKey = v
	}
	if v, ok := get("DISCORD_WEBHOOK_URL", "WEBHOOK_URL"); ok {
		cfg.Webhook.URL = v
	}
	if v, ok := get("HTTP_TIMEOUT"); ok {
		d, err := parseSecondsOrDuration(v)
		if err != nil {
			return fmt.Errorf("HTTP_TIMEOUT: %w", err)
		}
		cfg.Webhook.Timeout = d
	}
	if v, ok := get("MENTION_ROLE_ID"); ok {
		cfg.Webhook.MentionRoleID = v
	}
	if v, ok := get("DEBUG_LOGS"); ok {
		cfg.DebugLogs = parseBool(v)
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := get("PORT"); ok {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("PORT: %q is not a port number", v)
		}
		cfg.Ingest.REST.Addr = ":" + v
	}
	if v, ok := get("ADMIN_ADDR"); ok {
		cfg.API.Enabled = true
		cfg.API.Addr = v
	}
	if v, ok := get("DEDUPE_WINDOW"); ok {
		d, err := parseSecondsOrDuration(v)
		if err != nil {
			return fmt.Errorf("DEDUPE_WINDOW: %w", err)
		}
		cfg.Forward.DedupeWindow = d
	}
	if v, ok := get("IGNORE_IPS"); ok {
		cfg.Forward.IgnoreIPs = splitList(v)
	}
	if v, ok := get("STORAGE_DRIVER"); ok {
		cfg.Storage.Enabled = true
		cfg.Storage.Driver = v
	}
	if v, ok := get("STORAGE_DSN"); ok {
		cfg.Storage.DSN = v
	}
	if v, ok := get("KAFKA_BROKERS"); ok {
		cfg.Ingest.Kafka.Enabled = true
		cfg.Ingest.Kafka.Brokers = splitList(v)
	}
	if v, ok := get("KAFKA_TOPIC"); ok {
		cfg.Ingest.Kafka.Topic = v
	}
	if v, ok := get("KAFKA_GROUP_ID"); ok {
		cfg.Ingest.Kafka.GroupID = v
	}
	return nil
}

func parseSecondsOrDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func applyDefaults(cfg *Config) {
	cfg.Auth.APIKey = strings.TrimSpace(cfg.Auth.APIKey)
	cfg.Webhook.URL = strings.TrimSpace(cfg.Webhook.URL)
	if cfg.Webhook.Timeout <= 0 {
		cfg.Webhook.Timeout = 5 * time.Second
	}
	if cfg.Ingest.REST.MaxBodyBytes <= 0 {
		cfg.Ingest.REST.MaxBodyBytes = 1 << 20
	}
	if cfg.History.StoreLimit <= 0 {
		cfg.History.StoreLimit = 500
	}
	if cfg.Ingest.Kafka.GroupID == "" {
		cfg.Ingest.Kafka.GroupID = "banalert"
	}
}

func Validate(cfg *Config) error {
	if cfg.Auth.APIKey == "" {
		return errors.New("API_KEY env required")
	}
	if cfg.Webhook.URL == "" {
		return errors.New("DISCORD_WEBHOOK_URL env required")
	}
	if !strings.HasPrefix(cfg.Webhook.URL, "http://") && !strings.HasPrefix(cfg.Webhook.URL, "https://") {
		return fmt.Errorf("webhook url must be http(s): %q", cfg.Webhook.URL)
	}
	if cfg.Ingest.REST.Addr == "" {
		return errors.New("ingest.rest.addr required")
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Forward.DedupeWindow < 0 {
		return fmt.Errorf("forward.dedupe_window must not be negative: %s", cfg.Forward.DedupeWindow)
	}
	for _, entry := range cfg.Forward.IgnoreIPs {
		if _, err := ParseIPOrPrefix(entry); err != nil {
			return fmt.Errorf("forward.ignore_ips: %w", err)
		}
	}
	return nil
}

// ParseIPOrPrefix accepts a bare address or a CIDR prefix. Bare addresses
// become single-address prefixes.
func ParseIPOrPrefix(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
