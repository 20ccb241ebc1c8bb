package model

import "time"

const (
	AbsentMarker   = "-"
	DefaultBanType = "TEMPORARY"
	DefaultAdmin   = "AUTO_BAN_SYSTEM"
)

// BanNotification is the canonical form of an inbound ban event. BanType is
// usually TEMPORARY or PERMANENT but any string is kept. Timestamps are
// already normalized for display.
type BanNotification struct {
	IPAddress            string `json:"ipAddress"`
	Reason               string `json:"reason"`
	BanType              string `json:"banType"`
	BannedAt             string `json:"bannedAt"`
	ExpiresAt            string `json:"expiresAt"`
	BannedByAdminLoginID string `json:"bannedByAdminLoginId"`
	DurationMinutes      *int   `json:"durationMinutes,omitempty"`
}

type Outcome string

const (
	OutcomeDelivered  Outcome = "delivered"
	OutcomeFailed     Outcome = "failed"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeDuplicate  Outcome = "duplicate"
)

type Delivery struct {
	ID           string          `json:"id"`
	Source       string          `json:"source"`
	ReceivedAt   time.Time       `json:"received_at"`
	Notification BanNotification `json:"notification"`
	Outcome      Outcome         `json:"outcome"`
	StatusCode   int             `json:"status_code,omitempty"`
	Error        string          `json:"error,omitempty"`
	Latency      time.Duration   `json:"latency_ns,omitempty"`
}
