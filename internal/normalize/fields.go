package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"banalert/internal/model"
)

var ErrMissingIP = errors.New("ipAddress missing: none of ipAddress, ip, ip_address present")

// Accepted key variants per canonical field, probed in order.
var (
	IPAliases       = []string{"ipAddress", "ip", "ip_address"}
	ReasonAliases   = []string{"reason"}
	BanTypeAliases  = []string{"banType", "ban_type"}
	BannedAtAliases = []string{"bannedAt", "banned_at"}
	ExpiresAliases  = []string{"expiresAt", "expires_at"}
	AdminAliases    = []string{"bannedByAdminLoginId", "banned_by_admin_login_id", "by"}
	DurationAliases = []string{"durationMinutes", "duration_minutes"}
)

// MapBan builds the canonical notification from a decoded payload. now is
// used when the payload carries no ban time.
func MapBan(payload map[string]any, now time.Time) (model.BanNotification, error) {
	n := model.BanNotification{
		Reason:               model.AbsentMarker,
		BanType:              model.DefaultBanType,
		BannedAt:             Format(now),
		ExpiresAt:            model.AbsentMarker,
		BannedByAdminLoginID: model.DefaultAdmin,
	}
	if v, ok := probe(payload, IPAliases); ok {
		n.IPAddress = asString(v)
	}
	if n.IPAddress == "" {
		return n, ErrMissingIP
	}
	if v, ok := probe(payload, ReasonAliases); ok {
		n.Reason = asString(v)
	}
	if v, ok := probe(payload, BanTypeAliases); ok {
		n.BanType = asString(v)
	}
	if v, ok := probe(payload, BannedAtAliases); ok {
		n.BannedAt = Timestamp(v)
	}
	if v, ok := probe(payload, ExpiresAliases); ok {
		n.ExpiresAt = Timestamp(v)
	}
	if v, ok := probe(payload, AdminAliases); ok {
		n.BannedByAdminLoginID = asString(v)
	}
	if v, ok := probe(payload, DurationAliases); ok {
		if minutes, ok := coerceMinutes(v); ok {
			n.DurationMinutes = &minutes
		}
	}
	return n, nil
}

// probe returns the first alias holding a non-null, non-blank value.
func probe(payload map[string]any, aliases []string) (any, bool) {
	for _, key := range aliases {
		v, ok := payload[key]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case []any, map[string]any:
		return compactJSON(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// coerceMinutes truncates numeric values toward zero; anything else is
// reported as absent.
func coerceMinutes(v any) (int, bool) {
	var f float64
	switch t := v.(type) {
	case bool:
		return 0, false
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), true
		}
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		parsed, ok := toFloat(v)
		if !ok {
			return 0, false
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(math.Trunc(f)), true
}
