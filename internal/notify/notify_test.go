package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"banalert/internal/model"
)

func sample() model.BanNotification {
	minutes := 60
	return model.BanNotification{
		IPAddress:            "10.0.0.5",
		Reason:               "abuse",
		BanType:              "TEMPORARY",
		BannedAt:             "2023-11-14T22:13:20Z",
		ExpiresAt:            "-",
		BannedByAdminLoginID: "AUTO_BAN_SYSTEM",
		DurationMinutes:      &minutes,
	}
}

func TestRenderFieldOrder(t *testing.T) {
	msg := Render(sample(), Options{Title: "IP Banned", Color: 0xE11D48, Footer: "IPBan"})
	if msg.Content != "" || msg.AllowedMentions != nil {
		t.Fatalf("no mention configured, got %q", msg.Content)
	}
	if len(msg.Embeds) != 1 {
		t.Fatalf("embeds: %d", len(msg.Embeds))
	}
	want := []string{"IP", "Type", "Reason", "Banned At", "Expires At", "Admin", "Duration (min)"}
	fields := msg.Embeds[0].Fields
	if len(fields) != len(want) {
		t.Fatalf("fields: %d", len(fields))
	}
	for i, name := range want {
		if fields[i].Name != name {
			t.Fatalf("field %d: %q want %q", i, fields[i].Name, name)
		}
	}
	if fields[0].Value != "`10.0.0.5`" || fields[6].Value != "60" {
		t.Fatalf("values: %q %q", fields[0].Value, fields[6].Value)
	}
	if msg.Embeds[0].Footer == nil || msg.Embeds[0].Footer.Text != "IPBan" {
		t.Fatalf("footer missing")
	}
}

func TestRenderMentionAndAbsentDuration(t *testing.T) {
	n := sample()
	n.DurationMinutes = nil
	msg := Render(n, Options{MentionRoleID: "42"})
	if msg.Content != "<@&42>" {
		t.Fatalf("content: %q", msg.Content)
	}
	if got := msg.Embeds[0].Fields[6].Value; got != "-" {
		t.Fatalf("duration: %q", got)
	}
}

func TestRenderClipsLongReason(t *testing.T) {
	n := sample()
	n.Reason = strings.Repeat("x", 3000)
	msg := Render(n, Options{})
	if got := len([]rune(msg.Embeds[0].Fields[2].Value)); got != maxFieldValue {
		t.Fatalf("reason length: %d", got)
	}
}

func TestSendSuccess(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type: %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, 2*time.Second)
	if err := wh.Send(context.Background(), Render(sample(), Options{Title: "t"})); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(got.Embeds) != 1 || got.Embeds[0].Title != "t" {
		t.Fatalf("remote got %+v", got)
	}
}

func TestSendUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, 2*time.Second).Send(context.Background(), Render(sample(), Options{}))
	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if de.StatusCode != 500 || !strings.Contains(de.Body, "boom") {
		t.Fatalf("unexpected error detail: %+v", de)
	}
}

func TestSendTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, 50*time.Millisecond).Send(context.Background(), Render(sample(), Options{}))
	var de *DeliveryError
	if !errors.As(err, &de) || de.StatusCode != 0 {
		t.Fatalf("expected transport DeliveryError, got %v", err)
	}
}
