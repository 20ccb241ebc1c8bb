package notify

import (
	"strconv"
	"unicode/utf8"

	"banalert/internal/config"
	"banalert/internal/model"
)

// Discord rejects embed field values longer than this.
const maxFieldValue = 1024

type Message struct {
	Content         string           `json:"content"`
	Embeds          []Embed          `json:"embeds"`
	AllowedMentions *AllowedMentions `json:"allowed_mentions,omitempty"`
}

type Embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color"`
	Fields      []Field `json:"fields"`
	Footer      *Footer `json:"footer,omitempty"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type Footer struct {
	Text string `json:"text"`
}

type AllowedMentions struct {
	Roles []string `json:"roles"`
}

type Options struct {
	MentionRoleID string
	Title         string
	Description   string
	Footer        string
	Color         int
}

func OptionsFrom(cfg config.WebhookConfig) Options {
	return Options{
		MentionRoleID: cfg.MentionRoleID,
		Title:         cfg.Title,
		Description:   cfg.Description,
		Footer:        cfg.Footer,
		Color:         cfg.Color,
	}
}

// Render builds the webhook body. Field order is fixed: IP, type, reason,
// banned at, expires at, admin, duration.
func Render(n model.BanNotification, opts Options) Message {
	duration := model.AbsentMarker
	if n.DurationMinutes != nil {
		duration = strconv.Itoa(*n.DurationMinutes)
	}
	fields := []Field{
		{Name: "IP", Value: "`" + n.IPAddress + "`", Inline: true},
		{Name: "Type", Value: n.BanType, Inline: true},
		{Name: "Reason", Value: n.Reason, Inline: false},
		{Name: "Banned At", Value: n.BannedAt, Inline: true},
		{Name: "Expires At", Value: n.ExpiresAt, Inline: true},
		{Name: "Admin", Value: n.BannedByAdminLoginID, Inline: true},
		{Name: "Duration (min)", Value: duration, Inline: true},
	}
	for i := range fields {
		fields[i].Value = clip(orAbsent(fields[i].Value), maxFieldValue)
	}
	embed := Embed{
		Title:       opts.Title,
		Description: opts.Description,
		Color:       opts.Color,
		Fields:      fields,
	}
	if opts.Footer != "" {
		embed.Footer = &Footer{Text: opts.Footer}
	}
	msg := Message{Embeds: []Embed{embed}}
	if opts.MentionRoleID != "" {
		msg.Content = "<@&" + opts.MentionRoleID + ">"
		msg.AllowedMentions = &AllowedMentions{Roles: []string{opts.MentionRoleID}}
	}
	return msg
}

func orAbsent(s string) string {
	if s == "" {
		return model.AbsentMarker
	}
	return s
}

func clip(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
