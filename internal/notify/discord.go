package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/digkill/InteriorAI/internal/apperr"
)

const errDiscordNotConfigured = "discord webhook URL is not configured"

// Discord embed limits.
const (
	maxEmbedFields   = 25
	maxFieldValueLen = 1024
)

type Discord struct {
	webhookURL string
	httpClient *http.Client
	now        func() time.Time
}

func NewDiscord(webhookURL string, timeout time.Duration) *Discord {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Discord{
		webhookURL: strings.TrimSpace(webhookURL),
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Configured() bool { return d.IsDiscordConfigured() }

// IsDiscordConfigured only checks that a webhook URL is present.
func (d *Discord) IsDiscordConfigured() bool {
	return d != nil && d.webhookURL != ""
}

func (d *Discord) Send(ctx context.Context, p Payload) Result {
	return d.SendDiscordNotification(ctx, p)
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title     string         `json:"title"`
	Color     int            `json:"color"`
	Fields    []discordField `json:"fields,omitempty"`
	Timestamp string         `json:"timestamp"`
}

type discordMessage struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

// SendDiscordNotification posts p to the webhook. It never returns an error;
// the outcome is reported in the Result.
func (d *Discord) SendDiscordNotification(ctx context.Context, p Payload) Result {
	if !d.IsDiscordConfigured() {
		return Result{Success: false, Error: errDiscordNotConfigured}
	}

	body, err := json.Marshal(d.message(p))
	if err != nil {
		return Result{Error: fmt.Sprintf("marshal discord message: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return Result{Error: fmt.Sprintf("new discord request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return Result{Error: apperr.External("discord", err).Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{Error: apperr.External("discord", fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))).Error()}
	}
	return Result{Success: true}
}

func (d *Discord) message(p Payload) discordMessage {
	embed := discordEmbed{
		Title:     p.title(),
		Color:     colorFor(p.Type),
		Timestamp: d.now().UTC().Format(time.RFC3339),
	}
	for _, kv := range p.sortedFields() {
		if len(embed.Fields) == maxEmbedFields {
			break
		}
		value := kv[1]
		if value == "" {
			value = "-"
		}
		if len(value) > maxFieldValueLen {
			value = value[:maxFieldValueLen-1] + "…"
		}
		embed.Fields = append(embed.Fields, discordField{Name: kv[0], Value: value, Inline: len(value) < 40})
	}
	return discordMessage{Username: "InteriorAI", Embeds: []discordEmbed{embed}}
}

func colorFor(eventType string) int {
	switch eventType {
	case TypeSignup:
		return 0x2ecc71
	case TypeGenerationSuccess:
		return 0x3498db
	case TypeGenerationFailure:
		return 0xe74c3c
	case TypeCreditWarning:
		return 0xf1c40f
	default:
		return 0x95a5a6
	}
}
