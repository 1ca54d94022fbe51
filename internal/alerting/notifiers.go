package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/luminahq/observe/internal/logging"
	"github.com/redis/go-redis/v9"
)

// ConsoleNotifier writes every alert to the log, choosing the stream by
// severity via the logger's level rules.
type ConsoleNotifier struct {
	Logger *logging.Logger
}

func (n *ConsoleNotifier) Name() string           { return "console" }
func (n *ConsoleNotifier) Severities() []Severity { return nil }

func (n *ConsoleNotifier) Notify(ctx context.Context, alert *Alert) error {
	fields := map[string]any{
		"type":     "alert_notification",
		"alertId":  alert.ID,
		"rule":     alert.RuleID,
		"severity": alert.Severity.String(),
	}
	msg := fmt.Sprintf("ALERT [%s] %s: %s", alert.Severity, alert.RuleName, alert.Message)
	switch {
	case alert.Severity >= SeverityCritical:
		n.Logger.Error(ctx, msg, fields, nil)
	case alert.Severity == SeverityWarning:
		n.Logger.Warn(ctx, msg, fields)
	default:
		n.Logger.Info(ctx, msg, fields)
	}
	return nil
}

// webhookPayload is the JSON body POSTed to the configured webhook.
type webhookPayload struct {
	ID       string         `json:"id"`
	Rule     string         `json:"rule"`
	Name     string         `json:"name"`
	Severity string         `json:"severity"`
	Message  string         `json:"message"`
	FiredAt  time.Time      `json:"firedAt"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// WebhookNotifier delivers critical and emergency alerts to an HTTP endpoint.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

func (n *WebhookNotifier) Severities() []Severity {
	return []Severity{SeverityCritical, SeverityEmergency}
}

func (n *WebhookNotifier) Notify(ctx context.Context, alert *Alert) error {
	if n.URL == "" {
		return nil
	}
	body, err := json.Marshal(webhookPayload{
		ID:       alert.ID,
		Rule:     alert.RuleID,
		Name:     alert.RuleName,
		Severity: alert.Severity.String(),
		Message:  alert.Message,
		FiredAt:  alert.FiredAt,
		Metadata: alert.Metadata,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

// RedisNotifier publishes alerts as JSON to a Redis channel so other processes
// (dashboards, workers) can subscribe to the alert stream.
type RedisNotifier struct {
	Client  *redis.Client
	Channel string
}

func (n *RedisNotifier) Name() string           { return "redis" }
func (n *RedisNotifier) Severities() []Severity { return nil }

func (n *RedisNotifier) Notify(ctx context.Context, alert *Alert) error {
	if n.Client == nil {
		return nil
	}
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	return n.Client.Publish(ctx, n.Channel, body).Err()
}

// NewRedisClientFromConfig builds a redis client, or nil when addr is empty.
func NewRedisClientFromConfig(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}
