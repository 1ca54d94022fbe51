package alerting

import (
	"context"
	"encoding/json"
	"time"
)

// Severity orders alert importance: info < warning < critical < emergency.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
	SeverityEmergency
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	case SeverityEmergency:
		return "emergency"
	}
	return "info"
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Condition is a zero-argument predicate evaluated on every check tick. It may
// perform blocking work; ctx bounds it.
type Condition func(ctx context.Context) (bool, error)

// Rule describes one alert rule. Rules are registered at startup or
// dynamically and mutated only through Engine.SetEnabled.
type Rule struct {
	ID          string
	Name        string
	Description string
	Severity    Severity
	Cooldown    time.Duration
	Enabled     bool
	Condition   Condition
}

// Alert is one firing instance of a rule.
type Alert struct {
	ID         string         `json:"id"`
	RuleID     string         `json:"ruleId"`
	RuleName   string         `json:"ruleName"`
	Severity   Severity       `json:"severity"`
	Message    string         `json:"message"`
	FiredAt    time.Time      `json:"firedAt"`
	Resolved   bool           `json:"resolved"`
	ResolvedAt *time.Time     `json:"resolvedAt,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RuleInfo is the read-only rule view exposed by the observability surface.
type RuleInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	CooldownSec float64  `json:"cooldownSeconds"`
	Enabled     bool     `json:"enabled"`
	Active      bool     `json:"active"`
}

// Notifier delivers fired alerts. A nil Severities result means all
// severities. Notify errors are logged by the engine, never propagated.
type Notifier interface {
	Name() string
	Severities() []Severity
	Notify(ctx context.Context, alert *Alert) error
}
