package alerting

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luminahq/observe/internal/logging"
	"github.com/luminahq/observe/internal/metrics"
)

const historyCapacity = 1000

var (
	ErrRuleExists   = fmt.Errorf("alert rule already registered")
	ErrRuleInvalid  = fmt.Errorf("alert rule is invalid")
	ErrRuleNotFound = fmt.Errorf("alert rule not found")
)

// Engine evaluates registered rules on a ticker and tracks alert lifecycle.
// A rule is Normal or Firing; firing state is the presence of an entry in the
// active map, at most one per rule.
type Engine struct {
	logger   *logging.Logger
	registry *metrics.Registry

	mu        sync.Mutex
	rules     map[string]*Rule
	order     []string
	active    map[string]*Alert
	history   []*Alert
	lastFire  map[string]time.Time
	notifiers []Notifier

	checking atomic.Bool
	now      func() time.Time
}

func NewEngine(logger *logging.Logger, registry *metrics.Registry) *Engine {
	return &Engine{
		logger:   logger,
		registry: registry,
		rules:    make(map[string]*Rule),
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		now:      time.Now,
	}
}

// AddNotifier appends a notifier. Notifiers run sequentially in add order.
func (e *Engine) AddNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifiers = append(e.notifiers, n)
}

// Register adds a rule. Duplicate ids are rejected.
func (e *Engine) Register(r *Rule) error {
	if r == nil || r.ID == "" || r.Condition == nil {
		return ErrRuleInvalid
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rules[r.ID]; ok {
		return ErrRuleExists
	}
	e.rules[r.ID] = r
	e.order = append(e.order, r.ID)
	return nil
}

// Unregister removes a rule. Its active alert, if any, stays in history.
func (e *Engine) Unregister(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rules[id]; !ok {
		return
	}
	delete(e.rules, id)
	delete(e.active, id)
	delete(e.lastFire, id)
	for i, rid := range e.order {
		if rid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// SetEnabled flips a rule's enabled flag. A disabled rule is skipped entirely
// on subsequent ticks; an alert already active for it remains active.
func (e *Engine) SetEnabled(id string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rules[id]
	if !ok {
		return ErrRuleNotFound
	}
	r.Enabled = enabled
	return nil
}

// Run evaluates rules every interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			e.CheckRules(ctx)
		}
	}
}

// CheckRules evaluates every enabled rule once and applies fire/resolve
// transitions. Non-reentrant: a tick arriving while a previous evaluation is
// still running is skipped.
func (e *Engine) CheckRules(ctx context.Context) {
	if !e.checking.CompareAndSwap(false, true) {
		e.logger.Debug(ctx, "alert check still running, skipping tick", nil)
		return
	}
	defer e.checking.Store(false)

	for _, r := range e.enabledRules() {
		ok, err := e.evaluate(ctx, r)
		if err != nil {
			e.logger.Error(ctx, "alert condition evaluation failed",
				map[string]any{"rule": r.ID}, err)
			continue
		}
		if ok {
			e.fire(ctx, r)
		} else {
			e.resolve(ctx, r)
		}
	}
}

func (e *Engine) evaluate(ctx context.Context, r *Rule) (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ok = false
			err = fmt.Errorf("condition panic: %v", p)
		}
	}()
	return r.Condition(ctx)
}

// enabledRules snapshots the rules to evaluate this tick. Enabled is written by
// SetEnabled under mu, so it is only ever read while holding the lock; the rest
// of the Rule is immutable after Register.
func (e *Engine) enabledRules() []*Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Rule, 0, len(e.order))
	for _, id := range e.order {
		if r, ok := e.rules[id]; ok && r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// fire transitions a rule to Firing unless it already is or its cooldown has
// not elapsed since the last fire. Cooldown throttles re-firing only, never
// resolution.
func (e *Engine) fire(ctx context.Context, r *Rule) {
	e.mu.Lock()
	if _, firing := e.active[r.ID]; firing {
		e.mu.Unlock()
		return
	}
	now := e.now()
	if last, ok := e.lastFire[r.ID]; ok && now.Sub(last) < r.Cooldown {
		e.mu.Unlock()
		return
	}
	alert := &Alert{
		ID:       fmt.Sprintf("%s-%d", r.ID, now.UnixMilli()),
		RuleID:   r.ID,
		RuleName: r.Name,
		Severity: r.Severity,
		Message:  r.Description,
		FiredAt:  now,
	}
	e.active[r.ID] = alert
	e.lastFire[r.ID] = now
	e.history = append(e.history, alert)
	if len(e.history) > historyCapacity {
		e.history = e.history[len(e.history)-historyCapacity:]
	}
	notifiers := append([]Notifier(nil), e.notifiers...)
	e.mu.Unlock()

	e.logger.Warn(ctx, "alert fired", map[string]any{
		"type":     "alert",
		"alertId":  alert.ID,
		"rule":     r.ID,
		"severity": r.Severity.String(),
	})
	e.registry.IncCounter("alerts_fired_total", metrics.Labels{
		"severity": r.Severity.String(),
		"rule":     r.ID,
	})
	for _, n := range notifiers {
		if !notifierWants(n, alert.Severity) {
			continue
		}
		if err := e.notify(ctx, n, alert); err != nil {
			e.logger.Error(ctx, "alert notifier failed",
				map[string]any{"notifier": n.Name(), "alertId": alert.ID}, err)
		}
	}
}

func (e *Engine) notify(ctx context.Context, n Notifier, alert *Alert) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("notifier panic: %v", p)
		}
	}()
	return n.Notify(ctx, alert)
}

func (e *Engine) resolve(ctx context.Context, r *Rule) {
	e.mu.Lock()
	alert, firing := e.active[r.ID]
	if !firing {
		e.mu.Unlock()
		return
	}
	now := e.now()
	alert.Resolved = true
	alert.ResolvedAt = &now
	delete(e.active, r.ID)
	e.mu.Unlock()

	e.logger.Info(ctx, "alert resolved", map[string]any{
		"type":       "alert",
		"alertId":    alert.ID,
		"rule":       r.ID,
		"durationMs": now.Sub(alert.FiredAt).Milliseconds(),
	})
	e.registry.IncCounter("alerts_resolved_total", metrics.Labels{
		"severity": r.Severity.String(),
		"rule":     r.ID,
	})
}

// FireTest pushes a synthetic alert through the regular fire path. Used by the
// development-only test endpoint.
func (e *Engine) FireTest(ctx context.Context) (*Alert, error) {
	r := &Rule{
		ID:          fmt.Sprintf("manual-test-%d", e.now().UnixNano()),
		Name:        "Manual test alert",
		Description: "manually fired test alert",
		Severity:    SeverityInfo,
		Enabled:     true,
		Condition:   func(context.Context) (bool, error) { return true, nil },
	}
	if err := e.Register(r); err != nil {
		return nil, err
	}
	e.fire(ctx, r)
	e.mu.Lock()
	alert := e.active[r.ID]
	e.mu.Unlock()
	e.resolve(ctx, r)
	e.Unregister(r.ID)
	return alert, nil
}

// Active returns copies of all currently firing alerts.
func (e *Engine) Active() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Alert, 0, len(e.active))
	for _, id := range e.order {
		if a, ok := e.active[id]; ok {
			out = append(out, *a)
		}
	}
	return out
}

// History returns up to limit most recent alerts, newest first.
func (e *Engine) History(limit int) []Alert {
	if limit <= 0 {
		limit = 50
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.history)
	if limit > n {
		limit = n
	}
	out := make([]Alert, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, *e.history[i])
	}
	return out
}

// Rules returns the read-only rule summaries in registration order.
func (e *Engine) Rules() []RuleInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]RuleInfo, 0, len(e.order))
	for _, id := range e.order {
		r, ok := e.rules[id]
		if !ok {
			continue
		}
		_, firing := e.active[id]
		out = append(out, RuleInfo{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			Severity:    r.Severity,
			CooldownSec: r.Cooldown.Seconds(),
			Enabled:     r.Enabled,
			Active:      firing,
		})
	}
	return out
}

// ActiveCounts returns the number of active alerts and how many of them are
// critical or emergency.
func (e *Engine) ActiveCounts() (total, critical int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, a := range e.active {
		total++
		if a.Severity >= SeverityCritical {
			critical++
		}
	}
	return total, critical
}

func notifierWants(n Notifier, s Severity) bool {
	filter := n.Severities()
	if filter == nil {
		return true
	}
	for _, want := range filter {
		if want == s {
			return true
		}
	}
	return false
}
