package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/facultyload/facultyload/pkg/types"
	"github.com/facultyload/facultyload/server/internal/config"
	"github.com/facultyload/facultyload/server/internal/workload"
)

const (
	defaultCooldown   = 15 * time.Minute
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	Faculty    string     `json:"faculty"`
	Department string     `json:"department"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"`
}

type alertKey struct {
	Rule       string
	Faculty    string
	Department string
}

// Engine evaluates alert rules against the faculty groups of classified
// records and delivers webhook notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rules    []config.AlertRule
	webhooks []config.WebhookConfig
	active   map[alertKey]*Alert
	lastFire map[alertKey]time.Time
	history  []*Alert // recently resolved alerts
	client   *http.Client
	now      func() time.Time
	wg       sync.WaitGroup
}

// New creates an Engine from the server alert configuration.
// An Engine with empty rules is valid; Evaluate then only resolves.
func New(cfg config.AlertsConfig) *Engine {
	return &Engine{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		active:   make(map[alertKey]*Alert),
		lastFire: make(map[alertKey]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// SetConfig replaces rules and webhooks. Firing alerts of removed rules are
// resolved on the next Evaluate.
func (e *Engine) SetConfig(cfg config.AlertsConfig) {
	e.mu.Lock()
	e.rules = cfg.Rules
	e.webhooks = cfg.Webhooks
	e.mu.Unlock()
}

// Evaluate tests all configured rules against every faculty group in records.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Firing alerts whose condition is now false, or whose group or rule is gone,
// are resolved.
func (e *Engine) Evaluate(records []types.Record) {
	groups := workload.Faculty(records)

	e.mu.Lock()
	now := e.now()
	webhooks := e.webhooks
	var fired, resolved []Alert
	seen := make(map[alertKey]bool)

	for _, rule := range e.rules {
		for _, g := range groups {
			key := alertKey{Rule: rule.Name, Faculty: g.Faculty, Department: g.Department}
			fires, value := evalCondition(rule.Condition, g)
			if !fires {
				continue
			}
			seen[key] = true
			if _, ok := e.active[key]; ok {
				continue
			}
			cooldown := rule.Cooldown
			if cooldown <= 0 {
				cooldown = defaultCooldown
			}
			if last, ok := e.lastFire[key]; ok && now.Sub(last) <= cooldown {
				continue
			}
			sev := rule.Severity
			if sev == "" {
				sev = "warning"
			}
			a := &Alert{
				ID:         uuid.NewString(),
				RuleName:   rule.Name,
				Faculty:    g.Faculty,
				Department: g.Department,
				Severity:   sev,
				Value:      value,
				Message: fmt.Sprintf("[%s] %s fired for %s (%s): %s, value %.2f",
					sev, rule.Name, g.Faculty, g.Department, rule.Condition, value),
				FiredAt: now,
				State:   StateFiring,
			}
			e.active[key] = a
			e.lastFire[key] = now
			fired = append(fired, *a)
		}
	}

	for key, a := range e.active {
		if seen[key] {
			continue
		}
		at := now
		a.State = StateResolved
		a.ResolvedAt = &at
		delete(e.active, key)
		e.history = append(e.history, a)
		resolved = append(resolved, *a)
	}
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	e.mu.Unlock()

	for i := range fired {
		a := fired[i]
		slog.Warn("alert fired",
			"rule", a.RuleName,
			"faculty", a.Faculty,
			"department", a.Department,
			"value", a.Value,
			"severity", a.Severity,
		)
		e.dispatch(webhooks, &a)
	}
	for i := range resolved {
		a := resolved[i]
		slog.Info("alert resolved",
			"rule", a.RuleName,
			"faculty", a.Faculty,
			"department", a.Department,
		)
		e.dispatch(webhooks, &a)
	}
}

func (e *Engine) dispatch(webhooks []config.WebhookConfig, a *Alert) {
	if len(webhooks) == 0 {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(webhooks, a)
	}()
}

// Wait blocks until in-flight webhook deliveries have finished.
func (e *Engine) Wait() { e.wg.Wait() }

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].latest().After(out[j].latest())
	})
	return out
}

// FiringCount returns the number of currently firing alerts.
func (e *Engine) FiringCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

func (a *Alert) latest() time.Time {
	if a.ResolvedAt != nil {
		return *a.ResolvedAt
	}
	return a.FiredAt
}
