package alert

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tmoradi/kestrel/internal/bus"
	"github.com/tmoradi/kestrel/internal/config"
	"github.com/tmoradi/kestrel/internal/model"
)

// recentEventsCap bounds the in-memory alert history.
const recentEventsCap = 100

// Publisher is the slice of the fan-out bus alerts are announced on.
type Publisher interface {
	Publish(event string, data any)
}

// Engine evaluates the rule set against every completed cycle, keeps the
// most recent firings in memory, and hands notify-flagged events to the
// webhook notifier off the cycle path.
type Engine struct {
	pub      Publisher
	notifier *Notifier

	mu     sync.RWMutex
	rules  []model.AlertRule
	recent []model.AlertEvent

	log *slog.Logger
}

// NewEngine wires the alert engine from configuration. A missing rules
// path means an empty rule set; a present but invalid one fails startup.
func NewEngine(cfg *config.Config, pub Publisher) (*Engine, error) {
	e := &Engine{
		pub: pub,
		log: config.Logger("alert"),
	}
	if cfg.AlertWebhookURL != "" {
		e.notifier = NewNotifier(cfg)
	}
	if cfg.AlertRulesPath != "" {
		if err := e.LoadRules(cfg.AlertRulesPath); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// LoadRules replaces the active rule set with the contents of path. On any
// parse or validation error the previous rules stay in force.
func (e *Engine) LoadRules(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading rules file: %w", err)
	}

	var file model.RulesFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parsing rules file: %w", err)
	}
	for _, r := range file.Rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.rules = file.Rules
	e.mu.Unlock()

	e.log.Info("Alert rules loaded", "path", path, "rules", len(file.Rules))
	return nil
}

// Evaluate runs every rule against one cycle result.
func (e *Engine) Evaluate(result model.CycleResult) {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()
	if len(rules) == 0 {
		return
	}

	doc, err := toDocument(result)
	if err != nil {
		e.log.Error("Failed to project cycle result for rule evaluation", "error", err.Error())
		return
	}

	for _, rule := range rules {
		matched, actual, err := evaluate(rule, doc)
		if err != nil {
			e.log.Warn("Rule evaluation failed", "rule", rule.Name, "error", err.Error())
			continue
		}
		if !matched {
			continue
		}

		event := model.AlertEvent{
			Rule:        rule.Name,
			Expression:  rule.Expression,
			Operator:    rule.Operator,
			Expected:    rule.ExpectedValue,
			Actual:      actual,
			CycleID:     result.CycleID,
			TriggeredAt: time.Now().UTC(),
			Message:     fmt.Sprintf("rule %q matched: %s %s %v, actual %v", rule.Name, rule.Expression, rule.Operator, rule.ExpectedValue, actual),
		}
		e.record(event)
		e.pub.Publish(bus.EventAlert, event)
		e.log.Info("Alert triggered",
			"rule", rule.Name,
			"cycle_id", result.CycleID,
			"actual", fmt.Sprintf("%v", actual),
		)

		if rule.Notify && e.notifier != nil {
			go e.notifier.Send(event)
		}
	}
}

// Rules returns a copy of the active rule set.
func (e *Engine) Rules() []model.AlertRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]model.AlertRule(nil), e.rules...)
}

// Recent returns the latest alert events, newest first.
func (e *Engine) Recent() []model.AlertEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]model.AlertEvent(nil), e.recent...)
}

func (e *Engine) record(ev model.AlertEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recent = append([]model.AlertEvent{ev}, e.recent...)
	if len(e.recent) > recentEventsCap {
		e.recent = e.recent[:recentEventsCap]
	}
}

// toDocument round-trips the result through JSON so rule expressions see
// the same field names subscribers do.
func toDocument(result model.CycleResult) (any, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
