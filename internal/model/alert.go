package model

import (
	"fmt"
	"strings"
	"time"
)

// Comparison operators accepted in alert rules.
const (
	OpEquals      = "eq"
	OpNotEquals   = "ne"
	OpGreaterThan = "gt"
	OpLessThan    = "lt"
	OpGreaterEq   = "gte"
	OpLessEq      = "lte"
	OpContains    = "contains"
	OpExists      = "exists"
)

var validOperators = map[string]bool{
	OpEquals:      true,
	OpNotEquals:   true,
	OpGreaterThan: true,
	OpLessThan:    true,
	OpGreaterEq:   true,
	OpLessEq:      true,
	OpContains:    true,
	OpExists:      true,
}

// AlertRule matches a JSONPath expression against each cycle result and
// fires when the comparison holds.
type AlertRule struct {
	Name          string `json:"name"`
	Expression    string `json:"expression"`
	Operator      string `json:"operator"`
	ExpectedValue any    `json:"expected_value,omitempty"`
	Notify        bool   `json:"notify"`
}

// Validate checks the rule is well formed before it is loaded.
func (r AlertRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name is required")
	}
	if !strings.HasPrefix(r.Expression, "$") {
		return fmt.Errorf("rule %q: expression must be a JSONPath starting with $", r.Name)
	}
	if !validOperators[r.Operator] {
		return fmt.Errorf("rule %q: unknown operator %q", r.Name, r.Operator)
	}
	if r.Operator != OpExists && r.ExpectedValue == nil {
		return fmt.Errorf("rule %q: operator %q requires expected_value", r.Name, r.Operator)
	}
	return nil
}

// RulesFile is the on-disk shape of the alert rules document.
type RulesFile struct {
	Rules []AlertRule `json:"rules"`
}

// AlertEvent records one rule firing against one cycle.
type AlertEvent struct {
	Rule        string    `json:"rule"`
	Expression  string    `json:"expression"`
	Operator    string    `json:"operator"`
	Expected    any       `json:"expected,omitempty"`
	Actual      any       `json:"actual,omitempty"`
	CycleID     string    `json:"cycle_id"`
	TriggeredAt time.Time `json:"triggered_at"`
	Message     string    `json:"message"`
}
