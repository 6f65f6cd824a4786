// Package guardrail implements the rule engine that evaluates operational
// and content conditions against live event data and executes protective
// actions with cooldown and dry-run semantics.
package guardrail

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/loreguard-ai/loreguard/internal/types"
)

// ConditionType is the closed set of rule condition kinds.
type ConditionType string

const (
	ConditionErrorRateThreshold ConditionType = "error_rate_threshold"
	ConditionCostLimit          ConditionType = "cost_limit"
	ConditionCustomMetric       ConditionType = "custom_metric"

	ConditionPIIDetection     ConditionType = "pii_detection"
	ConditionSecretsDetection ConditionType = "secrets_detection"
	ConditionContentRegex     ConditionType = "content_regex"

	// Extension points. Rules may name them, but evaluation reports
	// CONDITION_UNKNOWN until a scanner implementation exists.
	ConditionToxicityDetection ConditionType = "toxicity_detection"
	ConditionPromptInjection   ConditionType = "prompt_injection"
)

// IsValid checks if the ConditionType is a recognized value.
func (t ConditionType) IsValid() bool {
	switch t {
	case ConditionErrorRateThreshold, ConditionCostLimit, ConditionCustomMetric,
		ConditionPIIDetection, ConditionSecretsDetection, ConditionContentRegex,
		ConditionToxicityDetection, ConditionPromptInjection:
		return true
	default:
		return false
	}
}

// IsContent reports whether the condition evaluates content via a scanner
// rather than event/session aggregates.
func (t ConditionType) IsContent() bool {
	switch t {
	case ConditionPIIDetection, ConditionSecretsDetection, ConditionContentRegex,
		ConditionToxicityDetection, ConditionPromptInjection:
		return true
	default:
		return false
	}
}

// String returns the string representation of the condition type.
func (t ConditionType) String() string {
	return string(t)
}

// ActionType is the protective action a triggered rule executes.
type ActionType string

const (
	ActionPauseAgent     ActionType = "pause_agent"
	ActionDowngradeModel ActionType = "downgrade_model"
	ActionNotify         ActionType = "notify"
	ActionBlock          ActionType = "block"
)

// IsValid checks if the ActionType is a recognized value.
func (t ActionType) IsValid() bool {
	switch t {
	case ActionPauseAgent, ActionDowngradeModel, ActionNotify, ActionBlock:
		return true
	default:
		return false
	}
}

// String returns the string representation of the action type.
func (t ActionType) String() string {
	return string(t)
}

// ActionResult records how a trigger's action concluded.
type ActionResult string

const (
	ActionResultDryRun   ActionResult = "dry_run"
	ActionResultExecuted ActionResult = "executed"
	ActionResultFailed   ActionResult = "failed"
)

// Rule is a tenant-owned guardrail rule. ConditionConfig's shape depends on
// ConditionType and is decoded lazily at evaluation time.
type Rule struct {
	ID              types.ID       `json:"id"`
	TenantID        string         `json:"tenant_id"`
	Name            string         `json:"name"`
	Enabled         bool           `json:"enabled"`
	ConditionType   ConditionType  `json:"condition_type"`
	ConditionConfig map[string]any `json:"condition_config"`
	ActionType      ActionType     `json:"action_type"`
	ActionConfig    map[string]any `json:"action_config,omitempty"`
	CooldownMinutes int            `json:"cooldown_minutes"`
	DryRun          bool           `json:"dry_run"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// State is the sole mutable state the engine owns: one row per rule,
// updated on every evaluation regardless of outcome. It must be persisted
// so cooldown and trigger counting survive restarts.
type State struct {
	RuleID          types.ID   `json:"rule_id"`
	TenantID        string     `json:"tenant_id"`
	LastEvaluatedAt time.Time  `json:"last_evaluated_at"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	TriggerCount    int64      `json:"trigger_count"`
}

// TriggerRecord is one append-only history entry, written per
// condition-true evaluation that survives the cooldown gate. A
// cooldown-suppressed trigger produces no record.
type TriggerRecord struct {
	ID             types.ID     `json:"id"`
	RuleID         types.ID     `json:"rule_id"`
	TriggeredAt    time.Time    `json:"triggered_at"`
	CurrentValue   float64      `json:"current_value"`
	Threshold      float64      `json:"threshold"`
	ActionExecuted bool         `json:"action_executed"`
	ActionResult   ActionResult `json:"action_result"`
	Message        string       `json:"message,omitempty"`
}

// EvalResult is what every condition evaluator returns. Message is
// human-readable and includes the computed value and the threshold for
// audit and alert display.
type EvalResult struct {
	Triggered    bool    `json:"triggered"`
	CurrentValue float64 `json:"current_value"`
	Threshold    float64 `json:"threshold"`
	Message      string  `json:"message"`
}

// defaultWindowMinutes applies when a windowed condition omits the window.
const defaultWindowMinutes = 5

// ErrorRateConfig configures error_rate_threshold conditions.
type ErrorRateConfig struct {
	// Threshold is a percentage in [0,100].
	Threshold     float64 `mapstructure:"threshold"`
	WindowMinutes int     `mapstructure:"windowMinutes"`
}

// CostScope selects the aggregation window for cost_limit conditions.
type CostScope string

const (
	CostScopeSession CostScope = "session"
	CostScopeDaily   CostScope = "daily"
)

// CostLimitConfig configures cost_limit conditions.
type CostLimitConfig struct {
	MaxCostUSD float64   `mapstructure:"maxCostUsd"`
	Scope      CostScope `mapstructure:"scope"`
}

// MetricOperator is the comparison applied by custom_metric conditions.
type MetricOperator string

const (
	OperatorGT  MetricOperator = "gt"
	OperatorGTE MetricOperator = "gte"
	OperatorLT  MetricOperator = "lt"
	OperatorLTE MetricOperator = "lte"
)

// Compare applies the operator to (current, threshold).
func (op MetricOperator) Compare(current, threshold float64) (bool, error) {
	switch op {
	case OperatorGT:
		return current > threshold, nil
	case OperatorGTE:
		return current >= threshold, nil
	case OperatorLT:
		return current < threshold, nil
	case OperatorLTE:
		return current <= threshold, nil
	default:
		return false, types.NewError(types.CONDITION_CONFIG_BAD,
			fmt.Sprintf("unknown metric operator %q", op))
	}
}

// CustomMetricConfig configures custom_metric conditions. MetricKeyPath
// wins over MetricName when both are set: a key path is the more specific
// instruction.
type CustomMetricConfig struct {
	MetricName    string         `mapstructure:"metricName"`
	MetricKeyPath string         `mapstructure:"metricKeyPath"`
	Operator      MetricOperator `mapstructure:"operator"`
	Value         float64        `mapstructure:"value"`
	WindowMinutes int            `mapstructure:"windowMinutes"`
}

// DowngradeModelConfig configures downgrade_model actions.
type DowngradeModelConfig struct {
	Model string `mapstructure:"model"`
}

// NotifyConfig configures notify actions.
type NotifyConfig struct {
	Channel string `mapstructure:"channel"`
	Message string `mapstructure:"message"`
}

// decodeConditionConfig decodes a rule's raw condition config into the
// typed struct for its condition type.
func decodeConditionConfig(rule *Rule, out any) error {
	if err := mapstructure.WeakDecode(rule.ConditionConfig, out); err != nil {
		return types.WrapError(types.CONDITION_CONFIG_BAD,
			fmt.Sprintf("rule %s: bad %s config", rule.ID, rule.ConditionType), err)
	}
	return nil
}

// decodeActionConfig decodes a rule's raw action config.
func decodeActionConfig(rule *Rule, out any) error {
	if err := mapstructure.WeakDecode(rule.ActionConfig, out); err != nil {
		return types.WrapError(types.CONDITION_CONFIG_BAD,
			fmt.Sprintf("rule %s: bad %s action config", rule.ID, rule.ActionType), err)
	}
	return nil
}
