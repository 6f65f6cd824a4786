package events

import (
	"time"

	"github.com/loreguard-ai/loreguard/internal/types"
)

// EventType identifies the category and nature of an event.
type EventType string

// Agent activity events. These are produced by the ingestion path, one per
// agent-generated event, and drive the guardrail engine's operational
// condition windows.
const (
	EventToolCall     EventType = "agent.tool_call"
	EventLLMRequest   EventType = "agent.llm_request"
	EventAgentMessage EventType = "agent.message"
	EventAgentError   EventType = "agent.error"
)

// Session lifecycle events.
const (
	EventSessionStarted EventType = "session.started"
	EventSessionEnded   EventType = "session.ended"
)

// Guardrail events. alert.triggered is emitted by the engine after a rule
// fires and its action executes (never for dry runs).
const (
	EventAlertTriggered EventType = "guardrail.alert_triggered"
	EventAgentPaused    EventType = "guardrail.agent_paused"
)

// Review events.
const (
	EventReviewEnqueued EventType = "review.enqueued"
	EventReviewResolved EventType = "review.resolved"
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// Severity classifies an event for error-rate accounting.
type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// IsValid checks if the Severity is a recognized value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityDebug, SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	default:
		return false
	}
}

// IsError reports whether the severity counts toward error-rate conditions.
func (s Severity) IsError() bool {
	return s == SeverityError || s == SeverityCritical
}

// Event is the unified observability event flowing through loreguard.
//
// It is JSON-serializable and carries everything the guardrail engine needs
// to evaluate operational and content conditions: tenant/agent/session
// identity, severity, cost, and free-form metadata for custom metrics.
type Event struct {
	// ID uniquely identifies the event.
	ID types.ID `json:"id"`

	// Type identifies the category of the event.
	Type EventType `json:"type"`

	// Timestamp records when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// TenantID identifies the owning tenant. Always set.
	TenantID string `json:"tenant_id"`

	// AgentID identifies the agent that produced the event.
	AgentID string `json:"agent_id,omitempty"`

	// SessionID associates the event with an agent session.
	SessionID string `json:"session_id,omitempty"`

	// Severity classifies the event for error-rate accounting.
	Severity Severity `json:"severity,omitempty"`

	// CostUSD is the cost attributed to this event (LLM spend, tool fees).
	CostUSD float64 `json:"cost_usd,omitempty"`

	// ToolName names the tool for tool_call events.
	ToolName string `json:"tool_name,omitempty"`

	// Content carries the text payload for content-condition evaluation.
	Content string `json:"content,omitempty"`

	// Metadata contains additional attributes. custom_metric conditions with
	// a key path read from here.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AlertPayload is stored in Event.Metadata under "alert" for
// guardrail.alert_triggered events.
type AlertPayload struct {
	RuleID       types.ID `json:"rule_id"`
	RuleName     string   `json:"rule_name"`
	TenantID     string   `json:"tenant_id"`
	AgentID      string   `json:"agent_id,omitempty"`
	CurrentValue float64  `json:"current_value"`
	Threshold    float64  `json:"threshold"`
	ActionType   string   `json:"action_type"`
	Message      string   `json:"message"`
}

// Filter defines criteria for filtering events in subscriptions.
// All fields use AND logic; empty fields act as wildcards.
type Filter struct {
	// Types filters by event types (empty = all types).
	Types []EventType `json:"types,omitempty"`

	// TenantID filters by tenant (empty = all tenants).
	TenantID string `json:"tenant_id,omitempty"`

	// AgentID filters by agent (empty = all agents).
	AgentID string `json:"agent_id,omitempty"`
}

// Matches determines if the given event matches this filter's criteria.
func (f *Filter) Matches(event Event) bool {
	if len(f.Types) > 0 {
		matched := false
		for _, t := range f.Types {
			if event.Type == t {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.TenantID != "" && event.TenantID != f.TenantID {
		return false
	}

	if f.AgentID != "" && event.AgentID != f.AgentID {
		return false
	}

	return true
}
