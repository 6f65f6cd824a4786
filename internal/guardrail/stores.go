package guardrail

import (
	"context"
	"time"

	"github.com/loreguard-ai/loreguard/internal/events"
	"github.com/loreguard-ai/loreguard/internal/types"
)

// RuleStore provides rule lookup. CRUD lives with the persistence layer;
// the engine only reads.
type RuleStore interface {
	// GetRule returns RULE_NOT_FOUND when no rule has the ID.
	GetRule(ctx context.Context, id types.ID) (*Rule, error)

	// ListEnabledRules returns the tenant's enabled rules.
	ListEnabledRules(ctx context.Context, tenantID string) ([]*Rule, error)
}

// StateStore persists per-rule evaluation state.
type StateStore interface {
	// GetState returns STATE_NOT_FOUND when the rule has never been
	// evaluated.
	GetState(ctx context.Context, ruleID types.ID) (*State, error)

	// UpsertState writes the full state row.
	UpsertState(ctx context.Context, state *State) error
}

// HistoryStore appends and lists trigger history.
type HistoryStore interface {
	AppendTrigger(ctx context.Context, record *TriggerRecord) error
	ListTriggers(ctx context.Context, ruleID types.ID, limit int) ([]*TriggerRecord, error)
}

// EventStore serves the windowed aggregates the operational evaluators
// read. Implementations materialize these from persisted events; the
// evaluators themselves never perform network calls.
type EventStore interface {
	// CountEvents returns the total number of events for the agent since
	// the given time.
	CountEvents(ctx context.Context, agentID string, since time.Time) (int64, error)

	// CountErrorEvents counts error/critical-severity events.
	CountErrorEvents(ctx context.Context, agentID string, since time.Time) (int64, error)

	// CountToolCalls counts tool_call events.
	CountToolCalls(ctx context.Context, agentID string, since time.Time) (int64, error)

	// WindowCost sums event cost for the agent since the given time.
	WindowCost(ctx context.Context, agentID string, since time.Time) (float64, error)

	// SessionCost sums event cost across one session.
	SessionCost(ctx context.Context, sessionID string) (float64, error)

	// DailyCost sums event cost across all the agent's sessions started at
	// or after dayStart. Sessions started earlier are excluded entirely,
	// even for cost they incur after dayStart; sessionless events attribute
	// by their own timestamp.
	DailyCost(ctx context.Context, agentID string, dayStart time.Time) (float64, error)

	// RecentEvents returns the agent's events since the given time, newest
	// first, at most limit.
	RecentEvents(ctx context.Context, agentID string, since time.Time, limit int) ([]*events.Event, error)
}

// Agent is the controllable agent record the pause and downgrade actions
// mutate.
type Agent struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	Name          string     `json:"name"`
	Model         string     `json:"model,omitempty"`
	ModelOverride string     `json:"model_override,omitempty"`
	PausedAt      *time.Time `json:"paused_at,omitempty"`
	PauseReason   string     `json:"pause_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsPaused reports whether the agent is currently paused.
func (a *Agent) IsPaused() bool {
	return a.PausedAt != nil
}

// AgentStore reads and mutates agent records for action execution.
type AgentStore interface {
	// GetAgent returns AGENT_NOT_FOUND when no agent has the ID.
	GetAgent(ctx context.Context, agentID string) (*Agent, error)

	// PauseAgent sets PausedAt and PauseReason.
	PauseAgent(ctx context.Context, agentID, reason string, at time.Time) error

	// SetModelOverride sets the agent's model override.
	SetModelOverride(ctx context.Context, agentID, model string) error
}
