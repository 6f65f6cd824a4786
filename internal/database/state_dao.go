package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/loreguard-ai/loreguard/internal/guardrail"
	"github.com/loreguard-ai/loreguard/internal/types"
)

// StateDAO persists per-rule evaluation state. It implements
// guardrail.StateStore.
type StateDAO struct {
	db *DB
}

// NewStateDAO creates a state DAO.
func NewStateDAO(db *DB) *StateDAO {
	return &StateDAO{db: db}
}

// GetState fetches the rule's state row.
func (d *StateDAO) GetState(ctx context.Context, ruleID types.ID) (*guardrail.State, error) {
	var (
		state         guardrail.State
		id            string
		lastTriggered sql.NullTime
	)
	err := d.db.conn.QueryRowContext(ctx, `
		SELECT rule_id, tenant_id, last_evaluated_at, last_triggered_at, trigger_count
		FROM guardrail_states WHERE rule_id = ?`, ruleID.String(),
	).Scan(&id, &state.TenantID, &state.LastEvaluatedAt, &lastTriggered, &state.TriggerCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewError(types.STATE_NOT_FOUND,
			fmt.Sprintf("no state for rule %s", ruleID))
	}
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "get state", err)
	}

	state.RuleID = types.ID(id)
	if lastTriggered.Valid {
		t := lastTriggered.Time
		state.LastTriggeredAt = &t
	}
	return &state, nil
}

// UpsertState writes the full state row.
func (d *StateDAO) UpsertState(ctx context.Context, state *guardrail.State) error {
	var lastTriggered sql.NullTime
	if state.LastTriggeredAt != nil {
		lastTriggered = sql.NullTime{Time: *state.LastTriggeredAt, Valid: true}
	}

	_, err := d.db.conn.ExecContext(ctx, `
		INSERT INTO guardrail_states (rule_id, tenant_id, last_evaluated_at, last_triggered_at, trigger_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(rule_id) DO UPDATE SET
			last_evaluated_at = excluded.last_evaluated_at,
			last_triggered_at = excluded.last_triggered_at,
			trigger_count = excluded.trigger_count`,
		state.RuleID.String(), state.TenantID, state.LastEvaluatedAt,
		lastTriggered, state.TriggerCount,
	)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "upsert state", err)
	}
	return nil
}
