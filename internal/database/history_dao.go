package database

import (
	"context"

	"github.com/loreguard-ai/loreguard/internal/guardrail"
	"github.com/loreguard-ai/loreguard/internal/types"
)

// HistoryDAO persists trigger history. It implements
// guardrail.HistoryStore.
type HistoryDAO struct {
	db *DB
}

// NewHistoryDAO creates a history DAO.
func NewHistoryDAO(db *DB) *HistoryDAO {
	return &HistoryDAO{db: db}
}

// AppendTrigger inserts one history entry.
func (d *HistoryDAO) AppendTrigger(ctx context.Context, record *guardrail.TriggerRecord) error {
	if record.ID.IsZero() {
		record.ID = types.NewID()
	}
	_, err := d.db.conn.ExecContext(ctx, `
		INSERT INTO guardrail_trigger_history
			(id, rule_id, triggered_at, current_value, threshold, action_executed, action_result, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID.String(), record.RuleID.String(), record.TriggeredAt,
		record.CurrentValue, record.Threshold, record.ActionExecuted,
		string(record.ActionResult), record.Message,
	)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "append trigger", err)
	}
	return nil
}

// ListTriggers returns the rule's history, newest first.
func (d *HistoryDAO) ListTriggers(ctx context.Context, ruleID types.ID, limit int) ([]*guardrail.TriggerRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.conn.QueryContext(ctx, `
		SELECT id, rule_id, triggered_at, current_value, threshold, action_executed, action_result, message
		FROM guardrail_trigger_history
		WHERE rule_id = ?
		ORDER BY triggered_at DESC
		LIMIT ?`, ruleID.String(), limit)
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "list triggers", err)
	}
	defer rows.Close()

	var records []*guardrail.TriggerRecord
	for rows.Next() {
		var (
			record       guardrail.TriggerRecord
			id, rid      string
			actionResult string
		)
		err := rows.Scan(&id, &rid, &record.TriggeredAt, &record.CurrentValue,
			&record.Threshold, &record.ActionExecuted, &actionResult, &record.Message)
		if err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "scan trigger", err)
		}
		record.ID = types.ID(id)
		record.RuleID = types.ID(rid)
		record.ActionResult = guardrail.ActionResult(actionResult)
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "iterate triggers", err)
	}
	return records, nil
}
