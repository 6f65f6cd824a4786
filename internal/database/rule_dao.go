package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/loreguard-ai/loreguard/internal/guardrail"
	"github.com/loreguard-ai/loreguard/internal/types"
)

// RuleDAO persists guardrail rules. It implements guardrail.RuleStore.
//
// Callers that update or delete a rule must invalidate its entry in the
// scanner registry; the DAO only touches storage.
type RuleDAO struct {
	db *DB
}

// NewRuleDAO creates a rule DAO.
func NewRuleDAO(db *DB) *RuleDAO {
	return &RuleDAO{db: db}
}

const ruleColumns = `id, tenant_id, name, enabled, condition_type, condition_config,
	action_type, action_config, cooldown_minutes, dry_run, created_at, updated_at`

// CreateRule inserts a rule, stamping CreatedAt/UpdatedAt.
func (d *RuleDAO) CreateRule(ctx context.Context, rule *guardrail.Rule) error {
	if rule.ID.IsZero() {
		rule.ID = types.NewID()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	conditionConfig, err := marshalConfig(rule.ConditionConfig)
	if err != nil {
		return err
	}
	actionConfig, err := marshalConfig(rule.ActionConfig)
	if err != nil {
		return err
	}

	_, err = d.db.conn.ExecContext(ctx, `
		INSERT INTO guardrail_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID.String(), rule.TenantID, rule.Name, rule.Enabled,
		rule.ConditionType.String(), conditionConfig,
		rule.ActionType.String(), actionConfig,
		rule.CooldownMinutes, rule.DryRun, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "insert rule", err)
	}
	return nil
}

// UpdateRule rewrites a rule's mutable fields and stamps UpdatedAt.
func (d *RuleDAO) UpdateRule(ctx context.Context, rule *guardrail.Rule) error {
	rule.UpdatedAt = time.Now().UTC()

	conditionConfig, err := marshalConfig(rule.ConditionConfig)
	if err != nil {
		return err
	}
	actionConfig, err := marshalConfig(rule.ActionConfig)
	if err != nil {
		return err
	}

	res, err := d.db.conn.ExecContext(ctx, `
		UPDATE guardrail_rules
		SET name = ?, enabled = ?, condition_type = ?, condition_config = ?,
			action_type = ?, action_config = ?, cooldown_minutes = ?, dry_run = ?,
			updated_at = ?
		WHERE id = ?`,
		rule.Name, rule.Enabled, rule.ConditionType.String(), conditionConfig,
		rule.ActionType.String(), actionConfig, rule.CooldownMinutes, rule.DryRun,
		rule.UpdatedAt, rule.ID.String(),
	)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "update rule", err)
	}
	return requireRowAffected(res, rule.ID)
}

// DeleteRule removes a rule. State and history rows cascade.
func (d *RuleDAO) DeleteRule(ctx context.Context, id types.ID) error {
	res, err := d.db.conn.ExecContext(ctx,
		`DELETE FROM guardrail_rules WHERE id = ?`, id.String())
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "delete rule", err)
	}
	return requireRowAffected(res, id)
}

// GetRule fetches one rule by ID.
func (d *RuleDAO) GetRule(ctx context.Context, id types.ID) (*guardrail.Rule, error) {
	row := d.db.conn.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM guardrail_rules WHERE id = ?`, id.String())
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewError(types.RULE_NOT_FOUND,
			fmt.Sprintf("rule %s not found", id))
	}
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "get rule", err)
	}
	return rule, nil
}

// ListRules returns all of a tenant's rules, newest first.
func (d *RuleDAO) ListRules(ctx context.Context, tenantID string) ([]*guardrail.Rule, error) {
	return d.listRules(ctx,
		`SELECT `+ruleColumns+` FROM guardrail_rules
		 WHERE tenant_id = ? ORDER BY created_at DESC`, tenantID)
}

// ListEnabledRules returns the tenant's enabled rules.
func (d *RuleDAO) ListEnabledRules(ctx context.Context, tenantID string) ([]*guardrail.Rule, error) {
	return d.listRules(ctx,
		`SELECT `+ruleColumns+` FROM guardrail_rules
		 WHERE tenant_id = ? AND enabled = 1 ORDER BY created_at`, tenantID)
}

func (d *RuleDAO) listRules(ctx context.Context, query string, args ...any) ([]*guardrail.Rule, error) {
	rows, err := d.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "list rules", err)
	}
	defer rows.Close()

	var rules []*guardrail.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "scan rule", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "iterate rules", err)
	}
	return rules, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*guardrail.Rule, error) {
	var (
		rule            guardrail.Rule
		id              string
		conditionType   string
		actionType      string
		conditionConfig string
		actionConfig    string
	)
	err := row.Scan(&id, &rule.TenantID, &rule.Name, &rule.Enabled,
		&conditionType, &conditionConfig, &actionType, &actionConfig,
		&rule.CooldownMinutes, &rule.DryRun, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rule.ID = types.ID(id)
	rule.ConditionType = guardrail.ConditionType(conditionType)
	rule.ActionType = guardrail.ActionType(actionType)
	if err := unmarshalConfig(conditionConfig, &rule.ConditionConfig); err != nil {
		return nil, err
	}
	if err := unmarshalConfig(actionConfig, &rule.ActionConfig); err != nil {
		return nil, err
	}
	return &rule, nil
}

func marshalConfig(cfg map[string]any) (string, error) {
	if cfg == nil {
		return "{}", nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", types.WrapError(types.DB_QUERY_FAILED, "marshal config", err)
	}
	return string(data), nil
}

func unmarshalConfig(data string, out *map[string]any) error {
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), out)
}

func requireRowAffected(res sql.Result, id types.ID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "rows affected", err)
	}
	if n == 0 {
		return types.NewError(types.RULE_NOT_FOUND,
			fmt.Sprintf("rule %s not found", id))
	}
	return nil
}
