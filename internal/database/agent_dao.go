package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/loreguard-ai/loreguard/internal/guardrail"
	"github.com/loreguard-ai/loreguard/internal/types"
)

// AgentDAO persists controllable agent records. It implements
// guardrail.AgentStore.
type AgentDAO struct {
	db *DB
}

// NewAgentDAO creates an agent DAO.
func NewAgentDAO(db *DB) *AgentDAO {
	return &AgentDAO{db: db}
}

// UpsertAgent inserts or refreshes an agent record.
func (d *AgentDAO) UpsertAgent(ctx context.Context, agent *guardrail.Agent) error {
	now := time.Now().UTC()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}
	agent.UpdatedAt = now

	_, err := d.db.conn.ExecContext(ctx, `
		INSERT INTO agents (id, tenant_id, name, model, model_override, paused_at, pause_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			name = excluded.name,
			model = excluded.model,
			updated_at = excluded.updated_at`,
		agent.ID, agent.TenantID, agent.Name, agent.Model, agent.ModelOverride,
		nullTime(agent.PausedAt), agent.PauseReason, agent.CreatedAt, agent.UpdatedAt,
	)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "upsert agent", err)
	}
	return nil
}

// GetAgent fetches one agent record.
func (d *AgentDAO) GetAgent(ctx context.Context, agentID string) (*guardrail.Agent, error) {
	var (
		agent    guardrail.Agent
		pausedAt sql.NullTime
	)
	err := d.db.conn.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, model, model_override, paused_at, pause_reason, created_at, updated_at
		FROM agents WHERE id = ?`, agentID,
	).Scan(&agent.ID, &agent.TenantID, &agent.Name, &agent.Model, &agent.ModelOverride,
		&pausedAt, &agent.PauseReason, &agent.CreatedAt, &agent.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewError(types.AGENT_NOT_FOUND,
			fmt.Sprintf("agent %s not found", agentID))
	}
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "get agent", err)
	}
	if pausedAt.Valid {
		t := pausedAt.Time
		agent.PausedAt = &t
	}
	return &agent, nil
}

// PauseAgent sets the agent's pause marker and reason.
func (d *AgentDAO) PauseAgent(ctx context.Context, agentID, reason string, at time.Time) error {
	res, err := d.db.conn.ExecContext(ctx, `
		UPDATE agents SET paused_at = ?, pause_reason = ?, updated_at = ?
		WHERE id = ?`, at, reason, time.Now().UTC(), agentID)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "pause agent", err)
	}
	return requireAgentAffected(res, agentID)
}

// ResumeAgent clears the pause marker.
func (d *AgentDAO) ResumeAgent(ctx context.Context, agentID string) error {
	res, err := d.db.conn.ExecContext(ctx, `
		UPDATE agents SET paused_at = NULL, pause_reason = '', updated_at = ?
		WHERE id = ?`, time.Now().UTC(), agentID)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "resume agent", err)
	}
	return requireAgentAffected(res, agentID)
}

// SetModelOverride sets (or clears, with an empty model) the agent's model
// override.
func (d *AgentDAO) SetModelOverride(ctx context.Context, agentID, model string) error {
	res, err := d.db.conn.ExecContext(ctx, `
		UPDATE agents SET model_override = ?, updated_at = ?
		WHERE id = ?`, model, time.Now().UTC(), agentID)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "set model override", err)
	}
	return requireAgentAffected(res, agentID)
}

func requireAgentAffected(res sql.Result, agentID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "rows affected", err)
	}
	if n == 0 {
		return types.NewError(types.AGENT_NOT_FOUND,
			fmt.Sprintf("agent %s not found", agentID))
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
