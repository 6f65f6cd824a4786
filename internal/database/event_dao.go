package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/loreguard-ai/loreguard/internal/events"
	"github.com/loreguard-ai/loreguard/internal/types"
)

// EventDAO persists ingested events and serves the windowed aggregates the
// guardrail evaluators read. It implements guardrail.EventStore.
type EventDAO struct {
	db *DB
}

// NewEventDAO creates an event DAO.
func NewEventDAO(db *DB) *EventDAO {
	return &EventDAO{db: db}
}

// InsertEvent stores one event.
func (d *EventDAO) InsertEvent(ctx context.Context, evt *events.Event) error {
	if evt.ID.IsZero() {
		evt.ID = types.NewID()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	metadata := "{}"
	if len(evt.Metadata) > 0 {
		data, err := json.Marshal(evt.Metadata)
		if err != nil {
			return types.WrapError(types.DB_QUERY_FAILED, "marshal event metadata", err)
		}
		metadata = string(data)
	}

	_, err := d.db.conn.ExecContext(ctx, `
		INSERT INTO events (id, type, timestamp, tenant_id, agent_id, session_id, severity, cost_usd, tool_name, content, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.ID.String(), evt.Type.String(), evt.Timestamp, evt.TenantID,
		evt.AgentID, evt.SessionID, string(evt.Severity), evt.CostUSD,
		evt.ToolName, evt.Content, metadata,
	)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "insert event", err)
	}
	return nil
}

// CountEvents counts the agent's events since the given time.
func (d *EventDAO) CountEvents(ctx context.Context, agentID string, since time.Time) (int64, error) {
	return d.countQuery(ctx, `
		SELECT COUNT(*) FROM events
		WHERE agent_id = ? AND timestamp >= ?`, agentID, since)
}

// CountErrorEvents counts error/critical-severity events.
func (d *EventDAO) CountErrorEvents(ctx context.Context, agentID string, since time.Time) (int64, error) {
	return d.countQuery(ctx, `
		SELECT COUNT(*) FROM events
		WHERE agent_id = ? AND timestamp >= ? AND severity IN ('error', 'critical')`,
		agentID, since)
}

// CountToolCalls counts tool_call events.
func (d *EventDAO) CountToolCalls(ctx context.Context, agentID string, since time.Time) (int64, error) {
	return d.countQuery(ctx, `
		SELECT COUNT(*) FROM events
		WHERE agent_id = ? AND timestamp >= ? AND type = ?`,
		agentID, since, events.EventToolCall.String())
}

// WindowCost sums event cost for the agent since the given time.
func (d *EventDAO) WindowCost(ctx context.Context, agentID string, since time.Time) (float64, error) {
	return d.sumQuery(ctx, `
		SELECT COALESCE(SUM(cost_usd), 0) FROM events
		WHERE agent_id = ? AND timestamp >= ?`, agentID, since)
}

// SessionCost sums event cost across one session.
func (d *EventDAO) SessionCost(ctx context.Context, sessionID string) (float64, error) {
	return d.sumQuery(ctx, `
		SELECT COALESCE(SUM(cost_usd), 0) FROM events
		WHERE session_id = ?`, sessionID)
}

// DailyCost sums event cost across the agent's sessions started at or
// after dayStart. A session started before dayStart contributes nothing,
// even for events it produces after dayStart. Events without a session
// attribute by their own timestamp.
func (d *EventDAO) DailyCost(ctx context.Context, agentID string, dayStart time.Time) (float64, error) {
	return d.sumQuery(ctx, `
		SELECT COALESCE(SUM(e.cost_usd), 0)
		FROM events e
		LEFT JOIN (
			SELECT session_id, MIN(timestamp) AS started_at
			FROM events
			WHERE agent_id = ? AND session_id <> ''
			GROUP BY session_id
		) s ON s.session_id = e.session_id
		WHERE e.agent_id = ?
		  AND ((e.session_id <> '' AND s.started_at >= ?)
		    OR (e.session_id = '' AND e.timestamp >= ?))`,
		agentID, agentID, dayStart, dayStart)
}

// RecentEvents returns the agent's events since the given time, newest
// first.
func (d *EventDAO) RecentEvents(ctx context.Context, agentID string, since time.Time, limit int) ([]*events.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.conn.QueryContext(ctx, `
		SELECT id, type, timestamp, tenant_id, agent_id, session_id, severity, cost_usd, tool_name, content, metadata
		FROM events
		WHERE agent_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?`, agentID, since, limit)
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "recent events", err)
	}
	defer rows.Close()

	var out []*events.Event
	for rows.Next() {
		var (
			evt      events.Event
			id       string
			evtType  string
			severity string
			metadata string
		)
		err := rows.Scan(&id, &evtType, &evt.Timestamp, &evt.TenantID, &evt.AgentID,
			&evt.SessionID, &severity, &evt.CostUSD, &evt.ToolName, &evt.Content, &metadata)
		if err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "scan event", err)
		}
		evt.ID = types.ID(id)
		evt.Type = events.EventType(evtType)
		evt.Severity = events.Severity(severity)
		if metadata != "" && metadata != "{}" {
			if err := json.Unmarshal([]byte(metadata), &evt.Metadata); err != nil {
				return nil, types.WrapError(types.DB_QUERY_FAILED, "unmarshal event metadata", err)
			}
		}
		out = append(out, &evt)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "iterate events", err)
	}
	return out, nil
}

func (d *EventDAO) countQuery(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := d.db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, types.WrapError(types.DB_QUERY_FAILED, "count events", err)
	}
	return n, nil
}

func (d *EventDAO) sumQuery(ctx context.Context, query string, args ...any) (float64, error) {
	var sum float64
	if err := d.db.conn.QueryRowContext(ctx, query, args...).Scan(&sum); err != nil {
		return 0, types.WrapError(types.DB_QUERY_FAILED, "sum event cost", err)
	}
	return sum, nil
}
