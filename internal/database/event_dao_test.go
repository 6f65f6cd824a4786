package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreguard-ai/loreguard/internal/events"
)

func TestEventDAO_WindowedAggregates(t *testing.T) {
	db := newTestDB(t)
	dao := NewEventDAO(db)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	seed := []*events.Event{
		{Type: events.EventToolCall, Timestamp: base, TenantID: "acme", AgentID: "agent-1", SessionID: "s-1", Severity: events.SeverityInfo, CostUSD: 0.10, ToolName: "search"},
		{Type: events.EventAgentError, Timestamp: base.Add(1 * time.Minute), TenantID: "acme", AgentID: "agent-1", SessionID: "s-1", Severity: events.SeverityError, CostUSD: 0.05},
		{Type: events.EventLLMRequest, Timestamp: base.Add(2 * time.Minute), TenantID: "acme", AgentID: "agent-1", SessionID: "s-2", Severity: events.SeverityCritical, CostUSD: 0.40,
			Metadata: map[string]any{"usage": map[string]any{"queue_depth": 42.0}}},
		// Different agent, excluded from agent-1 windows.
		{Type: events.EventToolCall, Timestamp: base.Add(3 * time.Minute), TenantID: "acme", AgentID: "agent-2", Severity: events.SeverityInfo, CostUSD: 9.99},
		// Before the window.
		{Type: events.EventToolCall, Timestamp: base.Add(-2 * time.Hour), TenantID: "acme", AgentID: "agent-1", Severity: events.SeverityInfo, CostUSD: 5.00},
	}
	for _, evt := range seed {
		require.NoError(t, dao.InsertEvent(ctx, evt))
	}

	since := base.Add(-time.Minute)

	total, err := dao.CountEvents(ctx, "agent-1", since)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	errCount, err := dao.CountErrorEvents(ctx, "agent-1", since)
	require.NoError(t, err)
	assert.Equal(t, int64(2), errCount)

	toolCalls, err := dao.CountToolCalls(ctx, "agent-1", since)
	require.NoError(t, err)
	assert.Equal(t, int64(1), toolCalls)

	windowCost, err := dao.WindowCost(ctx, "agent-1", since)
	require.NoError(t, err)
	assert.InDelta(t, 0.55, windowCost, 0.0001)

	sessionCost, err := dao.SessionCost(ctx, "s-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.15, sessionCost, 0.0001)

	dailyCost, err := dao.DailyCost(ctx, "agent-1", base.Truncate(24*time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 5.55, dailyCost, 0.0001)
}

func TestEventDAO_DailyCostExcludesCarryoverSessions(t *testing.T) {
	db := newTestDB(t)
	dao := NewEventDAO(db)
	ctx := context.Background()
	dayStart := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)

	seed := []*events.Event{
		// Session started yesterday and still running: none of its cost is
		// today's, including the post-midnight events.
		{Type: events.EventLLMRequest, Timestamp: dayStart.Add(-2 * time.Hour), TenantID: "acme", AgentID: "agent-1", SessionID: "carryover", CostUSD: 1.00},
		{Type: events.EventLLMRequest, Timestamp: dayStart.Add(1 * time.Hour), TenantID: "acme", AgentID: "agent-1", SessionID: "carryover", CostUSD: 5.00},
		// Session started today counts in full.
		{Type: events.EventLLMRequest, Timestamp: dayStart.Add(2 * time.Hour), TenantID: "acme", AgentID: "agent-1", SessionID: "fresh", CostUSD: 2.00},
		{Type: events.EventToolCall, Timestamp: dayStart.Add(3 * time.Hour), TenantID: "acme", AgentID: "agent-1", SessionID: "fresh", CostUSD: 0.50},
		// Sessionless events attribute by their own timestamp.
		{Type: events.EventToolCall, Timestamp: dayStart.Add(-1 * time.Hour), TenantID: "acme", AgentID: "agent-1", CostUSD: 9.00},
		{Type: events.EventToolCall, Timestamp: dayStart.Add(4 * time.Hour), TenantID: "acme", AgentID: "agent-1", CostUSD: 0.25},
		// Another agent with nothing but a carryover session.
		{Type: events.EventLLMRequest, Timestamp: dayStart.Add(-3 * time.Hour), TenantID: "acme", AgentID: "agent-2", SessionID: "night-shift", CostUSD: 1.00},
		{Type: events.EventLLMRequest, Timestamp: dayStart.Add(1 * time.Hour), TenantID: "acme", AgentID: "agent-2", SessionID: "night-shift", CostUSD: 5.00},
	}
	for _, evt := range seed {
		require.NoError(t, dao.InsertEvent(ctx, evt))
	}

	got, err := dao.DailyCost(ctx, "agent-1", dayStart)
	require.NoError(t, err)
	assert.InDelta(t, 2.75, got, 0.0001)

	// A carryover session alone yields zero for today.
	gotEmpty, err := dao.DailyCost(ctx, "agent-2", dayStart)
	require.NoError(t, err)
	assert.Zero(t, gotEmpty)
}

func TestEventDAO_RecentEvents(t *testing.T) {
	db := newTestDB(t)
	dao := NewEventDAO(db)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, dao.InsertEvent(ctx, &events.Event{
			Type:      events.EventLLMRequest,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			TenantID:  "acme",
			AgentID:   "agent-1",
			Metadata:  map[string]any{"seq": float64(i)},
		}))
	}

	recent, err := dao.RecentEvents(ctx, "agent-1", base.Add(-time.Minute), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	// Newest first, metadata round-trips.
	assert.Equal(t, float64(2), recent[0].Metadata["seq"])
	assert.Equal(t, float64(1), recent[1].Metadata["seq"])
	assert.Equal(t, events.EventLLMRequest, recent[0].Type)
}
