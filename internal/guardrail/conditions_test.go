package guardrail

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreguard-ai/loreguard/internal/events"
	"github.com/loreguard-ai/loreguard/internal/types"
)

var testClock = func() time.Time {
	return time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
}

func metricRule(cfg map[string]any) *Rule {
	return &Rule{
		ID:              types.NewID(),
		TenantID:        "acme",
		Name:            "metric rule",
		Enabled:         true,
		ConditionType:   ConditionCustomMetric,
		ConditionConfig: cfg,
	}
}

func TestErrorRateEvaluator(t *testing.T) {
	rule := &Rule{
		ID:            types.NewID(),
		ConditionType: ConditionErrorRateThreshold,
		ConditionConfig: map[string]any{
			"threshold":     25.0,
			"windowMinutes": 10,
		},
	}
	evt := &events.Event{AgentID: "agent-1"}

	tests := []struct {
		name      string
		total     int64
		errors    int64
		triggered bool
		value     float64
	}{
		{"no events", 0, 0, false, 0},
		{"below threshold", 10, 2, false, 20},
		{"at threshold", 4, 1, true, 25},
		{"above threshold", 10, 9, true, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := &errorRateEvaluator{
				store: &fakeEventStore{total: tt.total, errors: tt.errors},
				now:   testClock,
			}
			result, err := ev.Evaluate(context.Background(), rule, evt)
			require.NoError(t, err)
			assert.Equal(t, tt.triggered, result.Triggered)
			assert.InDelta(t, tt.value, result.CurrentValue, 0.001)
			assert.NotEmpty(t, result.Message)
		})
	}
}

func TestCostLimitEvaluator(t *testing.T) {
	store := &fakeEventStore{sessionCost: 12.50, dailyCost: 80.00}

	t.Run("session scope over limit", func(t *testing.T) {
		rule := &Rule{
			ID:              types.NewID(),
			ConditionType:   ConditionCostLimit,
			ConditionConfig: map[string]any{"maxCostUsd": 10.0, "scope": "session"},
		}
		ev := &costLimitEvaluator{store: store, now: testClock}
		result, err := ev.Evaluate(context.Background(), rule, &events.Event{AgentID: "agent-1", SessionID: "s-1"})
		require.NoError(t, err)
		assert.True(t, result.Triggered)
		assert.InDelta(t, 12.50, result.CurrentValue, 0.001)
	})

	t.Run("session cost exactly at limit does not trigger", func(t *testing.T) {
		rule := &Rule{
			ID:              types.NewID(),
			ConditionType:   ConditionCostLimit,
			ConditionConfig: map[string]any{"maxCostUsd": 12.50, "scope": "session"},
		}
		ev := &costLimitEvaluator{store: store, now: testClock}
		result, err := ev.Evaluate(context.Background(), rule, &events.Event{AgentID: "agent-1", SessionID: "s-1"})
		require.NoError(t, err)
		assert.False(t, result.Triggered)
	})

	t.Run("session scope without session", func(t *testing.T) {
		rule := &Rule{
			ID:              types.NewID(),
			ConditionType:   ConditionCostLimit,
			ConditionConfig: map[string]any{"maxCostUsd": 10.0},
		}
		ev := &costLimitEvaluator{store: store, now: testClock}
		result, err := ev.Evaluate(context.Background(), rule, &events.Event{AgentID: "agent-1"})
		require.NoError(t, err)
		assert.False(t, result.Triggered)
	})

	t.Run("daily scope", func(t *testing.T) {
		rule := &Rule{
			ID:              types.NewID(),
			ConditionType:   ConditionCostLimit,
			ConditionConfig: map[string]any{"maxCostUsd": 50.0, "scope": "daily"},
		}
		ev := &costLimitEvaluator{store: store, now: testClock}
		result, err := ev.Evaluate(context.Background(), rule, &events.Event{AgentID: "agent-1"})
		require.NoError(t, err)
		assert.True(t, result.Triggered)
		assert.InDelta(t, 80.00, result.CurrentValue, 0.001)
	})

	t.Run("unknown scope", func(t *testing.T) {
		rule := &Rule{
			ID:              types.NewID(),
			ConditionType:   ConditionCostLimit,
			ConditionConfig: map[string]any{"maxCostUsd": 50.0, "scope": "weekly"},
		}
		ev := &costLimitEvaluator{store: store, now: testClock}
		_, err := ev.Evaluate(context.Background(), rule, &events.Event{AgentID: "agent-1"})
		require.Error(t, err)
		var lgErr *types.LoreguardError
		require.ErrorAs(t, err, &lgErr)
		assert.Equal(t, types.CONDITION_CONFIG_BAD, lgErr.Code)
	})
}

func TestCustomMetricEvaluator_BuiltinMetrics(t *testing.T) {
	store := &fakeEventStore{total: 40, errors: 3, toolCalls: 12, windowCost: 1.75}
	evt := &events.Event{AgentID: "agent-1"}

	tests := []struct {
		name      string
		cfg       map[string]any
		triggered bool
		value     float64
	}{
		{
			"event_count gt",
			map[string]any{"metricName": "event_count", "operator": "gt", "value": 30.0},
			true, 40,
		},
		{
			"error_count lte",
			map[string]any{"metricName": "error_count", "operator": "lte", "value": 3.0},
			true, 3,
		},
		{
			"tool_call_count lt not triggered",
			map[string]any{"metricName": "tool_call_count", "operator": "lt", "value": 10.0},
			false, 12,
		},
		{
			"total_cost_usd gte",
			map[string]any{"metricName": "total_cost_usd", "operator": "gte", "value": 1.75},
			true, 1.75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := &customMetricEvaluator{store: store, now: testClock}
			result, err := ev.Evaluate(context.Background(), metricRule(tt.cfg), evt)
			require.NoError(t, err)
			assert.Equal(t, tt.triggered, result.Triggered)
			assert.InDelta(t, tt.value, result.CurrentValue, 0.001)
		})
	}
}

func TestCustomMetricEvaluator_UnknownMetric(t *testing.T) {
	ev := &customMetricEvaluator{store: &fakeEventStore{}, now: testClock}
	rule := metricRule(map[string]any{"metricName": "bogus", "operator": "gt", "value": 1.0})

	_, err := ev.Evaluate(context.Background(), rule, &events.Event{AgentID: "agent-1"})
	require.Error(t, err)
	var lgErr *types.LoreguardError
	require.ErrorAs(t, err, &lgErr)
	assert.Equal(t, types.CONDITION_CONFIG_BAD, lgErr.Code)
}

func TestCustomMetricEvaluator_KeyPath(t *testing.T) {
	// Newest first, the way the store contract orders them.
	store := &fakeEventStore{recent: []*events.Event{
		{Metadata: map[string]any{"usage": map[string]any{"queue_depth": 42}}},
		{Metadata: map[string]any{"usage": map[string]any{"queue_depth": 7}}},
	}}

	t.Run("reads most recent matching event", func(t *testing.T) {
		ev := &customMetricEvaluator{store: store, now: testClock}
		rule := metricRule(map[string]any{
			"metricKeyPath": "usage.queue_depth",
			"operator":      "gt",
			"value":         40.0,
		})
		result, err := ev.Evaluate(context.Background(), rule, &events.Event{AgentID: "agent-1"})
		require.NoError(t, err)
		assert.True(t, result.Triggered)
		assert.InDelta(t, 42, result.CurrentValue, 0.001)
	})

	t.Run("skips events without the path", func(t *testing.T) {
		ev := &customMetricEvaluator{store: &fakeEventStore{recent: []*events.Event{
			{Metadata: map[string]any{"other": true}},
			{Metadata: map[string]any{"usage": map[string]any{"queue_depth": 7}}},
		}}, now: testClock}
		rule := metricRule(map[string]any{
			"metricKeyPath": "usage.queue_depth",
			"operator":      "gte",
			"value":         5.0,
		})
		result, err := ev.Evaluate(context.Background(), rule, &events.Event{AgentID: "agent-1"})
		require.NoError(t, err)
		assert.True(t, result.Triggered)
		assert.InDelta(t, 7, result.CurrentValue, 0.001)
	})

	t.Run("absent path on all events does not trigger", func(t *testing.T) {
		ev := &customMetricEvaluator{store: store, now: testClock}
		rule := metricRule(map[string]any{
			"metricKeyPath": "usage.missing",
			"operator":      "gt",
			"value":         0.0,
		})
		result, err := ev.Evaluate(context.Background(), rule, &events.Event{AgentID: "agent-1"})
		require.NoError(t, err)
		assert.False(t, result.Triggered)
	})

	t.Run("key path wins over metric name", func(t *testing.T) {
		ev := &customMetricEvaluator{store: store, now: testClock}
		rule := metricRule(map[string]any{
			"metricName":    "event_count",
			"metricKeyPath": "usage.queue_depth",
			"operator":      "gt",
			"value":         40.0,
		})
		result, err := ev.Evaluate(context.Background(), rule, &events.Event{AgentID: "agent-1"})
		require.NoError(t, err)
		assert.InDelta(t, 42, result.CurrentValue, 0.001)
	})
}

func TestMetricOperator_Compare(t *testing.T) {
	tests := []struct {
		op        MetricOperator
		current   float64
		threshold float64
		want      bool
	}{
		{OperatorGT, 2, 1, true},
		{OperatorGT, 1, 1, false},
		{OperatorGTE, 1, 1, true},
		{OperatorLT, 0, 1, true},
		{OperatorLT, 1, 1, false},
		{OperatorLTE, 1, 1, true},
	}
	for _, tt := range tests {
		got, err := tt.op.Compare(tt.current, tt.threshold)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s(%v,%v)", tt.op, tt.current, tt.threshold)
	}

	_, err := MetricOperator("between").Compare(1, 2)
	assert.Error(t, err)
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{42, 42, true},
		{int64(7), 7, true},
		{3.14, 3.14, true},
		{"2.5", 2.5, true},
		{"not a number", 0, false},
		{true, 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := toFloat(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 0.0001)
		}
	}
}
