package guardrail

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ohler55/ojg/jp"

	"github.com/loreguard-ai/loreguard/internal/events"
	"github.com/loreguard-ai/loreguard/internal/types"
)

// Evaluator decides whether one rule's condition holds for an incoming
// event. Evaluation is pure given the data supplied by the stores: no
// evaluator performs network calls.
type Evaluator interface {
	Evaluate(ctx context.Context, rule *Rule, evt *events.Event) (EvalResult, error)
}

// recentEventsLimit bounds how many window events a key-path metric walks
// looking for the path.
const recentEventsLimit = 100

// Built-in metric names for custom_metric conditions.
const (
	MetricEventCount   = "event_count"
	MetricErrorCount   = "error_count"
	MetricToolCalls    = "tool_call_count"
	MetricTotalCostUSD = "total_cost_usd"
)

type errorRateEvaluator struct {
	store EventStore
	now   func() time.Time
}

func (e *errorRateEvaluator) Evaluate(ctx context.Context, rule *Rule, evt *events.Event) (EvalResult, error) {
	var cfg ErrorRateConfig
	if err := decodeConditionConfig(rule, &cfg); err != nil {
		return EvalResult{}, err
	}
	if cfg.WindowMinutes <= 0 {
		cfg.WindowMinutes = defaultWindowMinutes
	}
	since := e.now().Add(-time.Duration(cfg.WindowMinutes) * time.Minute)

	total, err := e.store.CountEvents(ctx, evt.AgentID, since)
	if err != nil {
		return EvalResult{}, err
	}
	if total == 0 {
		return EvalResult{
			Threshold: cfg.Threshold,
			Message:   fmt.Sprintf("no events in the last %dm", cfg.WindowMinutes),
		}, nil
	}

	errCount, err := e.store.CountErrorEvents(ctx, evt.AgentID, since)
	if err != nil {
		return EvalResult{}, err
	}

	rate := float64(errCount) / float64(total) * 100
	return EvalResult{
		Triggered:    rate >= cfg.Threshold,
		CurrentValue: rate,
		Threshold:    cfg.Threshold,
		Message: fmt.Sprintf("error rate %.1f%% (%d/%d events) over %dm, threshold %.1f%%",
			rate, errCount, total, cfg.WindowMinutes, cfg.Threshold),
	}, nil
}

type costLimitEvaluator struct {
	store EventStore
	now   func() time.Time
}

func (e *costLimitEvaluator) Evaluate(ctx context.Context, rule *Rule, evt *events.Event) (EvalResult, error) {
	var cfg CostLimitConfig
	if err := decodeConditionConfig(rule, &cfg); err != nil {
		return EvalResult{}, err
	}
	if cfg.Scope == "" {
		cfg.Scope = CostScopeSession
	}

	var (
		sum float64
		err error
	)
	switch cfg.Scope {
	case CostScopeSession:
		if evt.SessionID == "" {
			return EvalResult{
				Threshold: cfg.MaxCostUSD,
				Message:   "event carries no session, session cost limit not applicable",
			}, nil
		}
		sum, err = e.store.SessionCost(ctx, evt.SessionID)
	case CostScopeDaily:
		dayStart := e.now().UTC().Truncate(24 * time.Hour)
		sum, err = e.store.DailyCost(ctx, evt.AgentID, dayStart)
	default:
		return EvalResult{}, types.NewError(types.CONDITION_CONFIG_BAD,
			fmt.Sprintf("rule %s: unknown cost scope %q", rule.ID, cfg.Scope))
	}
	if err != nil {
		return EvalResult{}, err
	}

	return EvalResult{
		Triggered:    sum > cfg.MaxCostUSD,
		CurrentValue: sum,
		Threshold:    cfg.MaxCostUSD,
		Message: fmt.Sprintf("%s cost $%.4f, limit $%.4f",
			cfg.Scope, sum, cfg.MaxCostUSD),
	}, nil
}

type customMetricEvaluator struct {
	store EventStore
	now   func() time.Time
}

func (e *customMetricEvaluator) Evaluate(ctx context.Context, rule *Rule, evt *events.Event) (EvalResult, error) {
	var cfg CustomMetricConfig
	if err := decodeConditionConfig(rule, &cfg); err != nil {
		return EvalResult{}, err
	}
	if cfg.WindowMinutes <= 0 {
		cfg.WindowMinutes = defaultWindowMinutes
	}
	since := e.now().Add(-time.Duration(cfg.WindowMinutes) * time.Minute)

	// A key path is the more specific instruction and wins over a metric
	// name when both are configured.
	if cfg.MetricKeyPath != "" {
		return e.evaluateKeyPath(ctx, rule, evt, cfg, since)
	}

	current, err := e.builtinMetric(ctx, rule, evt, cfg.MetricName, since)
	if err != nil {
		return EvalResult{}, err
	}
	triggered, err := cfg.Operator.Compare(current, cfg.Value)
	if err != nil {
		return EvalResult{}, err
	}
	return EvalResult{
		Triggered:    triggered,
		CurrentValue: current,
		Threshold:    cfg.Value,
		Message: fmt.Sprintf("%s = %.4g over %dm, condition %s %.4g",
			cfg.MetricName, current, cfg.WindowMinutes, cfg.Operator, cfg.Value),
	}, nil
}

// evaluateKeyPath extracts a dot-path value from the most recent window
// event whose metadata carries the path. Absent on all events means not
// triggered, never an error.
func (e *customMetricEvaluator) evaluateKeyPath(ctx context.Context, rule *Rule, evt *events.Event, cfg CustomMetricConfig, since time.Time) (EvalResult, error) {
	expr, err := jp.ParseString(cfg.MetricKeyPath)
	if err != nil {
		return EvalResult{}, types.WrapError(types.CONDITION_CONFIG_BAD,
			fmt.Sprintf("rule %s: bad metric key path %q", rule.ID, cfg.MetricKeyPath), err)
	}

	recent, err := e.store.RecentEvents(ctx, evt.AgentID, since, recentEventsLimit)
	if err != nil {
		return EvalResult{}, err
	}

	for _, ev := range recent {
		if len(ev.Metadata) == 0 {
			continue
		}
		values := expr.Get(ev.Metadata)
		if len(values) == 0 {
			continue
		}
		current, ok := toFloat(values[0])
		if !ok {
			continue
		}
		triggered, err := cfg.Operator.Compare(current, cfg.Value)
		if err != nil {
			return EvalResult{}, err
		}
		return EvalResult{
			Triggered:    triggered,
			CurrentValue: current,
			Threshold:    cfg.Value,
			Message: fmt.Sprintf("%s = %.4g, condition %s %.4g",
				cfg.MetricKeyPath, current, cfg.Operator, cfg.Value),
		}, nil
	}

	return EvalResult{
		Threshold: cfg.Value,
		Message:   fmt.Sprintf("%s absent from all events in the last %dm", cfg.MetricKeyPath, cfg.WindowMinutes),
	}, nil
}

func (e *customMetricEvaluator) builtinMetric(ctx context.Context, rule *Rule, evt *events.Event, name string, since time.Time) (float64, error) {
	switch name {
	case MetricEventCount:
		n, err := e.store.CountEvents(ctx, evt.AgentID, since)
		return float64(n), err
	case MetricErrorCount:
		n, err := e.store.CountErrorEvents(ctx, evt.AgentID, since)
		return float64(n), err
	case MetricToolCalls:
		n, err := e.store.CountToolCalls(ctx, evt.AgentID, since)
		return float64(n), err
	case MetricTotalCostUSD:
		return e.store.WindowCost(ctx, evt.AgentID, since)
	default:
		return 0, types.NewError(types.CONDITION_CONFIG_BAD,
			fmt.Sprintf("rule %s: unknown metric %q", rule.ID, name))
	}
}

// toFloat converts the loosely-typed values JSON metadata carries.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
