package guardrail

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/loreguard-ai/loreguard/internal/events"
	"github.com/loreguard-ai/loreguard/internal/scanner"
	"github.com/loreguard-ai/loreguard/internal/types"
)

// Engine orchestrates rule lookup, condition dispatch, cooldown/state
// tracking, and action execution.
//
// Evaluation for one event runs against the tenant's rules sequentially and
// completes before the next event is processed, so no two evaluations of
// the same rule's state ever interleave.
type Engine struct {
	rules    RuleStore
	states   StateStore
	history  HistoryStore
	agents   AgentStore
	registry *scanner.Registry
	bus      events.Bus

	evaluators map[ConditionType]Evaluator

	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time

	// evalMu serializes event evaluation to keep cooldown timing correct.
	evalMu sync.Mutex
}

// NewEngine wires the engine with its stores, scanner registry, and event
// bus. The registry is passed explicitly; rule CRUD owns invalidation.
func NewEngine(rules RuleStore, states StateStore, history HistoryStore, eventStore EventStore, agents AgentStore, registry *scanner.Registry, bus events.Bus) *Engine {
	e := &Engine{
		rules:    rules,
		states:   states,
		history:  history,
		agents:   agents,
		registry: registry,
		bus:      bus,
		logger:   slog.Default(),
		now:      time.Now,
	}

	operationalNow := func() time.Time { return e.now() }
	content := &contentEvaluator{registry: registry}
	e.evaluators = map[ConditionType]Evaluator{
		ConditionErrorRateThreshold: &errorRateEvaluator{store: eventStore, now: operationalNow},
		ConditionCostLimit:          &costLimitEvaluator{store: eventStore, now: operationalNow},
		ConditionCustomMetric:       &customMetricEvaluator{store: eventStore, now: operationalNow},
		ConditionPIIDetection:       content,
		ConditionSecretsDetection:   content,
		ConditionContentRegex:       content,
	}
	return e
}

// WithLogger sets the engine's logger.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.logger = logger
	return e
}

// WithTracer sets the OpenTelemetry tracer for per-rule spans.
func (e *Engine) WithTracer(tracer trace.Tracer) *Engine {
	e.tracer = tracer
	return e
}

// Run subscribes the engine to the bus and evaluates every agent and
// session event until ctx is canceled. Events are consumed one at a time;
// an event's evaluation completes before the next is taken.
func (e *Engine) Run(ctx context.Context) error {
	ch, cancel := e.bus.Subscribe(ctx, events.Filter{
		Types: []events.EventType{
			events.EventToolCall,
			events.EventLLMRequest,
			events.EventAgentMessage,
			events.EventAgentError,
			events.EventSessionStarted,
			events.EventSessionEnded,
		},
	}, 0)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			if err := e.EvaluateEvent(ctx, &evt); err != nil {
				e.logger.ErrorContext(ctx, "event evaluation failed",
					"event_id", evt.ID,
					"error", err,
				)
			}
		}
	}
}

// EvaluateEvent evaluates all of the tenant's enabled rules against one
// incoming event. A rule whose evaluation fails (bad config, unknown
// condition) is logged and skipped; it never halts evaluation of the
// remaining rules.
func (e *Engine) EvaluateEvent(ctx context.Context, evt *events.Event) error {
	e.evalMu.Lock()
	defer e.evalMu.Unlock()

	rules, err := e.rules.ListEnabledRules(ctx, evt.TenantID)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		if err := e.evaluateRule(ctx, rule, evt); err != nil {
			e.logger.WarnContext(ctx, "rule evaluation skipped",
				"rule_id", rule.ID,
				"rule_name", rule.Name,
				"condition_type", rule.ConditionType,
				"error", err,
			)
		}
	}
	return nil
}

// evaluateRule runs the per-rule state machine.
func (e *Engine) evaluateRule(ctx context.Context, rule *Rule, evt *events.Event) error {
	if !rule.Enabled {
		return nil
	}

	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.Start(ctx, "guardrail.evaluate_rule",
			trace.WithAttributes(
				attribute.String("guardrail.rule_id", rule.ID.String()),
				attribute.String("guardrail.condition_type", rule.ConditionType.String()),
			),
		)
		defer span.End()
	}

	evaluator, ok := e.evaluators[rule.ConditionType]
	if !ok {
		return types.NewError(types.CONDITION_UNKNOWN,
			fmt.Sprintf("no evaluator for condition type %q", rule.ConditionType))
	}

	result, err := evaluator.Evaluate(ctx, rule, evt)
	if err != nil {
		return err
	}
	if span != nil {
		span.SetAttributes(attribute.Bool("guardrail.triggered", result.Triggered))
	}

	now := e.now()
	state, err := e.loadState(ctx, rule)
	if err != nil {
		return err
	}
	state.LastEvaluatedAt = now

	if !result.Triggered {
		return e.states.UpsertState(ctx, state)
	}

	if e.inCooldown(rule, state, now) {
		// Cooldown gates trigger recording, not just action execution: a
		// suppressed trigger leaves no history entry and LastTriggeredAt
		// stays put.
		e.logger.DebugContext(ctx, "trigger suppressed by cooldown",
			"rule_id", rule.ID,
			"last_triggered_at", state.LastTriggeredAt,
		)
		return e.states.UpsertState(ctx, state)
	}

	record := &TriggerRecord{
		ID:           types.NewID(),
		RuleID:       rule.ID,
		TriggeredAt:  now,
		CurrentValue: result.CurrentValue,
		Threshold:    result.Threshold,
		Message:      result.Message,
	}

	if rule.DryRun {
		record.ActionResult = ActionResultDryRun
		record.ActionExecuted = false
	} else {
		actionErr := e.executeAction(ctx, rule, evt, result)
		if actionErr != nil {
			record.ActionResult = ActionResultFailed
			record.ActionExecuted = false
			e.logger.ErrorContext(ctx, "guardrail action failed",
				"rule_id", rule.ID,
				"action_type", rule.ActionType,
				"error", actionErr,
			)
		} else {
			record.ActionResult = ActionResultExecuted
			record.ActionExecuted = true
		}
		e.emitAlert(ctx, rule, evt, result)
	}

	if err := e.history.AppendTrigger(ctx, record); err != nil {
		// State must still advance: the action already ran, and a lost
		// history row must not leave the cooldown window unopened so the
		// next event re-executes the action.
		e.logger.ErrorContext(ctx, "trigger history append failed",
			"rule_id", rule.ID,
			"error", err,
		)
	}

	triggeredAt := now
	state.LastTriggeredAt = &triggeredAt
	state.TriggerCount++
	return e.states.UpsertState(ctx, state)
}

// loadState fetches the rule's state, starting a fresh row on first
// evaluation.
func (e *Engine) loadState(ctx context.Context, rule *Rule) (*State, error) {
	state, err := e.states.GetState(ctx, rule.ID)
	if err != nil {
		if types.IsNotFound(err) {
			return &State{RuleID: rule.ID, TenantID: rule.TenantID}, nil
		}
		return nil, err
	}
	return state, nil
}

// inCooldown reports whether now falls within the rule's cooldown of the
// last recorded trigger.
func (e *Engine) inCooldown(rule *Rule, state *State, now time.Time) bool {
	if rule.CooldownMinutes <= 0 || state.LastTriggeredAt == nil {
		return false
	}
	cooldown := time.Duration(rule.CooldownMinutes) * time.Minute
	return now.Sub(*state.LastTriggeredAt) < cooldown
}

// executeAction performs the rule's protective action.
func (e *Engine) executeAction(ctx context.Context, rule *Rule, evt *events.Event, result EvalResult) error {
	switch rule.ActionType {
	case ActionPauseAgent:
		if evt.AgentID == "" {
			return types.NewError(types.ACTION_FAILED, "pause_agent requires an agent on the event")
		}
		reason := fmt.Sprintf("guardrail %q: %s", rule.Name, result.Message)
		if err := e.agents.PauseAgent(ctx, evt.AgentID, reason, e.now()); err != nil {
			return types.WrapError(types.ACTION_FAILED, "pause_agent", err)
		}
		e.publish(ctx, events.Event{
			ID:        types.NewID(),
			Type:      events.EventAgentPaused,
			Timestamp: e.now(),
			TenantID:  rule.TenantID,
			AgentID:   evt.AgentID,
			Severity:  events.SeverityWarning,
			Content:   reason,
		})
		return nil

	case ActionDowngradeModel:
		var cfg DowngradeModelConfig
		if err := decodeActionConfig(rule, &cfg); err != nil {
			return err
		}
		if cfg.Model == "" {
			return types.NewError(types.CONDITION_CONFIG_BAD,
				fmt.Sprintf("rule %s: downgrade_model requires a model", rule.ID))
		}
		if evt.AgentID == "" {
			return types.NewError(types.ACTION_FAILED, "downgrade_model requires an agent on the event")
		}
		if err := e.agents.SetModelOverride(ctx, evt.AgentID, cfg.Model); err != nil {
			return types.WrapError(types.ACTION_FAILED, "downgrade_model", err)
		}
		return nil

	case ActionNotify, ActionBlock:
		// Carried entirely by the alert event; subscribers route
		// notifications and the ingestion path honors block markers.
		return nil

	default:
		return types.NewError(types.ACTION_FAILED,
			fmt.Sprintf("unknown action type %q", rule.ActionType))
	}
}

// emitAlert publishes the alert_triggered event for downstream subscribers
// (SSE clients, notification router). Never emitted for dry runs.
func (e *Engine) emitAlert(ctx context.Context, rule *Rule, evt *events.Event, result EvalResult) {
	e.publish(ctx, events.Event{
		ID:        types.NewID(),
		Type:      events.EventAlertTriggered,
		Timestamp: e.now(),
		TenantID:  rule.TenantID,
		AgentID:   evt.AgentID,
		SessionID: evt.SessionID,
		Severity:  events.SeverityWarning,
		Metadata: map[string]any{
			"alert": events.AlertPayload{
				RuleID:       rule.ID,
				RuleName:     rule.Name,
				TenantID:     rule.TenantID,
				AgentID:      evt.AgentID,
				CurrentValue: result.CurrentValue,
				Threshold:    result.Threshold,
				ActionType:   rule.ActionType.String(),
				Message:      result.Message,
			},
		},
	})
}

func (e *Engine) publish(ctx context.Context, evt events.Event) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Publish(ctx, evt); err != nil {
		e.logger.WarnContext(ctx, "event publish failed",
			"event_type", evt.Type,
			"error", err,
		)
	}
}

// Decision is the outcome of an advisory content evaluation.
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionBlock  Decision = "block"
	DecisionRedact Decision = "redact"
)

// ContentDecision is returned by EvaluateContent.
type ContentDecision struct {
	Decision        Decision        `json:"decision"`
	Matches         []scanner.Match `json:"matches"`
	BlockingRuleID  types.ID        `json:"blocking_rule_id,omitempty"`
	RedactedContent string          `json:"redacted_content,omitempty"`
	RulesEvaluated  int             `json:"rules_evaluated"`
}

// EvaluateContent runs the tenant's content rules against one piece of
// content. A non-dry-run block rule with matches decides "block"; any
// other matches decide "redact" with the matched spans replaced; no
// matches decide "allow". Rules that fail to compile or decode are logged
// and skipped, and cooldown/history bookkeeping does not apply: this path
// is advisory and stateless.
func (e *Engine) EvaluateContent(ctx context.Context, tenantID, content string, sc scanner.Context) (*ContentDecision, error) {
	rules, err := e.rules.ListEnabledRules(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	evaluator := &contentEvaluator{registry: e.registry}
	decision := &ContentDecision{Decision: DecisionAllow}

	for _, rule := range rules {
		if !rule.ConditionType.IsContent() {
			continue
		}
		decision.RulesEvaluated++

		res, err := evaluator.scanRule(ctx, rule, content, sc)
		if err != nil {
			e.logger.WarnContext(ctx, "content rule skipped",
				"rule_id", rule.ID,
				"condition_type", rule.ConditionType,
				"error", err,
			)
			continue
		}
		if len(res.Matches) == 0 {
			continue
		}

		decision.Matches = append(decision.Matches, res.Matches...)
		if rule.ActionType == ActionBlock && !rule.DryRun {
			decision.Decision = DecisionBlock
			decision.BlockingRuleID = rule.ID
			return decision, nil
		}
	}

	if len(decision.Matches) > 0 {
		decision.Decision = DecisionRedact
		decision.RedactedContent = applyMatches(content, decision.Matches)
	}
	return decision, nil
}

// applyMatches replaces matched spans with their redaction tokens,
// resolving overlaps across rules the same way a single scanner does.
func applyMatches(content string, matches []scanner.Match) string {
	sorted := make([]scanner.Match, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start > sorted[j].Start })

	out := content
	var lastStart = len(content) + 1
	for _, m := range sorted {
		if m.Start < 0 || m.End > len(out) || m.Start >= m.End || m.End > lastStart {
			continue
		}
		out = out[:m.Start] + m.RedactionToken + out[m.End:]
		lastStart = m.Start
	}
	return out
}
