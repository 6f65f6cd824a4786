package guardrail

import (
	"context"
	"fmt"

	"github.com/loreguard-ai/loreguard/internal/events"
	"github.com/loreguard-ai/loreguard/internal/scanner"
	"github.com/loreguard-ai/loreguard/internal/types"
)

// scannerTypeFor maps content condition types to scanner variants.
func scannerTypeFor(t ConditionType) (scanner.Type, bool) {
	switch t {
	case ConditionSecretsDetection:
		return scanner.TypeSecrets, true
	case ConditionPIIDetection:
		return scanner.TypePII, true
	case ConditionContentRegex:
		return scanner.TypeContentRegex, true
	case ConditionToxicityDetection:
		return scanner.TypeToxicity, true
	case ConditionPromptInjection:
		return scanner.TypePromptInjection, true
	default:
		return "", false
	}
}

// contentEvaluator delegates content conditions to the scanner registry.
// The compiled scanner is cached per rule; rule CRUD must call
// Registry.Invalidate on update and delete.
type contentEvaluator struct {
	registry *scanner.Registry
}

// scanRule compiles (or fetches) the rule's scanner and scans content.
func (e *contentEvaluator) scanRule(ctx context.Context, rule *Rule, content string, sc scanner.Context) (scanner.Result, error) {
	st, ok := scannerTypeFor(rule.ConditionType)
	if !ok {
		return scanner.Result{}, types.NewError(types.CONDITION_UNKNOWN,
			fmt.Sprintf("rule %s: %q is not a content condition", rule.ID, rule.ConditionType))
	}

	var cfg scanner.Config
	if err := decodeConditionConfig(rule, &cfg); err != nil {
		return scanner.Result{}, err
	}

	s, err := e.registry.GetOrCompile(rule.ID, func() (scanner.Scanner, error) {
		return scanner.Compile(st, cfg)
	})
	if err != nil {
		return scanner.Result{}, err
	}
	return s.Scan(ctx, content, sc), nil
}

func (e *contentEvaluator) Evaluate(ctx context.Context, rule *Rule, evt *events.Event) (EvalResult, error) {
	res, err := e.scanRule(ctx, rule, evt.Content, scanner.Context{
		TenantID: evt.TenantID,
		AgentID:  evt.AgentID,
		ToolName: evt.ToolName,
	})
	if err != nil {
		return EvalResult{}, err
	}

	n := len(res.Matches)
	return EvalResult{
		Triggered:    n > 0,
		CurrentValue: float64(n),
		Threshold:    1,
		Message:      fmt.Sprintf("%s scan found %d matches", rule.ConditionType, n),
	}, nil
}
