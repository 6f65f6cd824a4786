package guardrail

import (
	"context"
	"sync"
	"time"

	"github.com/loreguard-ai/loreguard/internal/events"
	"github.com/loreguard-ai/loreguard/internal/types"
)

// Shared in-memory fakes for the engine and evaluator tests.

type fakeRuleStore struct {
	mu    sync.Mutex
	rules []*Rule
}

func (s *fakeRuleStore) GetRule(_ context.Context, id types.ID) (*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, types.NewError(types.RULE_NOT_FOUND, "rule not found")
}

func (s *fakeRuleStore) ListEnabledRules(_ context.Context, tenantID string) ([]*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Rule
	for _, r := range s.rules {
		if r.TenantID == tenantID && r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeStateStore struct {
	mu     sync.Mutex
	states map[types.ID]State
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[types.ID]State)}
}

func (s *fakeStateStore) GetState(_ context.Context, ruleID types.ID) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[ruleID]
	if !ok {
		return nil, types.NewError(types.STATE_NOT_FOUND, "state not found")
	}
	copied := st
	return &copied, nil
}

func (s *fakeStateStore) UpsertState(_ context.Context, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.RuleID] = *state
	return nil
}

type fakeHistoryStore struct {
	mu        sync.Mutex
	records   []*TriggerRecord
	appendErr error
}

func (s *fakeHistoryStore) AppendTrigger(_ context.Context, record *TriggerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.records = append(s.records, record)
	return nil
}

func (s *fakeHistoryStore) ListTriggers(_ context.Context, ruleID types.ID, limit int) ([]*TriggerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*TriggerRecord
	for _, r := range s.records {
		if r.RuleID == ruleID {
			out = append(out, r)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *fakeHistoryStore) count(ruleID types.ID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.records {
		if r.RuleID == ruleID {
			n++
		}
	}
	return n
}

type fakeEventStore struct {
	total       int64
	errors      int64
	toolCalls   int64
	windowCost  float64
	sessionCost float64
	dailyCost   float64
	recent      []*events.Event
}

func (s *fakeEventStore) CountEvents(_ context.Context, _ string, _ time.Time) (int64, error) {
	return s.total, nil
}

func (s *fakeEventStore) CountErrorEvents(_ context.Context, _ string, _ time.Time) (int64, error) {
	return s.errors, nil
}

func (s *fakeEventStore) CountToolCalls(_ context.Context, _ string, _ time.Time) (int64, error) {
	return s.toolCalls, nil
}

func (s *fakeEventStore) WindowCost(_ context.Context, _ string, _ time.Time) (float64, error) {
	return s.windowCost, nil
}

func (s *fakeEventStore) SessionCost(_ context.Context, _ string) (float64, error) {
	return s.sessionCost, nil
}

func (s *fakeEventStore) DailyCost(_ context.Context, _ string, _ time.Time) (float64, error) {
	return s.dailyCost, nil
}

func (s *fakeEventStore) RecentEvents(_ context.Context, _ string, _ time.Time, limit int) ([]*events.Event, error) {
	if limit > 0 && len(s.recent) > limit {
		return s.recent[:limit], nil
	}
	return s.recent, nil
}

type fakeAgentStore struct {
	mu     sync.Mutex
	agents map[string]*Agent
}

func newFakeAgentStore(ids ...string) *fakeAgentStore {
	s := &fakeAgentStore{agents: make(map[string]*Agent)}
	for _, id := range ids {
		s.agents[id] = &Agent{ID: id}
	}
	return s
}

func (s *fakeAgentStore) GetAgent(_ context.Context, agentID string) (*Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[agentID]
	if !ok {
		return nil, types.NewError(types.AGENT_NOT_FOUND, "agent not found")
	}
	copied := *a
	return &copied, nil
}

func (s *fakeAgentStore) PauseAgent(_ context.Context, agentID, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[agentID]
	if !ok {
		return types.NewError(types.AGENT_NOT_FOUND, "agent not found")
	}
	a.PausedAt = &at
	a.PauseReason = reason
	return nil
}

func (s *fakeAgentStore) SetModelOverride(_ context.Context, agentID, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[agentID]
	if !ok {
		return types.NewError(types.AGENT_NOT_FOUND, "agent not found")
	}
	a.ModelOverride = model
	return nil
}
