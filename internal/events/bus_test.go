package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreguard-ai/loreguard/internal/types"
)

func testEvent(eventType EventType, tenantID, agentID string) Event {
	return Event{
		ID:        types.NewID(),
		Type:      eventType,
		Timestamp: time.Now(),
		TenantID:  tenantID,
		AgentID:   agentID,
		Severity:  SeverityInfo,
	}
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cleanup := bus.Subscribe(context.Background(), Filter{}, 10)
	defer cleanup()

	event := testEvent(EventToolCall, "acme", "agent-1")
	require.NoError(t, bus.Publish(context.Background(), event))

	select {
	case received := <-ch:
		assert.Equal(t, event.ID, received.ID)
		assert.Equal(t, EventToolCall, received.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_FilterByType(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cleanup := bus.Subscribe(context.Background(), Filter{
		Types: []EventType{EventAlertTriggered},
	}, 10)
	defer cleanup()

	require.NoError(t, bus.Publish(context.Background(), testEvent(EventToolCall, "acme", "a")))
	require.NoError(t, bus.Publish(context.Background(), testEvent(EventAlertTriggered, "acme", "a")))

	select {
	case received := <-ch:
		assert.Equal(t, EventAlertTriggered, received.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for filtered event")
	}

	select {
	case extra := <-ch:
		t.Fatalf("unexpected second event: %v", extra.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_FilterByTenantAndAgent(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cleanup := bus.Subscribe(context.Background(), Filter{
		TenantID: "acme",
		AgentID:  "agent-1",
	}, 10)
	defer cleanup()

	require.NoError(t, bus.Publish(context.Background(), testEvent(EventToolCall, "other", "agent-1")))
	require.NoError(t, bus.Publish(context.Background(), testEvent(EventToolCall, "acme", "agent-2")))
	require.NoError(t, bus.Publish(context.Background(), testEvent(EventToolCall, "acme", "agent-1")))

	select {
	case received := <-ch:
		assert.Equal(t, "acme", received.TenantID)
		assert.Equal(t, "agent-1", received.AgentID)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestBus_SlowSubscriberDrops(t *testing.T) {
	var dropCount int
	bus := NewBus(WithErrorHandler(func(err error, ctx map[string]any) {
		dropCount++
	}))
	defer bus.Close()

	// Buffer of 1, never drained.
	_, cleanup := bus.Subscribe(context.Background(), Filter{}, 1)
	defer cleanup()

	require.NoError(t, bus.Publish(context.Background(), testEvent(EventToolCall, "acme", "a")))
	require.NoError(t, bus.Publish(context.Background(), testEvent(EventToolCall, "acme", "a")))
	require.NoError(t, bus.Publish(context.Background(), testEvent(EventToolCall, "acme", "a")))

	assert.Equal(t, 2, dropCount)
}

func TestBus_PublishAfterClose(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(context.Background(), testEvent(EventToolCall, "acme", "a"))
	assert.Error(t, err)

	// Close is idempotent.
	assert.NoError(t, bus.Close())
}

func TestBus_UnsubscribeRemovesSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	_, cleanup := bus.Subscribe(context.Background(), Filter{}, 10)
	assert.Equal(t, 1, bus.SubscriberCount())

	cleanup()
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestSeverity_IsError(t *testing.T) {
	assert.True(t, SeverityError.IsError())
	assert.True(t, SeverityCritical.IsError())
	assert.False(t, SeverityInfo.IsError())
	assert.False(t, SeverityWarning.IsError())
}
