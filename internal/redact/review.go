package redact

import (
	"context"
	"log/slog"
	"time"

	"github.com/loreguard-ai/loreguard/internal/types"
)

// ReviewLayer is the human review gate (order 600).
//
// Disabled: pass-through. Enabled without a queue store: fail closed and
// block, because human review must never be silently skipped. Enabled with
// a store: always block — this layer's purpose is to divert to manual
// review, never to auto-approve — and enqueue a pending entry whose ID is
// carried in the block reason ("pending_review:<id>") as a trackable
// reference.
type ReviewLayer struct {
	enabled bool
	store   ReviewStore
	logger  *slog.Logger
	now     func() time.Time
}

// NewReviewLayer creates the layer.
func NewReviewLayer(enabled bool, store ReviewStore) *ReviewLayer {
	return &ReviewLayer{
		enabled: enabled,
		store:   store,
		logger:  slog.Default(),
		now:     time.Now,
	}
}

// WithLogger sets the layer's logger.
func (l *ReviewLayer) WithLogger(logger *slog.Logger) *ReviewLayer {
	l.logger = logger
	return l
}

// Name identifies the layer.
func (l *ReviewLayer) Name() string { return "human_review" }

// Apply diverts the item to the review queue when enabled.
func (l *ReviewLayer) Apply(ctx context.Context, input string, rctx *Context) LayerResult {
	if !l.enabled {
		return LayerResult{Output: input}
	}

	if l.store == nil {
		return LayerResult{
			Output:      input,
			Blocked:     true,
			BlockReason: "human_review_unavailable",
		}
	}

	now := l.now()
	entry := &ReviewQueueEntry{
		ID:                types.NewID(),
		TenantID:          rctx.TenantID,
		LessonID:          rctx.LessonID,
		OriginalTitle:     rctx.Title,
		OriginalContent:   rctx.original,
		RedactedTitle:     rctx.RedactedTitle,
		RedactedContent:   input,
		RedactionFindings: rctx.accumulated,
		Status:            ReviewStatusPending,
		CreatedAt:         now,
		ExpiresAt:         now.Add(ReviewTTL),
	}

	if err := l.store.Enqueue(ctx, entry); err != nil {
		l.logger.ErrorContext(ctx, "review enqueue failed",
			"tenant_id", rctx.TenantID,
			"lesson_id", rctx.LessonID,
			"error", err,
		)
		return LayerResult{
			Output:      input,
			Blocked:     true,
			BlockReason: "review_enqueue_failed",
		}
	}

	return LayerResult{
		Output:      input,
		Blocked:     true,
		BlockReason: "pending_review:" + entry.ID.String(),
	}
}
