// Package redact implements the ordered redaction pipeline that sanitizes
// lesson text before it leaves tenant boundaries. Six layers run in a fixed
// order; the first blocking layer stops the chain, and a blocked item is
// returned with its original text intact so an incomplete redaction can
// never leak.
package redact

import (
	"context"
	"time"

	"github.com/loreguard-ai/loreguard/internal/types"
)

// Canonical layer order. Gaps are reserved for future layers. The order
// value fixes the static chain construction; it is not inspected at runtime.
const (
	OrderSecrets    = 100
	OrderPII        = 200
	OrderURLPath    = 300
	OrderDeidentify = 400
	OrderDenyList   = 500
	OrderReview     = 600
)

// Context carries the per-item redaction context supplied by the sharing
// service.
type Context struct {
	// TenantID owns the content being shared. Required.
	TenantID string

	// AgentID produced the lesson, when known.
	AgentID string

	// LessonID identifies the lesson for review queue entries.
	LessonID types.ID

	// Category is the lesson category, recorded on findings for analytics.
	Category string

	// DenyListPatterns are tenant-configured deny rules: plain substrings
	// or "/pattern/flags" regex syntax.
	DenyListPatterns []string

	// KnownTenantTerms are tenant proper nouns and codenames to strip
	// during de-identification.
	KnownTenantTerms []string

	// Title and RedactedTitle let the review layer persist both forms of
	// the lesson title alongside the content it diverts.
	Title         string
	RedactedTitle string

	// original is the untouched pipeline input, captured by Process so the
	// review layer can preserve it for audit and appeal.
	original string

	// accumulated holds the findings of all layers run so far, maintained
	// by Process so the review layer can persist the full audit trail.
	accumulated []Finding
}

// Finding records one applied transformation. The ordered list across all
// layers forms the audit trail for a redaction run. Findings are immutable
// once created.
type Finding struct {
	Layer          string  `json:"layer"`
	Category       string  `json:"category"`
	OriginalLength int     `json:"original_length"`
	Replacement    string  `json:"replacement"`
	StartOffset    int     `json:"start_offset"`
	EndOffset      int     `json:"end_offset"`
	Confidence     float64 `json:"confidence"`
}

// LayerResult is a layer's contract. If Blocked, Output must equal the
// layer's input verbatim: content is either fully transformed or rejected
// untouched, never partially redacted then blocked.
type LayerResult struct {
	Output      string
	Findings    []Finding
	Blocked     bool
	BlockReason string
}

// Layer is one stage of the redaction chain.
type Layer interface {
	// Name identifies the layer in findings and logs.
	Name() string

	// Apply transforms input or blocks the item. It must not mutate rctx.
	Apply(ctx context.Context, input string, rctx *Context) LayerResult
}

// Result is the outcome of a full pipeline run. On block, Output is the
// ORIGINAL pipeline input: the intermediate redacted text from earlier
// layers is withheld because it may be incomplete for content the blocking
// layer considers too sensitive to share at all.
type Result struct {
	Output      string    `json:"output"`
	Findings    []Finding `json:"findings"`
	Blocked     bool      `json:"blocked"`
	BlockReason string    `json:"block_reason,omitempty"`
	BlockedBy   string    `json:"blocked_by,omitempty"`
}

// ReviewStatus is the lifecycle state of a review queue entry.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// IsValid checks if the ReviewStatus is a recognized value.
func (s ReviewStatus) IsValid() bool {
	switch s {
	case ReviewStatusPending, ReviewStatusApproved, ReviewStatusRejected:
		return true
	default:
		return false
	}
}

// ReviewTTL is how long a pending entry waits before it silently expires.
// Expiry is enforced by an external sweeper against ExpiresAt.
const ReviewTTL = 7 * 24 * time.Hour

// ReviewQueueEntry is created by the human review layer when it diverts a
// lesson to manual review.
type ReviewQueueEntry struct {
	ID                types.ID     `json:"id"`
	TenantID          string       `json:"tenant_id"`
	LessonID          types.ID     `json:"lesson_id"`
	OriginalTitle     string       `json:"original_title"`
	OriginalContent   string       `json:"original_content"`
	RedactedTitle     string       `json:"redacted_title"`
	RedactedContent   string       `json:"redacted_content"`
	RedactionFindings []Finding    `json:"redaction_findings"`
	Status            ReviewStatus `json:"status"`
	CreatedAt         time.Time    `json:"created_at"`
	ExpiresAt         time.Time    `json:"expires_at"`
}

// ReviewStore persists review queue entries. The canonical implementation
// lives in internal/database.
type ReviewStore interface {
	Enqueue(ctx context.Context, entry *ReviewQueueEntry) error
}
