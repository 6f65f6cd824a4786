// Package events defines the loreguard event model and the in-process event
// bus that connects the ingestion path to the guardrail engine and to
// downstream subscribers (SSE bridges, notification routers).
//
// Every event an agent produces is published on the bus exactly once. The
// guardrail engine consumes events from a single subscription and evaluates
// rules sequentially, which is what keeps cooldown timing correct: no two
// evaluations of the same rule ever interleave.
package events
