package redact

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/loreguard-ai/loreguard/internal/scanner"
)

// Pipeline executes the redaction layers strictly in order. After each
// non-blocking layer its output becomes the next layer's input; on the
// first block the chain stops immediately and later layers do not run.
type Pipeline struct {
	layers []Layer
	tracer trace.Tracer
	logger *slog.Logger
}

// Config assembles the canonical six-layer pipeline.
type Config struct {
	// Secrets configures the secrets detection layer's scanner.
	Secrets scanner.Config

	// PII configures the PII detection layer's scanner.
	PII scanner.Config

	// AllowedDomains are public domains whose URLs survive scrubbing.
	// Empty uses DefaultAllowedDomains.
	AllowedDomains []string

	// ReviewEnabled turns on the human review gate.
	ReviewEnabled bool

	// ReviewStore receives diverted entries. Required when ReviewEnabled;
	// a nil store with review enabled fails closed.
	ReviewStore ReviewStore
}

// NewPipeline builds the canonical chain: secrets(100), pii(200),
// urlpath(300), deidentify(400), denylist(500), review(600).
func NewPipeline(cfg Config) (*Pipeline, error) {
	secretsLayer, err := NewSecretsLayer(cfg.Secrets)
	if err != nil {
		return nil, err
	}
	piiLayer, err := NewPIILayer(cfg.PII)
	if err != nil {
		return nil, err
	}

	layers := []Layer{
		secretsLayer,
		piiLayer,
		NewURLPathLayer(cfg.AllowedDomains),
		NewDeidentifyLayer(),
		NewDenyListLayer(),
		NewReviewLayer(cfg.ReviewEnabled, cfg.ReviewStore),
	}

	return &Pipeline{
		layers: layers,
		logger: slog.Default(),
	}, nil
}

// NewPipelineWithLayers builds a pipeline from an explicit layer list, in
// the given order. Used by tests and by callers composing partial chains.
func NewPipelineWithLayers(layers ...Layer) *Pipeline {
	return &Pipeline{
		layers: layers,
		logger: slog.Default(),
	}
}

// WithTracer sets the OpenTelemetry tracer for per-layer spans.
func (p *Pipeline) WithTracer(tracer trace.Tracer) *Pipeline {
	p.tracer = tracer
	return p
}

// WithLogger sets the logger for the pipeline.
func (p *Pipeline) WithLogger(logger *slog.Logger) *Pipeline {
	p.logger = logger
	return p
}

// Layers returns a copy of the layer chain.
func (p *Pipeline) Layers() []Layer {
	out := make([]Layer, len(p.layers))
	copy(out, p.layers)
	return out
}

// Process runs text through the layer chain.
//
// Execution rule: layers run strictly in order; each non-blocking layer's
// output feeds the next layer. On the first Blocked result the pipeline
// stops and returns the ORIGINAL input text together with the findings
// accumulated so far: a blocked item never exposes its partially redacted
// form, because earlier layers' redaction may be incomplete for content
// the blocking layer rejects outright.
func (p *Pipeline) Process(ctx context.Context, text string, rctx Context) Result {
	rctx.original = text
	current := text
	var findings []Finding

	for _, layer := range p.layers {
		var span trace.Span
		if p.tracer != nil {
			ctx, span = p.tracer.Start(ctx, "redact.layer",
				trace.WithAttributes(
					attribute.String("redact.layer", layer.Name()),
					attribute.String("redact.tenant_id", rctx.TenantID),
				),
			)
		}

		rctx.accumulated = findings
		result := layer.Apply(ctx, current, &rctx)

		if span != nil {
			span.SetAttributes(
				attribute.Bool("redact.blocked", result.Blocked),
				attribute.Int("redact.findings", len(result.Findings)),
			)
			span.End()
		}

		findings = append(findings, result.Findings...)

		if result.Blocked {
			p.logger.InfoContext(ctx, "redaction blocked",
				"layer", layer.Name(),
				"tenant_id", rctx.TenantID,
				"reason", result.BlockReason,
			)
			return Result{
				Output:      text,
				Findings:    findings,
				Blocked:     true,
				BlockReason: result.BlockReason,
				BlockedBy:   layer.Name(),
			}
		}

		if len(result.Findings) > 0 {
			p.logger.DebugContext(ctx, "redaction layer applied",
				"layer", layer.Name(),
				"tenant_id", rctx.TenantID,
				"findings", len(result.Findings),
			)
		}
		current = result.Output
	}

	return Result{
		Output:   current,
		Findings: findings,
	}
}
