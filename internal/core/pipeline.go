package core

import (
	"context"
	"time"

	"github.com/cybermolt/reply-runner/internal/metrics"
)

// Pipeline wires the matcher, validator, generator and publisher into the
// single Run entry point. Every field is read-only after construction, so one
// Pipeline value can serve any number of independent invocations.
type Pipeline struct {
	matcher   Matcher
	validator Validator
	generator Generator
	publisher Publisher

	history HistoryStore
	clock   func() time.Time
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithHistory wires a run-history sink. Recording is best effort and never
// affects the Outcome.
func WithHistory(h HistoryStore) PipelineOption {
	return func(p *Pipeline) { p.history = h }
}

// WithClock overrides the timestamp source for history records.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.clock = now }
}

// NewPipeline constructs a Pipeline. The publisher may be nil when direct
// replies are not configured; a request asking for one then fails at the
// publish stage.
func NewPipeline(m Matcher, v Validator, g Generator, pub Publisher, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		matcher:   m,
		validator: v,
		generator: g,
		publisher: pub,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one trigger-to-outcome pass over a raw message. It performs no
// retries: each stage gets exactly one attempt, and the first failure is
// terminal for the run. Messages without a trigger phrase produce a
// NotApplicable outcome and touch no backend.
func (p *Pipeline) Run(ctx context.Context, raw string) Outcome {
	if !p.matcher.Match(raw) {
		return p.finish(NotApplicable())
	}

	payload, ok := p.matcher.ExtractPayload(raw)
	if !ok {
		// Trigger matched but no parseable payload: a validation failure,
		// never a silent no-op.
		return p.finish(Failed(nil, StageValidate, &ValidationError{Kind: MissingField, Field: "payload"}))
	}

	req, err := p.validator.Parse(payload)
	if err != nil {
		return p.finish(Failed(nil, StageValidate, err))
	}

	gen, err := p.generator.Generate(ctx, req)
	if err != nil {
		metrics.IncGenerationError()
		return p.finish(Failed(&req, StageGenerate, err))
	}

	if !req.ReplyDirectly {
		return p.finish(Generated(req, gen.Text))
	}

	if p.publisher == nil {
		return p.finish(FailedWithText(&req, StagePublish, &PublishError{Detail: "no publisher configured"}, gen.Text))
	}
	pub, err := p.publisher.Publish(ctx, gen.Text, req.TweetID)
	if err != nil {
		metrics.IncPublishError()
		return p.finish(FailedWithText(&req, StagePublish, err, gen.Text))
	}

	return p.finish(Published(req, gen.Text, pub.PostedID))
}

func (p *Pipeline) finish(o Outcome) Outcome {
	metrics.IncRun(string(o.Kind))
	if p.history != nil && o.Kind != OutcomeNotApplicable {
		rec := RunRecord{
			At:       p.clock().UTC(),
			Kind:     o.Kind,
			Stage:    o.Stage,
			ErrKind:  ErrKind(o.Err),
			PostedID: o.PostedID,
		}
		if o.Request != nil {
			rec.Author = o.Request.Author
		}
		_ = p.history.AppendRun(rec)
	}
	return o
}
