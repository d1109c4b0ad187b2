package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cybermolt/reply-runner/internal/core"
	"github.com/cybermolt/reply-runner/internal/request"
	"github.com/cybermolt/reply-runner/internal/trigger"
)

type stubGenerator struct {
	text  string
	err   error
	calls int
}

func (g *stubGenerator) Generate(ctx context.Context, req core.ReplyRequest) (core.GenerationResult, error) {
	g.calls++
	if g.err != nil {
		return core.GenerationResult{}, g.err
	}
	return core.GenerationResult{Text: g.text}, nil
}

type stubPublisher struct {
	postedID string
	err      error
	calls    int
	lastText string
	lastID   string
}

func (p *stubPublisher) Publish(ctx context.Context, text, tweetID string) (core.PublishResult, error) {
	p.calls++
	p.lastText = text
	p.lastID = tweetID
	if p.err != nil {
		return core.PublishResult{}, p.err
	}
	return core.PublishResult{PostedID: p.postedID}, nil
}

type memHistory struct {
	records []core.RunRecord
}

func (h *memHistory) AppendRun(rec core.RunRecord) error {
	h.records = append(h.records, rec)
	return nil
}

func newTestPipeline(gen core.Generator, pub core.Publisher, opts ...core.PipelineOption) *core.Pipeline {
	return core.NewPipeline(trigger.New(nil), request.New(""), gen, pub, opts...)
}

func TestRunGenerateOnly(t *testing.T) {
	gen := &stubGenerator{text: "the reply"}
	pub := &stubPublisher{postedID: "999"}
	p := newTestPipeline(gen, pub)

	msg := `reply to this tweet {"author": "alice", "tweet": "gm"}`
	o := p.Run(context.Background(), msg)

	if o.Kind != core.OutcomeGenerated {
		t.Fatalf("kind = %s, want generated", o.Kind)
	}
	if o.Text != "the reply" {
		t.Fatalf("text = %q", o.Text)
	}
	if pub.calls != 0 {
		t.Fatal("publisher must not be called when reply_directly is false")
	}
	if gen.calls != 1 {
		t.Fatalf("generator called %d times, want 1", gen.calls)
	}
}

func TestRunPublished(t *testing.T) {
	gen := &stubGenerator{text: "posted text"}
	pub := &stubPublisher{postedID: "42"}
	p := newTestPipeline(gen, pub)

	msg := "reply to this tweet\n```json\n" +
		`{"author": "bob", "tweet": "hi", "tweet_id": "1234", "reply_directly": true}` +
		"\n```"
	o := p.Run(context.Background(), msg)

	if o.Kind != core.OutcomePublished {
		t.Fatalf("kind = %s, want published (err=%v)", o.Kind, o.Err)
	}
	if o.PostedID != "42" || o.Text != "posted text" {
		t.Fatalf("unexpected outcome: %+v", o)
	}
	if pub.lastID != "1234" || pub.lastText != "posted text" {
		t.Fatalf("publisher got text=%q id=%q", pub.lastText, pub.lastID)
	}
}

func TestRunPublishFailurePreservesText(t *testing.T) {
	gen := &stubGenerator{text: "still good text"}
	pub := &stubPublisher{err: &core.PublishError{Detail: "status 401: Unauthorized"}}
	p := newTestPipeline(gen, pub)

	msg := `reply tweet {"author": "c", "tweet": "t", "tweet_id": "5", "reply_directly": true}`
	o := p.Run(context.Background(), msg)

	if o.Kind != core.OutcomeFailed || o.Stage != core.StagePublish {
		t.Fatalf("unexpected outcome: %+v", o)
	}
	if o.Text != "still good text" {
		t.Fatal("generated text must survive a publish failure")
	}
	if pub.calls != 1 {
		t.Fatalf("publisher called %d times, want exactly 1 (no retries)", pub.calls)
	}
}

func TestRunNotApplicable(t *testing.T) {
	gen := &stubGenerator{text: "x"}
	pub := &stubPublisher{}
	hist := &memHistory{}
	p := newTestPipeline(gen, pub, core.WithHistory(hist))

	o := p.Run(context.Background(), "just a normal message about the weather")

	if o.Kind != core.OutcomeNotApplicable {
		t.Fatalf("kind = %s, want not_applicable", o.Kind)
	}
	if gen.calls != 0 || pub.calls != 0 {
		t.Fatal("no backend may be touched without a trigger match")
	}
	if len(hist.records) != 0 {
		t.Fatal("not_applicable runs are not recorded")
	}
}

func TestRunTriggerWithoutPayload(t *testing.T) {
	gen := &stubGenerator{text: "x"}
	p := newTestPipeline(gen, nil)

	o := p.Run(context.Background(), "reply to this tweet please, details later")

	if o.Kind != core.OutcomeFailed || o.Stage != core.StageValidate {
		t.Fatalf("unexpected outcome: %+v", o)
	}
	var verr *core.ValidationError
	if !errors.As(o.Err, &verr) || verr.Kind != core.MissingField || verr.Field != "payload" {
		t.Fatalf("expected missing_field payload, got %v", o.Err)
	}
	if gen.calls != 0 {
		t.Fatal("generator must not run on a validation failure")
	}
}

func TestRunValidationFailure(t *testing.T) {
	gen := &stubGenerator{text: "x"}
	p := newTestPipeline(gen, nil)

	o := p.Run(context.Background(), `reply tweet {"tweet": "no author here"}`)

	if o.Kind != core.OutcomeFailed || o.Stage != core.StageValidate {
		t.Fatalf("unexpected outcome: %+v", o)
	}
	if gen.calls != 0 {
		t.Fatal("generator must not run on a validation failure")
	}
}

func TestRunGenerationFailureStopsPipeline(t *testing.T) {
	gen := &stubGenerator{err: &core.GenerationError{Kind: core.GenerationBackend, Detail: "timeout"}}
	pub := &stubPublisher{}
	p := newTestPipeline(gen, pub)

	msg := `reply tweet {"author": "a", "tweet": "t", "tweet_id": "1", "reply_directly": true}`
	o := p.Run(context.Background(), msg)

	if o.Kind != core.OutcomeFailed || o.Stage != core.StageGenerate {
		t.Fatalf("unexpected outcome: %+v", o)
	}
	if pub.calls != 0 {
		t.Fatal("publisher must not run after a generation failure")
	}
	if gen.calls != 1 {
		t.Fatalf("generator called %d times, want exactly 1", gen.calls)
	}
}

func TestRunNilPublisher(t *testing.T) {
	gen := &stubGenerator{text: "generated anyway"}
	p := newTestPipeline(gen, nil)

	msg := `reply tweet {"author": "a", "tweet": "t", "tweet_id": "1", "reply_directly": true}`
	o := p.Run(context.Background(), msg)

	if o.Kind != core.OutcomeFailed || o.Stage != core.StagePublish {
		t.Fatalf("unexpected outcome: %+v", o)
	}
	if o.Text != "generated anyway" {
		t.Fatal("text must be preserved when no publisher is configured")
	}
	if !strings.Contains(o.Err.Error(), "no publisher configured") {
		t.Fatalf("unexpected error: %v", o.Err)
	}
}

func TestRunRecordsHistory(t *testing.T) {
	gen := &stubGenerator{text: "ok"}
	hist := &memHistory{}
	p := newTestPipeline(gen, nil, core.WithHistory(hist))

	p.Run(context.Background(), `reply tweet {"author": "alice", "tweet": "gm"}`)

	if len(hist.records) != 1 {
		t.Fatalf("got %d history records, want 1", len(hist.records))
	}
	rec := hist.records[0]
	if rec.Kind != core.OutcomeGenerated || rec.Author != "alice" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.At.IsZero() {
		t.Fatal("record timestamp not set")
	}
}

func TestErrKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&core.ValidationError{Kind: core.MissingField, Field: "author"}, "missing_field"},
		{&core.ValidationError{Kind: core.InconsistentRequest}, "inconsistent_request"},
		{&core.GenerationError{Kind: core.GenerationBackend}, "generation_backend"},
		{&core.GenerationError{Kind: core.LengthOrContent}, "length_or_content"},
		{&core.PublishError{Detail: "x"}, "publish"},
		{errors.New("boom"), "internal"},
	}
	for _, tc := range cases {
		if got := core.ErrKind(tc.err); got != tc.want {
			t.Errorf("ErrKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
