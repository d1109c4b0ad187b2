package report

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/cybermolt/reply-runner/internal/core"
)

// recordingHandler captures every record so tests can count log lines.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

func newTestReporter() (*Reporter, *recordingHandler) {
	h := &recordingHandler{}
	return New(slog.New(h)), h
}

func TestRenderNotApplicable(t *testing.T) {
	r, _ := newTestReporter()
	got := r.Render(core.NotApplicable())
	if !strings.Contains(got, "not applicable") {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestRenderGenerated(t *testing.T) {
	r, _ := newTestReporter()
	req := core.ReplyRequest{Author: "a", TweetText: "t"}
	if got := r.Render(core.Generated(req, "the reply")); got != "the reply" {
		t.Fatalf("generated render should be the bare text, got %q", got)
	}
}

func TestRenderPublished(t *testing.T) {
	r, _ := newTestReporter()
	req := core.ReplyRequest{Author: "a", TweetText: "t"}
	got := r.Render(core.Published(req, "posted text", "42"))
	if !strings.Contains(got, "42") || !strings.Contains(got, "posted text") {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestRenderPublishFailureIncludesText(t *testing.T) {
	r, _ := newTestReporter()
	req := core.ReplyRequest{Author: "a", TweetText: "t", TweetID: "1", ReplyDirectly: true}
	o := core.FailedWithText(&req, core.StagePublish, &core.PublishError{Detail: "status 403: Forbidden"}, "salvageable reply")

	got := r.Render(o)
	if !strings.Contains(got, "publish stage failed") {
		t.Fatalf("unexpected message: %q", got)
	}
	if !strings.Contains(got, "salvageable reply") {
		t.Fatal("render must hand back the generated text after a publish failure")
	}
}

func TestRecordQuietOnSuccess(t *testing.T) {
	r, h := newTestReporter()
	req := core.ReplyRequest{Author: "a", TweetText: "t"}

	r.Record(core.NotApplicable())
	r.Record(core.Generated(req, "text"))
	r.Record(core.Published(req, "text", "42"))

	if h.count() != 0 {
		t.Fatalf("successful outcomes wrote %d log records, want 0", h.count())
	}
}

func TestRecordExactlyOneLineOnFailure(t *testing.T) {
	r, h := newTestReporter()
	req := core.ReplyRequest{Author: "alice", TweetText: strings.Repeat("long tweet ", 30)}
	o := core.Failed(&req, core.StageGenerate, &core.GenerationError{Kind: core.GenerationBackend, Detail: "timeout"})

	r.Record(o)

	if h.count() != 1 {
		t.Fatalf("failure wrote %d log records, want exactly 1", h.count())
	}
	rec := h.records[0]
	var stage, errKind, tweet string
	rec.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "stage":
			stage = a.Value.String()
		case "error_kind":
			errKind = a.Value.String()
		case "tweet":
			tweet = a.Value.String()
		}
		return true
	})
	if stage != "generate" || errKind != "generation_backend" {
		t.Fatalf("record attrs stage=%q error_kind=%q", stage, errKind)
	}
	if len([]rune(tweet)) > contextChars+3 {
		t.Fatalf("tweet context not truncated: %d runes", len([]rune(tweet)))
	}
}

func TestRecordFailureWithoutRequest(t *testing.T) {
	r, h := newTestReporter()
	o := core.Failed(nil, core.StageValidate, errors.New("boom"))
	r.Record(o)
	if h.count() != 1 {
		t.Fatalf("got %d records, want 1", h.count())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	got := truncate(strings.Repeat("汉", 100), 10)
	if len([]rune(got)) != 13 || !strings.HasSuffix(got, "...") {
		t.Fatalf("got %q", got)
	}
}
