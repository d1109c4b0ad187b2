// Package report turns pipeline outcomes into human-readable messages and the
// single failure log record per invocation.
package report

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/cybermolt/reply-runner/internal/core"
)

// contextChars bounds how much source text a failure record carries.
const contextChars = 80

// Reporter renders outcomes and records failures. Quiet-success policy:
// successful runs write zero log lines, failures exactly one. Credentials
// never reach the logger because they never enter an Outcome.
type Reporter struct {
	logger *slog.Logger
}

// New constructs a Reporter. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{logger: logger}
}

// Render produces the one human-readable message for an outcome.
func (r *Reporter) Render(o core.Outcome) string {
	switch o.Kind {
	case core.OutcomeNotApplicable:
		return "not applicable: no trigger phrase found"
	case core.OutcomeGenerated:
		return o.Text
	case core.OutcomePublished:
		return fmt.Sprintf("posted reply %s\n\n%s", o.PostedID, o.Text)
	case core.OutcomeFailed:
		msg := fmt.Sprintf("%s stage failed: %v", o.Stage, o.Err)
		if o.Text != "" {
			// Publish failed but the text is still good; hand it back for a
			// manual retry.
			msg += "\n\ngenerated text (not posted):\n" + o.Text
		}
		return msg
	default:
		return string(o.Kind)
	}
}

// Record writes at most one log record for the invocation, and only on failure.
func (r *Reporter) Record(o core.Outcome) {
	if o.Kind != core.OutcomeFailed {
		return
	}
	attrs := []any{
		slog.String("stage", string(o.Stage)),
		slog.String("error_kind", core.ErrKind(o.Err)),
		slog.String("error", fmt.Sprintf("%v", o.Err)),
	}
	if o.Request != nil {
		attrs = append(attrs,
			slog.String("author", o.Request.Author),
			slog.String("tweet", truncate(o.Request.TweetText, contextChars)),
		)
	}
	r.logger.Error("run failed", attrs...)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
