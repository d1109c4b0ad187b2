// Package generate calls the generation backend once per run and enforces the
// configured style policy on what comes back.
package generate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cybermolt/reply-runner/internal/core"
)

// Style is the configured reply policy. It is plain data; changing tone,
// bounds or trailer requires no code change.
type Style struct {
	Directive          string
	MinChars           int
	MaxChars           int
	RequiredTrailer    string
	Hashtags           []string
	DisallowedPrefixes []string
	// TruncateOnOverflow switches the length-violation policy from
	// reject (default) to rune-safe truncation.
	TruncateOnOverflow bool
}

func (s *Style) defaults() {
	if s.MinChars == 0 {
		s.MinChars = 80
	}
	if s.MaxChars == 0 {
		s.MaxChars = 280
	}
}

// Generator implements core.Generator over an LLMClient.
type Generator struct {
	client  LLMClient
	style   Style
	timeout time.Duration
}

// New constructs a Generator. A zero timeout leaves the caller's context in charge.
func New(client LLMClient, style Style, timeout time.Duration) *Generator {
	style.defaults()
	return &Generator{client: client, style: style, timeout: timeout}
}

// Generate invokes the backend exactly once and validates the reply against
// the style policy. Backend failures of any shape (timeout, non-2xx,
// malformed body) come back as GenerationBackend errors; rule violations as
// LengthOrContent. A failed attempt is terminal, never retried.
func (g *Generator) Generate(ctx context.Context, req core.ReplyRequest) (core.GenerationResult, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	prompt := BuildPrompt(req.Author, req.TweetText, g.style)
	text, err := g.client.Complete(ctx, req.Model, prompt)
	if err != nil {
		return core.GenerationResult{}, &core.GenerationError{Kind: core.GenerationBackend, Detail: err.Error()}
	}

	text, err = g.enforceStyle(strings.TrimSpace(text))
	if err != nil {
		return core.GenerationResult{}, err
	}
	return core.GenerationResult{Text: text}, nil
}

func (g *Generator) enforceStyle(text string) (string, error) {
	if text == "" {
		return "", &core.GenerationError{Kind: core.LengthOrContent, Detail: "backend returned empty reply"}
	}

	lower := strings.ToLower(text)
	for _, p := range g.style.DisallowedPrefixes {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.HasPrefix(lower, p) {
			return "", &core.GenerationError{Kind: core.LengthOrContent, Detail: "reply begins with disallowed token " + p}
		}
	}

	runes := []rune(text)
	if len(runes) > g.style.MaxChars {
		if !g.style.TruncateOnOverflow {
			return "", &core.GenerationError{Kind: core.LengthOrContent, Detail: overflowDetail(len(runes), g.style.MaxChars)}
		}
		text = strings.TrimSpace(string(runes[:g.style.MaxChars]))
		runes = []rune(text)
	}
	if len(runes) < g.style.MinChars {
		return "", &core.GenerationError{Kind: core.LengthOrContent, Detail: underflowDetail(len(runes), g.style.MinChars)}
	}

	if t := g.style.RequiredTrailer; t != "" && !strings.Contains(text, t) {
		return "", &core.GenerationError{Kind: core.LengthOrContent, Detail: "reply is missing the required trailer"}
	}
	return text, nil
}

func overflowDetail(got, max int) string {
	return fmt.Sprintf("reply length %d exceeds maximum %d", got, max)
}

func underflowDetail(got, min int) string {
	return fmt.Sprintf("reply length %d is below minimum %d", got, min)
}
