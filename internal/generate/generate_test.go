package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cybermolt/reply-runner/internal/core"
)

const trailer = "BSC: 0x69cd21CEAFDF0aC0859Af8Ff2a3eBe0B2025db10"

func testStyle() Style {
	return Style{MinChars: 80, MaxChars: 280, RequiredTrailer: trailer}
}

func validReply() string {
	return "@alice great point about onchain giving, transparency is what makes it work. " + trailer
}

func req() core.ReplyRequest {
	return core.ReplyRequest{Author: "alice", TweetText: "charity on chain", Model: "qwen-max"}
}

func TestGenerateSuccess(t *testing.T) {
	mock := &MockLLM{Reply: validReply()}
	g := New(mock, testStyle(), 0)

	res, err := g.Generate(context.Background(), req())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != validReply() {
		t.Fatalf("unexpected text: %q", res.Text)
	}
	if mock.Calls != 1 {
		t.Fatalf("backend called %d times, want 1", mock.Calls)
	}
}

func TestGenerateBackendError(t *testing.T) {
	mock := &MockLLM{Err: errors.New("connection refused")}
	g := New(mock, testStyle(), 0)

	_, err := g.Generate(context.Background(), req())
	var gerr *core.GenerationError
	if !errors.As(err, &gerr) || gerr.Kind != core.GenerationBackend {
		t.Fatalf("expected generation_backend error, got %v", err)
	}
	if mock.Calls != 1 {
		t.Fatalf("backend called %d times, want exactly 1 (no retries)", mock.Calls)
	}
}

func TestGenerateEmptyReply(t *testing.T) {
	g := New(&MockLLM{Reply: "   \n  "}, testStyle(), 0)

	_, err := g.Generate(context.Background(), req())
	var gerr *core.GenerationError
	if !errors.As(err, &gerr) || gerr.Kind != core.LengthOrContent {
		t.Fatalf("expected length_or_content error, got %v", err)
	}
}

func TestGenerateOverflowRejected(t *testing.T) {
	long := strings.Repeat("x", 300)
	g := New(&MockLLM{Reply: long}, testStyle(), 0)

	_, err := g.Generate(context.Background(), req())
	var gerr *core.GenerationError
	if !errors.As(err, &gerr) || gerr.Kind != core.LengthOrContent {
		t.Fatalf("expected length_or_content error, got %v", err)
	}
}

func TestGenerateOverflowTruncated(t *testing.T) {
	style := Style{MinChars: 80, MaxChars: 280, TruncateOnOverflow: true}
	long := strings.Repeat("y", 300)
	g := New(&MockLLM{Reply: long}, style, 0)

	res, err := g.Generate(context.Background(), req())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len([]rune(res.Text)); n > 280 || n < 80 {
		t.Fatalf("truncated length %d outside bounds", n)
	}
}

func TestGenerateTruncationIsRuneSafe(t *testing.T) {
	style := Style{MinChars: 1, MaxChars: 100, TruncateOnOverflow: true}
	g := New(&MockLLM{Reply: strings.Repeat("汉", 150)}, style, 0)

	res, err := g.Generate(context.Background(), req())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len([]rune(res.Text)) != 100 {
		t.Fatalf("rune length = %d, want 100", len([]rune(res.Text)))
	}
	if !strings.HasPrefix(res.Text, "汉") || !strings.HasSuffix(res.Text, "汉") {
		t.Fatalf("multi-byte runes were split: %q", res.Text[:12])
	}
}

func TestGenerateUnderflowRejected(t *testing.T) {
	g := New(&MockLLM{Reply: "too short. " + trailer}, Style{MinChars: 120, MaxChars: 280, RequiredTrailer: trailer}, 0)

	_, err := g.Generate(context.Background(), req())
	var gerr *core.GenerationError
	if !errors.As(err, &gerr) || gerr.Kind != core.LengthOrContent {
		t.Fatalf("expected length_or_content error, got %v", err)
	}
}

func TestGenerateMissingTrailer(t *testing.T) {
	g := New(&MockLLM{Reply: strings.Repeat("fine reply ", 10)}, testStyle(), 0)

	_, err := g.Generate(context.Background(), req())
	var gerr *core.GenerationError
	if !errors.As(err, &gerr) || gerr.Kind != core.LengthOrContent {
		t.Fatalf("expected length_or_content error, got %v", err)
	}
	if !strings.Contains(gerr.Detail, "trailer") {
		t.Fatalf("detail should mention the trailer: %q", gerr.Detail)
	}
}

func TestGenerateDisallowedPrefix(t *testing.T) {
	style := testStyle()
	style.DisallowedPrefixes = []string{"as an ai"}
	g := New(&MockLLM{Reply: "As an AI, I think this take is solid. " + trailer + strings.Repeat(" pad", 15)}, style, 0)

	_, err := g.Generate(context.Background(), req())
	var gerr *core.GenerationError
	if !errors.As(err, &gerr) || gerr.Kind != core.LengthOrContent {
		t.Fatalf("expected length_or_content error, got %v", err)
	}
}

func TestGenerateCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := &MockLLM{Reply: validReply()}
	g := New(mock, testStyle(), 0)
	_, err := g.Generate(ctx, req())
	var gerr *core.GenerationError
	if !errors.As(err, &gerr) || gerr.Kind != core.GenerationBackend {
		t.Fatalf("expected generation_backend error on canceled context, got %v", err)
	}
}

func TestBuildPrompt(t *testing.T) {
	style := Style{
		Directive:       "Warm, conversational tone.",
		MinChars:        80,
		MaxChars:        280,
		RequiredTrailer: trailer,
		Hashtags:        []string{"#Web3", "#CryptoCharity"},
	}
	p := BuildPrompt("alice", "original tweet body", style)

	if p.System == "" {
		t.Fatal("system prompt should not be empty")
	}
	for _, want := range []string{
		"Warm, conversational tone.",
		"@alice",
		"original tweet body",
		"80-280",
		trailer,
		"#Web3",
	} {
		if !strings.Contains(p.User, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(LLMSettings{}); err == nil {
		t.Fatal("expected error for missing api key")
	}
	if _, err := NewOpenAIClient(LLMSettings{APIKey: "k"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
