package core

import (
	"context"
	"time"
)

// ReplyRequest is the validated unit of work: one tweet we were asked to reply to.
type ReplyRequest struct {
	Author        string `json:"author"`
	TweetText     string `json:"tweet_text"`
	TweetID       string `json:"tweet_id,omitempty"`
	ReplyDirectly bool   `json:"reply_directly"`
	Model         string `json:"model"`
}

// GenerationResult holds the reply text produced by the generation backend.
// It exists only for successful generations; failures are *GenerationError values.
type GenerationResult struct {
	Text string `json:"text"`
}

// PublishResult holds the id of the posted reply. Failures are *PublishError values.
type PublishResult struct {
	PostedID string `json:"posted_id"`
}

// OutcomeKind discriminates the terminal value of a pipeline run.
type OutcomeKind string

const (
	OutcomeNotApplicable OutcomeKind = "not_applicable"
	OutcomeGenerated     OutcomeKind = "generated"
	OutcomePublished     OutcomeKind = "published"
	OutcomeFailed        OutcomeKind = "failed"
)

// Outcome is the single terminal value of one pipeline run. It is constructed
// once and never mutated. Text survives a publish failure so the caller can
// post the reply manually.
type Outcome struct {
	Kind     OutcomeKind   `json:"kind"`
	Request  *ReplyRequest `json:"request,omitempty"`
	Text     string        `json:"text,omitempty"`
	PostedID string        `json:"posted_id,omitempty"`
	Stage    Stage         `json:"stage,omitempty"`
	Err      error         `json:"-"`
}

// NotApplicable marks a message that did not contain a trigger phrase.
func NotApplicable() Outcome {
	return Outcome{Kind: OutcomeNotApplicable}
}

// Generated marks a generate-only run.
func Generated(req ReplyRequest, text string) Outcome {
	return Outcome{Kind: OutcomeGenerated, Request: &req, Text: text}
}

// Published marks a run whose reply was posted.
func Published(req ReplyRequest, text, postedID string) Outcome {
	return Outcome{Kind: OutcomePublished, Request: &req, Text: text, PostedID: postedID}
}

// Failed marks a run terminated by the given stage. req may be nil when the
// failure happened before validation produced a request.
func Failed(req *ReplyRequest, stage Stage, err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Request: req, Stage: stage, Err: err}
}

// FailedWithText is Failed plus preserved generated text (publish failures).
func FailedWithText(req *ReplyRequest, stage Stage, err error, text string) Outcome {
	o := Failed(req, stage, err)
	o.Text = text
	return o
}

// Matcher decides whether a raw message activates the skill and carves out
// its embedded payload.
type Matcher interface {
	Match(msg string) bool
	ExtractPayload(msg string) (string, bool)
}

// Validator turns a raw payload into a ReplyRequest or a *ValidationError.
type Validator interface {
	Parse(payload string) (ReplyRequest, error)
}

// Generator produces reply text for a request. Errors are *GenerationError.
type Generator interface {
	Generate(ctx context.Context, req ReplyRequest) (GenerationResult, error)
}

// Publisher posts reply text under a target tweet id. Errors are *PublishError.
type Publisher interface {
	Publish(ctx context.Context, text, tweetID string) (PublishResult, error)
}

// RunRecord is the persisted trace of one run.
type RunRecord struct {
	At       time.Time   `json:"at"`
	Author   string      `json:"author,omitempty"`
	Kind     OutcomeKind `json:"kind"`
	Stage    Stage       `json:"stage,omitempty"`
	ErrKind  string      `json:"err_kind,omitempty"`
	PostedID string      `json:"posted_id,omitempty"`
}

// HistoryStore records finished runs.
type HistoryStore interface {
	AppendRun(rec RunRecord) error
}

// Transport moves trigger messages between an external system and the listener.
type Transport interface {
	// ID returns a stable identifier (e.g., "nostr-dm", "email-imap").
	ID() string
	// Start begins receiving inbound messages and pushing them into the provided channel.
	// It should return when ctx is canceled or a fatal error occurs.
	Start(ctx context.Context, inbound chan<- InboundMessage) error
	// Send delivers an outcome report back to the external system.
	Send(ctx context.Context, msg OutboundMessage) error
}

// InboundMessage represents a message entering the listener.
type InboundMessage struct {
	Transport string         `json:"transport"`
	Sender    string         `json:"sender"`
	Text      string         `json:"text"`
	ThreadID  string         `json:"thread_id"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// OutboundMessage represents a report leaving the listener.
type OutboundMessage struct {
	Transport string `json:"transport"`
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
	ThreadID  string `json:"thread_id"`
}
