// Package request validates raw payloads into core.ReplyRequest values.
package request

import (
	"encoding/json"
	"strings"

	"github.com/cybermolt/reply-runner/internal/core"
)

// DefaultModel is used when the payload does not name a generation backend.
const DefaultModel = "qwen-max"

// Validator parses payloads. It is pure and total: no I/O, and well-formed but
// semantically odd input (huge tweet text, unknown extra keys) passes through
// untouched for the generator to deal with.
type Validator struct {
	defaultModel string
}

// New creates a Validator. An empty defaultModel falls back to DefaultModel.
func New(defaultModel string) *Validator {
	if defaultModel == "" {
		defaultModel = DefaultModel
	}
	return &Validator{defaultModel: defaultModel}
}

// payload mirrors the accepted wire fields. Alias keys are folded after
// unmarshalling; booleans arrive as json.RawMessage so the lenient truthy
// forms can be normalized explicitly.
type payload struct {
	Author         string          `json:"author"`
	Tweet          string          `json:"tweet"`
	TweetText      string          `json:"tweet_text"`
	TweetTextCamel string          `json:"tweetText"`
	TweetID        string          `json:"tweet_id"`
	TweetIDCamel   string          `json:"tweetId"`
	ReplyDirectly  json.RawMessage `json:"reply_directly"`
	ReplyCamel     json.RawMessage `json:"replyDirectly"`
	Model          string          `json:"model"`
}

// Parse produces a ReplyRequest or a *core.ValidationError. Parsing the same
// payload twice yields identical results.
func (v *Validator) Parse(raw string) (core.ReplyRequest, error) {
	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return core.ReplyRequest{}, &core.ValidationError{Kind: core.MissingField, Field: "payload"}
	}

	req := core.ReplyRequest{
		Author:        strings.TrimPrefix(strings.TrimSpace(p.Author), "@"),
		TweetText:     firstNonEmpty(p.Tweet, p.TweetText, p.TweetTextCamel),
		TweetID:       strings.TrimSpace(firstNonEmpty(p.TweetID, p.TweetIDCamel)),
		ReplyDirectly: truthy(firstRaw(p.ReplyDirectly, p.ReplyCamel)),
		Model:         strings.TrimSpace(p.Model),
	}
	if req.Model == "" {
		req.Model = v.defaultModel
	}

	if req.Author == "" {
		return core.ReplyRequest{}, &core.ValidationError{Kind: core.MissingField, Field: "author"}
	}
	if strings.TrimSpace(req.TweetText) == "" {
		return core.ReplyRequest{}, &core.ValidationError{Kind: core.MissingField, Field: "tweet"}
	}
	if req.ReplyDirectly && req.TweetID == "" {
		return core.ReplyRequest{}, &core.ValidationError{Kind: core.InconsistentRequest}
	}
	return req, nil
}

func firstNonEmpty(vals ...string) string {
	for _, s := range vals {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func firstRaw(vals ...json.RawMessage) json.RawMessage {
	for _, r := range vals {
		if len(r) > 0 {
			return r
		}
	}
	return nil
}

// truthy normalizes the lenient boolean forms: JSON true, or the strings
// "true"/"false" case-insensitively. Anything else (absent, null, numbers,
// other strings) resolves to false.
func truthy(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.EqualFold(strings.TrimSpace(s), "true")
	}
	return false
}
