// Package trigger decides whether an incoming message activates the reply
// skill and carves the embedded payload out of it.
package trigger

import (
	"encoding/json"
	"strings"
)

// Matcher matches messages against a fixed set of trigger phrases.
type Matcher struct {
	phrases []string
}

// DefaultPhrases are the trigger phrases used when none are configured.
var DefaultPhrases = []string{"reply to this tweet", "reply tweet"}

// New creates a Matcher. Phrases are compared case-insensitively as plain
// substrings; empty phrases are dropped.
func New(phrases []string) *Matcher {
	if len(phrases) == 0 {
		phrases = DefaultPhrases
	}
	kept := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			kept = append(kept, p)
		}
	}
	return &Matcher{phrases: kept}
}

// Match reports whether msg contains at least one trigger phrase. Exactly one
// match attempt, no fallback strategies.
func (m *Matcher) Match(msg string) bool {
	lower := strings.ToLower(msg)
	for _, p := range m.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// ExtractPayload returns the raw text of the first embedded payload that is a
// syntactically valid JSON object: first any fenced code block, then an inline
// top-level {...} object for messages pasted without fences. The second value
// is false when no such payload exists; the caller must surface that as a
// validation failure, not a silent skip.
func (m *Matcher) ExtractPayload(msg string) (string, bool) {
	for _, block := range fencedBlocks(msg) {
		if isJSONObject(block) {
			return block, true
		}
	}
	if obj, ok := inlineObject(msg); ok {
		return obj, true
	}
	return "", false
}

// fencedBlocks returns the bodies of all ``` fenced blocks, language tags stripped.
func fencedBlocks(msg string) []string {
	var blocks []string
	rest := msg
	for {
		open := strings.Index(rest, "```")
		if open < 0 {
			return blocks
		}
		rest = rest[open+3:]
		closeIdx := strings.Index(rest, "```")
		if closeIdx < 0 {
			return blocks
		}
		body := rest[:closeIdx]
		rest = rest[closeIdx+3:]

		// Drop an optional language tag on the opening line.
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			first := strings.TrimSpace(body[:nl])
			if first != "" && !strings.ContainsAny(first, "{}") {
				body = body[nl+1:]
			}
		}
		body = strings.TrimSpace(body)
		if body != "" {
			blocks = append(blocks, body)
		}
	}
}

// inlineObject scans for the first balanced top-level {...} that parses as a
// JSON object.
func inlineObject(msg string) (string, bool) {
	for start := 0; start < len(msg); start++ {
		if msg[start] != '{' {
			continue
		}
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(msg); i++ {
			c := msg[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					candidate := msg[start : i+1]
					if isJSONObject(candidate) {
						return candidate, true
					}
					// Balanced but not valid JSON; keep scanning past it.
					start = i
					i = len(msg)
				}
			}
		}
	}
	return "", false
}

func isJSONObject(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var obj map[string]any
	return json.Unmarshal([]byte(s), &obj) == nil
}
