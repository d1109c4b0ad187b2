package trigger

import "testing"

func TestMatchCaseInsensitive(t *testing.T) {
	m := New(nil)

	cases := []struct {
		msg  string
		want bool
	}{
		{"please reply to this tweet for me", true},
		{"Reply To This Tweet", true},
		{"REPLY TWEET now", true},
		{"reply to this twee", false},
		{"just chatting about tweets", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := m.Match(tc.msg); got != tc.want {
			t.Errorf("Match(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

func TestMatchCustomPhrases(t *testing.T) {
	m := New([]string{"  Do The Thing  ", ""})
	if !m.Match("ok do the thing please") {
		t.Fatal("custom phrase should match case-insensitively")
	}
	if m.Match("reply to this tweet") {
		t.Fatal("default phrases should not apply when custom ones are set")
	}
}

func TestExtractPayloadFencedBlock(t *testing.T) {
	msg := "reply to this tweet\n```json\n{\"author\": \"alice\", \"tweet\": \"hi\"}\n```"
	got, ok := New(nil).ExtractPayload(msg)
	if !ok {
		t.Fatal("expected payload")
	}
	if got != `{"author": "alice", "tweet": "hi"}` {
		t.Fatalf("unexpected payload: %q", got)
	}
}

func TestExtractPayloadFencedBlockNoLanguageTag(t *testing.T) {
	msg := "reply tweet\n```\n{\"author\":\"bob\",\"tweet\":\"x\"}\n```"
	got, ok := New(nil).ExtractPayload(msg)
	if !ok || got != `{"author":"bob","tweet":"x"}` {
		t.Fatalf("got %q, %v", got, ok)
	}
}

func TestExtractPayloadInlineObject(t *testing.T) {
	msg := `reply to this tweet {"author": "carol", "tweet": "some {nested} text"}`
	got, ok := New(nil).ExtractPayload(msg)
	if !ok {
		t.Fatal("expected inline payload")
	}
	if got != `{"author": "carol", "tweet": "some {nested} text"}` {
		t.Fatalf("unexpected payload: %q", got)
	}
}

func TestExtractPayloadBracesInsideStrings(t *testing.T) {
	msg := `reply tweet {"author": "dave", "tweet": "closing \" brace } in string"}`
	got, ok := New(nil).ExtractPayload(msg)
	if !ok {
		t.Fatalf("expected payload, message: %q", msg)
	}
	if got[0] != '{' || got[len(got)-1] != '}' {
		t.Fatalf("payload not a balanced object: %q", got)
	}
}

func TestExtractPayloadSkipsInvalidBlocks(t *testing.T) {
	msg := "reply tweet\n```\nnot json at all\n```\n```json\n{\"author\":\"eve\",\"tweet\":\"y\"}\n```"
	got, ok := New(nil).ExtractPayload(msg)
	if !ok || got != `{"author":"eve","tweet":"y"}` {
		t.Fatalf("got %q, %v", got, ok)
	}
}

func TestExtractPayloadAbsent(t *testing.T) {
	for _, msg := range []string{
		"reply to this tweet but no payload here",
		"reply tweet {not valid json}",
		"reply tweet ```\nplain text\n```",
	} {
		if got, ok := New(nil).ExtractPayload(msg); ok {
			t.Errorf("ExtractPayload(%q) = %q, want none", msg, got)
		}
	}
}
