// Package publish posts generated replies through the X (Twitter) v2 API.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/cybermolt/reply-runner/internal/core"
)

// DefaultAPIBase is the X API v2 root.
const DefaultAPIBase = "https://api.twitter.com/2"

// Credentials is the OAuth1 user-context credential set.
type Credentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

func (c Credentials) complete() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != "" && c.AccessToken != "" && c.AccessTokenSecret != ""
}

// Client implements core.Publisher against the X API.
type Client struct {
	apiBase string
	http    *http.Client
}

// New builds a Client with an OAuth1-signing HTTP client. apiBase is
// overridable for tests; zero timeout defaults to 30s.
func New(creds Credentials, apiBase string, timeout time.Duration) (*Client, error) {
	if !creds.complete() {
		return nil, errors.New("twitter credentials incomplete: consumer key/secret and access token/secret are all required")
	}
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	cfg := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)
	httpClient := cfg.Client(context.Background(), token)
	httpClient.Timeout = timeout

	return &Client{apiBase: strings.TrimRight(apiBase, "/"), http: httpClient}, nil
}

type createTweetPayload struct {
	Text  string `json:"text"`
	Reply struct {
		InReplyToTweetID string `json:"in_reply_to_tweet_id"`
	} `json:"reply"`
}

type createTweetResp struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Publish posts text as a reply under tweetID. Exactly one attempt; any
// failure comes back as a *core.PublishError whose message carries the API
// error title and status, never credential material.
func (c *Client) Publish(ctx context.Context, text, tweetID string) (core.PublishResult, error) {
	if strings.TrimSpace(tweetID) == "" {
		return core.PublishResult{}, &core.PublishError{Detail: "empty target tweet id"}
	}

	var payload createTweetPayload
	payload.Text = text
	payload.Reply.InReplyToTweetID = tweetID
	body, err := json.Marshal(payload)
	if err != nil {
		return core.PublishResult{}, &core.PublishError{Detail: "encode request: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/tweets", bytes.NewReader(body))
	if err != nil {
		return core.PublishResult{}, &core.PublishError{Detail: "build request: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return core.PublishResult{}, &core.PublishError{Detail: "post tweet: " + err.Error()}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var parsed createTweetResp
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := parsed.Title
		if parsed.Detail != "" {
			detail = parsed.Detail
		}
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return core.PublishResult{}, &core.PublishError{Detail: fmt.Sprintf("status %d: %s", resp.StatusCode, detail)}
	}
	if parsed.Data.ID == "" {
		return core.PublishResult{}, &core.PublishError{Detail: "response missing created tweet id"}
	}
	return core.PublishResult{PostedID: parsed.Data.ID}, nil
}
