// Package nostr receives trigger messages as encrypted Nostr DMs and sends
// outcome reports back the same way.
package nostr

import (
	"context"
	"fmt"

	gonostr "github.com/nbd-wtf/go-nostr"

	"github.com/cybermolt/reply-runner/internal/core"
	client "github.com/cybermolt/reply-runner/internal/nostrclient"
	"github.com/cybermolt/reply-runner/internal/store"
	"github.com/cybermolt/reply-runner/internal/transports"
)

// Config holds the parameters needed to run the Nostr transport.
type Config struct {
	Relays         []string
	PrivateKey     string
	AllowedPubkeys []string
}

// Transport implements core.Transport for Nostr DMs.
type Transport struct {
	cfg    Config
	client *client.Client
	id     string
}

// New creates a Nostr transport.
func New(cfg Config, st *store.Store) (*Transport, error) {
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("nostr private key required")
	}
	pub, err := gonostr.GetPublicKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("derive pubkey: %w", err)
	}
	c := client.New(cfg.PrivateKey, pub, cfg.Relays, cfg.AllowedPubkeys, st)
	return &Transport{cfg: cfg, client: c, id: "nostr"}, nil
}

// ID returns the transport identifier.
func (t *Transport) ID() string { return t.id }

// Start subscribes to Nostr DMs and pushes inbound trigger messages.
func (t *Transport) Start(ctx context.Context, inbound chan<- core.InboundMessage) error {
	handler := func(msgCtx context.Context, msg client.IncomingMessage) {
		select {
		case inbound <- core.InboundMessage{
			Transport: t.id,
			Sender:    msg.SenderPubKey,
			Text:      msg.Plaintext,
			ThreadID:  msg.SenderPubKey,
		}:
		case <-msgCtx.Done():
		}
	}
	return t.client.Listen(ctx, handler)
}

// Send delivers an outcome report back to the sender.
func (t *Transport) Send(ctx context.Context, msg core.OutboundMessage) error {
	if msg.Recipient == "" {
		return fmt.Errorf("nostr recipient missing")
	}
	return t.client.SendReply(ctx, msg.Recipient, msg.Text)
}

// Register wires the transport into the registry with a store handle.
func Register(st *store.Store) {
	transports.MustRegister("nostr", func(cfg any) (core.Transport, error) {
		c, ok := cfg.(Config)
		if !ok {
			return nil, fmt.Errorf("nostr: unexpected config type %T", cfg)
		}
		return New(c, st)
	})
}
