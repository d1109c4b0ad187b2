package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cybermolt/reply-runner/internal/metrics"
)

// OutcomeReporter renders outcomes for humans and records failures.
type OutcomeReporter interface {
	Render(o Outcome) string
	Record(o Outcome)
}

// Deduper suppresses redelivered messages: same sender and body inside the
// window trigger at most one run regardless of which transport delivered them.
type Deduper interface {
	RecentMessageSeen(sender, body string, window time.Duration) (bool, error)
}

// Listener runs the pipeline in watch mode: transports push trigger messages
// into one channel and each message gets a full, sequential pipeline run.
// Concurrent invocations never share state because the pipeline itself is
// stateless between runs.
type Listener struct {
	transports   []Transport
	transportMap map[string]Transport
	pipeline     *Pipeline
	reporter     OutcomeReporter
	logger       *slog.Logger

	runTimeout     time.Duration
	allowedSenders map[string]struct{}
	dedup          Deduper
	dedupWindow    time.Duration
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithRunTimeout bounds one full pipeline run (both backend calls included).
func WithRunTimeout(d time.Duration) ListenerOption {
	return func(l *Listener) { l.runTimeout = d }
}

// WithAllowedSenders restricts which senders are processed; empty means allow all.
func WithAllowedSenders(ids []string) ListenerOption {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[strings.ToLower(id)] = struct{}{}
	}
	return func(l *Listener) { l.allowedSenders = set }
}

// WithDedup suppresses messages the deduper has seen within the window.
func WithDedup(d Deduper, window time.Duration) ListenerOption {
	return func(l *Listener) {
		l.dedup = d
		l.dedupWindow = window
	}
}

// NewListener constructs a Listener. If logger is nil, slog.Default is used.
func NewListener(transports []Transport, p *Pipeline, rep OutcomeReporter, logger *slog.Logger, opts ...ListenerOption) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	tmap := make(map[string]Transport, len(transports))
	for _, t := range transports {
		tmap[t.ID()] = t
	}
	l := &Listener{
		transports:   transports,
		transportMap: tmap,
		pipeline:     p,
		reporter:     rep,
		logger:       logger,
		runTimeout:   2 * time.Minute,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start launches transports and processes inbound messages until ctx is done.
func (l *Listener) Start(ctx context.Context) error {
	inbound := make(chan InboundMessage, 16)
	var wg sync.WaitGroup
	errCh := make(chan error, len(l.transports))

	for _, t := range l.transports {
		wg.Add(1)
		go func(tr Transport) {
			defer wg.Done()
			if err := tr.Start(ctx, inbound); err != nil {
				errCh <- fmt.Errorf("transport %s: %w", tr.ID(), err)
			}
		}(t)
	}

	// Close only after every transport goroutine has returned; closing on ctx
	// cancellation directly would race a transport still blocked in a send.
	go func() {
		wg.Wait()
		close(inbound)
	}()

	for msg := range inbound {
		l.handleMessage(ctx, msg)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	default:
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return ctx.Err()
	}
}

func (l *Listener) handleMessage(parent context.Context, msg InboundMessage) {
	metrics.IncInbound()
	log := l.logger.With(
		slog.String("transport", msg.Transport),
		slog.String("sender", msg.Sender),
	)

	if len(l.allowedSenders) > 0 {
		if _, ok := l.allowedSenders[strings.ToLower(msg.Sender)]; !ok {
			log.Warn("sender not allowed")
			return
		}
	}

	if l.dedup != nil {
		if seen, err := l.dedup.RecentMessageSeen(msg.Sender, msg.Text, l.dedupWindow); err == nil && seen {
			log.Warn("duplicate message suppressed")
			return
		}
	}

	runCtx := parent
	if l.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(parent, l.runTimeout)
		defer cancel()
	}

	outcome := l.pipeline.Run(runCtx, msg.Text)
	l.reporter.Record(outcome)
	if outcome.Kind == OutcomeNotApplicable {
		return
	}

	tr, ok := l.transportMap[msg.Transport]
	if !ok {
		log.Error("no transport for outbound")
		return
	}
	out := OutboundMessage{
		Transport: msg.Transport,
		Recipient: msg.Sender,
		Text:      l.reporter.Render(outcome),
		ThreadID:  msg.ThreadID,
	}
	if err := tr.Send(parent, out); err != nil {
		metrics.IncSendError()
		log.Error("send report", slog.String("err", err.Error()))
	}
}
