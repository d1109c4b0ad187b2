// Package imap receives trigger messages from a mailbox via polling IMAP and
// sends outcome reports back over SMTP.
package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strings"
	"time"

	goimap "github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"

	"github.com/cybermolt/reply-runner/internal/core"
	"github.com/cybermolt/reply-runner/internal/transports"
)

// Transport implements a polling IMAP receive + SMTP send.
type Transport struct {
	cfg Config
}

func New(cfg Config) (*Transport, error) {
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Transport{cfg: cfg}, nil
}

func (t *Transport) ID() string { return t.cfg.ID }

func (t *Transport) Start(ctx context.Context, inbound chan<- core.InboundMessage) error {
	for {
		if err := t.pollOnce(ctx, inbound); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// backoff on errors
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		select {
		case <-time.After(30 * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// pollOnce fetches unseen messages and marks them seen, so a message triggers
// at most one pipeline run even across restarts.
func (t *Transport) pollOnce(ctx context.Context, inbound chan<- core.InboundMessage) error {
	c, err := imapclient.DialTLS(fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port), nil)
	if err != nil {
		return err
	}
	defer c.Logout()

	if err := c.Login(t.cfg.Username, t.cfg.Password); err != nil {
		return err
	}
	if _, err := c.Select(t.cfg.Folder, false); err != nil {
		return err
	}

	criteria := goimap.NewSearchCriteria()
	criteria.WithoutFlags = []string{goimap.SeenFlag}
	ids, err := c.Search(criteria)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	seqset := new(goimap.SeqSet)
	seqset.AddNum(ids...)
	section := &goimap.BodySectionName{}
	messages := make(chan *goimap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []goimap.FetchItem{goimap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	for msg := range messages {
		if msg.Envelope == nil {
			continue
		}
		from := ""
		if len(msg.Envelope.From) > 0 {
			from = msg.Envelope.From[0].Address()
		}
		var body strings.Builder
		if r := msg.GetBody(section); r != nil {
			if m, _ := message.Read(r); m != nil {
				b, _ := io.ReadAll(m.Body)
				body.Write(b)
			}
		}
		select {
		case inbound <- core.InboundMessage{
			Transport: t.ID(),
			Sender:    from,
			Text:      body.String(),
			ThreadID:  msg.Envelope.MessageId,
			Meta: map[string]any{
				"subject": msg.Envelope.Subject,
			},
		}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := <-done; err != nil {
		return err
	}

	flags := []any{goimap.SeenFlag}
	return c.Store(seqset, goimap.FormatFlagsOp(goimap.AddFlags, true), flags, nil)
}

func (t *Transport) Send(ctx context.Context, msg core.OutboundMessage) error {
	addr := fmt.Sprintf("%s:%d", t.cfg.SMTPHost, t.cfg.SMTPPort)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, t.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: t.cfg.SMTPHost}); err != nil {
			return err
		}
	}
	if ok, _ := c.Extension("AUTH"); ok {
		auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.SMTPHost)
		if err := c.Auth(auth); err != nil {
			return err
		}
	}

	if err := c.Mail(t.cfg.Username); err != nil {
		return err
	}
	if err := c.Rcpt(msg.Recipient); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(composeReport(t.cfg.Username, msg)); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// composeReport builds the raw outbound report message.
func composeReport(from string, msg core.OutboundMessage) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", msg.Recipient)
	sb.WriteString("Subject: reply-runner report\r\n")
	if msg.ThreadID != "" {
		fmt.Fprintf(&sb, "In-Reply-To: %s\r\n", msg.ThreadID)
	}
	sb.WriteString("\r\n")
	sb.WriteString(msg.Text)
	return []byte(sb.String())
}

// Register wires the transport into the registry.
func Register() {
	transports.MustRegister("email", func(cfg any) (core.Transport, error) {
		c, ok := cfg.(Config)
		if !ok {
			return nil, fmt.Errorf("email: unexpected config type %T", cfg)
		}
		return New(c)
	})
}
