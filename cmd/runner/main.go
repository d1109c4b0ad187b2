package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cybermolt/reply-runner/internal/check"
	"github.com/cybermolt/reply-runner/internal/config"
	"github.com/cybermolt/reply-runner/internal/core"
	"github.com/cybermolt/reply-runner/internal/generate"
	"github.com/cybermolt/reply-runner/internal/metrics"
	"github.com/cybermolt/reply-runner/internal/publish"
	"github.com/cybermolt/reply-runner/internal/report"
	"github.com/cybermolt/reply-runner/internal/request"
	"github.com/cybermolt/reply-runner/internal/store"
	"github.com/cybermolt/reply-runner/internal/transports"
	imaptransport "github.com/cybermolt/reply-runner/internal/transports/email/imap"
	nostrtransport "github.com/cybermolt/reply-runner/internal/transports/nostr"
	"github.com/cybermolt/reply-runner/internal/trigger"
	"github.com/cybermolt/reply-runner/internal/wizard"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config.yaml")
	initCfg := flag.Bool("init", false, "Run the interactive config wizard and exit")
	doctor := flag.Bool("doctor", false, "Run config preflight checks and exit")
	watch := flag.Bool("watch", false, "Watch transports for trigger messages")
	message := flag.String("message", "", "Raw message to run through the pipeline")
	tweet := flag.String("tweet", "", "Tweet content to reply to (shorthand for a payload)")
	author := flag.String("author", "", "Tweet author username")
	tweetID := flag.String("tweet-id", "", "Target tweet id for a direct reply")
	replyDirectly := flag.Bool("reply-directly", false, "Post the generated reply under the target tweet")
	model := flag.String("model", "", "Generation model override")
	history := flag.Int("history", 0, "Print the N most recent runs and exit")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *initCfg {
		path, err := wizard.Run(context.Background(), *configPath, nil)
		if err != nil {
			fatalf("init: %v", err)
		}
		fmt.Printf("Config written to %s\n", path)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("load config: %v", err)
	}

	if *doctor {
		runDoctor(cfg)
		return
	}

	logger := buildLogger(cfg, *verbose)

	failureSink, closeSink, err := openFailureSink(cfg)
	if err != nil {
		fatalf("open failure log: %v", err)
	}
	defer closeSink()
	reporter := report.New(failureSink)

	st, err := store.New(cfg.Storage.Path)
	if err != nil {
		fatalf("open store: %v", err)
	}
	defer st.Close()

	if *history > 0 {
		printHistory(st, *history)
		return
	}

	pipeline, err := buildPipeline(cfg, st)
	if err != nil {
		fatalf("wire pipeline: %v", err)
	}

	if *watch {
		runWatch(cfg, st, pipeline, reporter, logger)
		return
	}

	raw := *message
	if raw == "" {
		if *tweet == "" || *author == "" {
			fatalf("one-shot mode needs -message, or both -tweet and -author")
		}
		raw = synthesizeMessage(cfg.Triggers[0], *author, *tweet, *tweetID, *replyDirectly, *model)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcome := pipeline.Run(ctx, raw)
	reporter.Record(outcome)
	fmt.Println(reporter.Render(outcome))
	if outcome.Kind == core.OutcomeFailed {
		os.Exit(1)
	}
}

func buildLogger(cfg *config.Config, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openFailureSink returns the logger failure records go to: the configured
// file, or stderr when none is set.
func openFailureSink(cfg *config.Config) (*slog.Logger, func(), error) {
	if cfg.Logging.FailureLog == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, nil)), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Logging.FailureLog), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(cfg.Logging.FailureLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(slog.NewTextHandler(f, nil)), func() { _ = f.Close() }, nil
}

func buildPipeline(cfg *config.Config, st *store.Store) (*core.Pipeline, error) {
	matcher := trigger.New(cfg.Triggers)
	validator := request.New(cfg.LLM.Model)

	llm, err := generate.NewOpenAIClient(generate.LLMSettings{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.APIBase,
	})
	if err != nil {
		return nil, err
	}
	gen := generate.New(llm, generate.Style{
		Directive:          cfg.Style.Directive,
		MinChars:           cfg.Style.MinChars,
		MaxChars:           cfg.Style.MaxChars,
		RequiredTrailer:    cfg.Style.RequiredTrailer,
		Hashtags:           cfg.Style.Hashtags,
		DisallowedPrefixes: cfg.Style.DisallowedPrefixes,
		TruncateOnOverflow: cfg.Style.OnLengthViolation == "truncate",
	}, time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)

	var publisher core.Publisher
	if cfg.Twitter.Configured() {
		client, err := publish.New(publish.Credentials{
			ConsumerKey:       cfg.Twitter.ConsumerKey,
			ConsumerSecret:    cfg.Twitter.ConsumerSecret,
			AccessToken:       cfg.Twitter.AccessToken,
			AccessTokenSecret: cfg.Twitter.AccessTokenSecret,
		}, cfg.Twitter.APIBase, time.Duration(cfg.Twitter.TimeoutSeconds)*time.Second)
		if err != nil {
			return nil, err
		}
		publisher = client
	}

	return core.NewPipeline(matcher, validator, gen, publisher, core.WithHistory(st)), nil
}

func runWatch(cfg *config.Config, st *store.Store, pipeline *core.Pipeline, reporter *report.Reporter, logger *slog.Logger) {
	if len(cfg.Transports) == 0 {
		fatalf("watch mode needs at least one configured transport")
	}

	nostrtransport.Register(st)
	imaptransport.Register()

	var built []core.Transport
	for i, tc := range cfg.Transports {
		t, err := buildTransport(tc)
		if err != nil {
			fatalf("transport %d: %v", i, err)
		}
		built = append(built, t)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := metrics.Start(ctx, cfg.Metrics.Listen, logger); err != nil {
		fatalf("metrics: %v", err)
	}

	printBanner(cfg, built)
	logger.Info("reply-runner watching", slog.Int("transports", len(built)))

	listener := core.NewListener(built, pipeline, reporter, logger,
		core.WithRunTimeout(time.Duration(cfg.Watch.RunTimeoutSecs)*time.Second),
		core.WithAllowedSenders(cfg.Watch.AllowedSenders),
		core.WithDedup(st, time.Duration(cfg.Watch.DedupWindowSecs)*time.Second),
	)
	if err := listener.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fatalf("runtime error: %v", err)
	}
	logger.Info("shutdown requested")
}

func buildTransport(tc config.TransportConfig) (core.Transport, error) {
	switch tc.Type {
	case "nostr":
		return transports.Build("nostr", nostrtransport.Config{
			Relays:         tc.Relays,
			PrivateKey:     tc.PrivateKey,
			AllowedPubkeys: tc.AllowedPubkeys,
		})
	case "email":
		return transports.Build("email", imaptransport.Config{
			Host:     tc.Host,
			Port:     tc.Port,
			Username: tc.Username,
			Password: tc.Password,
			Folder:   tc.Folder,
			SMTPHost: tc.SMTPHost,
			SMTPPort: tc.SMTPPort,
		})
	default:
		return nil, fmt.Errorf("unknown type %q", tc.Type)
	}
}

// synthesizeMessage maps CLI flags onto the same fields as the structured
// payload and wraps them in a triggering message.
func synthesizeMessage(phrase, author, tweet, tweetID string, replyDirectly bool, model string) string {
	payload := map[string]any{
		"author": author,
		"tweet":  tweet,
	}
	if tweetID != "" {
		payload["tweet_id"] = tweetID
	}
	if replyDirectly {
		payload["reply_directly"] = true
	}
	if model != "" {
		payload["model"] = model
	}
	data, _ := json.Marshal(payload)
	return phrase + "\n```json\n" + string(data) + "\n```"
}

func printHistory(st *store.Store, n int) {
	runs, err := st.RecentRuns(n)
	if err != nil {
		fatalf("read history: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded yet")
		return
	}
	for _, r := range runs {
		line := fmt.Sprintf("%s  %-14s", r.At.Format(time.RFC3339), r.Kind)
		if r.Author != "" {
			line += "  @" + r.Author
		}
		if r.Kind == core.OutcomeFailed {
			line += fmt.Sprintf("  %s/%s", r.Stage, r.ErrKind)
		}
		if r.PostedID != "" {
			line += "  posted " + r.PostedID
		}
		fmt.Println(line)
	}
}

func runDoctor(cfg *config.Config) {
	results := check.Run(cfg)
	failed := false
	for _, r := range results {
		fmt.Printf("%-8s %-35s %s\n", r.Status, r.Name, r.Details)
		if r.Status == "MISSING" {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func printBanner(cfg *config.Config, built []core.Transport) {
	if !isTTY() {
		return
	}

	cyan := "\033[36m"
	mag := "\033[35m"
	reset := "\033[0m"

	ids := make([]string, 0, len(built))
	for _, t := range built {
		ids = append(ids, t.ID())
	}
	publishStatus := "off"
	if cfg.Twitter.Configured() {
		publishStatus = "on"
	}
	metricsStatus := "off"
	if cfg.Metrics.Listen != "" {
		metricsStatus = cfg.Metrics.Listen
	}

	fmt.Printf("%s╔══════════════════════════════════════════════════════╗%s\n", mag, reset)
	fmt.Printf("%s║%s  reply-runner                                        %s║%s\n", mag, reset, mag, reset)
	fmt.Printf("%s╠══════════════════════════════════════════════════════╣%s\n", mag, reset)
	fmt.Printf("%s║%s transports %s%s%s\n", mag, reset, cyan, strings.Join(ids, ", "), reset)
	fmt.Printf("%s║%s model      %s%s%s\n", mag, reset, cyan, cfg.LLM.Model, reset)
	fmt.Printf("%s║%s publish    %s%s%s\n", mag, reset, cyan, publishStatus, reset)
	fmt.Printf("%s║%s metrics    %s%s%s\n", mag, reset, cyan, metricsStatus, reset)
	fmt.Printf("%s╚══════════════════════════════════════════════════════╝%s\n", mag, reset)
}

func isTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func fatalf(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(1)
}
