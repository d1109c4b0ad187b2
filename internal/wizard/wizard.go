// Package wizard implements the interactive -init flow that writes config.yaml.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"gopkg.in/yaml.v3"

	"github.com/cybermolt/reply-runner/internal/config"
	"github.com/cybermolt/reply-runner/internal/presets"
)

// Prompter abstracts survey for testability.
type Prompter interface {
	AskSelect(label string, options []string, def string) (string, error)
	AskInput(label, def string) (string, error)
	AskPassword(label string) (string, error)
	AskConfirm(label string, def bool) (bool, error)
}

// Run executes the interactive wizard and writes a config file.
func Run(ctx context.Context, path string, p Prompter) (string, error) {
	_ = ctx // reserved for future use (cancellation)
	if p == nil {
		p = &surveyPrompter{}
	}

	cfgPath, err := resolveConfigPath(path)
	if err != nil {
		return "", err
	}

	if fileExists(cfgPath) {
		overwrite, err := p.AskConfirm(fmt.Sprintf("%s exists. Overwrite?", cfgPath), false)
		if err != nil {
			return "", err
		}
		if !overwrite {
			return "", fmt.Errorf("aborted: config exists at %s", cfgPath)
		}
	}

	names := presetNames()
	choice, err := p.AskSelect("Pick a preset", names, defaultChoice("cli-only", names))
	if err != nil {
		return "", err
	}

	data, err := presets.Get(choice)
	if err != nil {
		return "", err
	}
	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("parse preset %s: %w", choice, err)
	}

	if cfg.LLM.APIKey == "" && os.Getenv("DASHSCOPE_API_KEY") == "" {
		key, err := p.AskPassword("LLM API key (DashScope-compatible)")
		if err != nil {
			return "", err
		}
		if key == "" {
			return "", errors.New("llm api key is required")
		}
		cfg.LLM.APIKey = key
	}

	wantPublish, err := p.AskConfirm("Configure Twitter credentials for direct replies?", false)
	if err != nil {
		return "", err
	}
	if wantPublish {
		if cfg.Twitter.ConsumerKey, err = p.AskPassword("Twitter consumer key"); err != nil {
			return "", err
		}
		if cfg.Twitter.ConsumerSecret, err = p.AskPassword("Twitter consumer secret"); err != nil {
			return "", err
		}
		if cfg.Twitter.AccessToken, err = p.AskPassword("Twitter access token"); err != nil {
			return "", err
		}
		if cfg.Twitter.AccessTokenSecret, err = p.AskPassword("Twitter access token secret"); err != nil {
			return "", err
		}
		if !cfg.Twitter.Configured() {
			return "", errors.New("all four twitter credentials are required")
		}
	}

	for i := range cfg.Transports {
		t := &cfg.Transports[i]
		switch t.Type {
		case "nostr":
			if len(t.Relays) == 0 {
				relays, err := p.AskInput("Relays (comma-separated)", "wss://relay.damus.io,wss://nos.lol")
				if err != nil {
					return "", err
				}
				t.Relays = splitCSV(relays)
			}
			if t.PrivateKey == "" {
				pk, err := p.AskPassword("Nostr private key (hex, not nsec)")
				if err != nil {
					return "", err
				}
				if pk == "" {
					return "", errors.New("private key is required")
				}
				t.PrivateKey = pk
			}
			if len(t.AllowedPubkeys) == 0 {
				allowed, err := p.AskInput("Allowed pubkeys (comma-separated hex, empty allows all)", "")
				if err != nil {
					return "", err
				}
				t.AllowedPubkeys = splitCSV(allowed)
			}
		case "email":
			if t.Host == "" {
				if t.Host, err = p.AskInput("IMAP host", ""); err != nil {
					return "", err
				}
			}
			if t.Username == "" {
				if t.Username, err = p.AskInput("IMAP username", ""); err != nil {
					return "", err
				}
			}
			if t.Password == "" {
				if t.Password, err = p.AskPassword("IMAP password"); err != nil {
					return "", err
				}
			}
		}
	}

	dryRun, err := p.AskConfirm("Dry-run only (preview config without writing)?", false)
	if err != nil {
		return "", err
	}
	if dryRun {
		fmt.Printf("Dry run: config NOT written. Target path would be %s\n", cfgPath)
		return cfgPath, nil
	}

	if err := writeConfig(cfgPath, &cfg); err != nil {
		return "", err
	}
	return cfgPath, nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "reply-runner", "config.yaml"), nil
}

func writeConfig(path string, cfg *config.Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("make config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func presetNames() []string {
	names := make([]string, 0, len(presets.List()))
	for name := range presets.List() {
		names = append(names, name)
	}
	return names
}

func defaultChoice(defaultVal string, options []string) string {
	for _, opt := range options {
		if opt == defaultVal {
			return defaultVal
		}
	}
	if len(options) > 0 {
		return options[0]
	}
	return defaultVal
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// surveyPrompter is the real interactive implementation.
type surveyPrompter struct{}

func (surveyPrompter) AskSelect(label string, options []string, def string) (string, error) {
	sel := def
	prompt := &survey.Select{Message: label, Options: options, Default: def}
	if err := survey.AskOne(prompt, &sel); err != nil {
		return "", err
	}
	return sel, nil
}

func (surveyPrompter) AskInput(label, def string) (string, error) {
	ans := def
	prompt := &survey.Input{Message: label, Default: def}
	if err := survey.AskOne(prompt, &ans); err != nil {
		return "", err
	}
	return ans, nil
}

func (surveyPrompter) AskPassword(label string) (string, error) {
	var ans string
	prompt := &survey.Password{Message: label}
	if err := survey.AskOne(prompt, &ans); err != nil {
		return "", err
	}
	return ans, nil
}

func (surveyPrompter) AskConfirm(label string, def bool) (bool, error) {
	ans := def
	prompt := &survey.Confirm{Message: label, Default: def}
	if err := survey.AskOne(prompt, &ans); err != nil {
		return false, err
	}
	return ans, nil
}

// StubPrompter is used in tests.
type StubPrompter struct {
	Selects   []string
	Inputs    []string
	Passwords []string
	Confirms  []bool
}

func (s *StubPrompter) AskSelect(label string, options []string, def string) (string, error) {
	if len(s.Selects) == 0 {
		return def, nil
	}
	v := s.Selects[0]
	s.Selects = s.Selects[1:]
	return v, nil
}

func (s *StubPrompter) AskInput(label, def string) (string, error) {
	if len(s.Inputs) == 0 {
		return def, nil
	}
	v := s.Inputs[0]
	s.Inputs = s.Inputs[1:]
	return v, nil
}

func (s *StubPrompter) AskPassword(label string) (string, error) {
	if len(s.Passwords) == 0 {
		return "", nil
	}
	v := s.Passwords[0]
	s.Passwords = s.Passwords[1:]
	return v, nil
}

func (s *StubPrompter) AskConfirm(label string, def bool) (bool, error) {
	if len(s.Confirms) == 0 {
		return def, nil
	}
	v := s.Confirms[0]
	s.Confirms = s.Confirms[1:]
	return v, nil
}
