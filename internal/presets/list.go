package presets

import (
	"fmt"
	"os"
	"path/filepath"
)

// List returns preset names and descriptions.
func List() map[string]string {
	return map[string]string{
		"cli-only":    "One-shot CLI runs, no watch-mode transports",
		"nostr-dm":    "Watch for trigger DMs over Nostr relays",
		"email-inbox": "Watch an IMAP inbox for trigger emails",
	}
}

// Get returns the raw YAML for a preset, or an error if unknown.
func Get(name string) ([]byte, error) {
	if data, ok := loadOverride(name); ok {
		return data, nil
	}
	switch name {
	case "cli-only":
		return CLIOnly, nil
	case "nostr-dm":
		return NostrDM, nil
	case "email-inbox":
		return EmailInbox, nil
	default:
		return nil, fmt.Errorf("unknown preset %s", name)
	}
}

// loadOverride returns user/project preset overrides if present.
func loadOverride(name string) ([]byte, bool) {
	for _, path := range overridePaths(name) {
		if data, err := os.ReadFile(path); err == nil {
			return data, true
		}
	}
	return nil, false
}

func overridePaths(name string) []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "reply-runner", "presets", name+".yaml"))
	}
	paths = append(paths, filepath.Join("presets", name+".yaml"))
	return paths
}
