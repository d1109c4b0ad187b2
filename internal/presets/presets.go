package presets

import (
	_ "embed"
)

//go:embed data/cli-only.yaml
var CLIOnly []byte

//go:embed data/nostr-dm.yaml
var NostrDM []byte

//go:embed data/email-inbox.yaml
var EmailInbox []byte
