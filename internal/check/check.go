// Package check runs -doctor preflight checks over a loaded configuration.
package check

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/cybermolt/reply-runner/internal/config"
)

// Result represents a single preflight check outcome.
type Result struct {
	Name     string
	Status   string // OK|MISSING|WARN
	Details  string
	Optional bool
}

// Run evaluates the configuration and returns one Result per check.
func Run(cfg *config.Config) []Result {
	var out []Result

	out = append(out, secret("llm.api_key", cfg.LLM.APIKey, false, "set llm.api_key or DASHSCOPE_API_KEY"))
	out = append(out, endpoint("llm.api_base", cfg.LLM.APIBase, true))

	if cfg.Twitter.Configured() {
		out = append(out,
			secret("twitter.consumer_key", cfg.Twitter.ConsumerKey, false, ""),
			secret("twitter.access_token", cfg.Twitter.AccessToken, false, ""),
			endpoint("twitter.api_base", cfg.Twitter.APIBase, true),
		)
	} else {
		out = append(out, Result{
			Name:     "twitter credentials",
			Status:   "WARN",
			Optional: true,
			Details:  "not configured; direct replies will fail at the publish stage",
		})
	}

	out = append(out, dirWritable("storage.path", cfg.Storage.Path))

	for i, t := range cfg.Transports {
		name := fmt.Sprintf("transports[%d] (%s)", i, t.Type)
		switch t.Type {
		case "nostr":
			out = append(out, secret(name+" private_key", t.PrivateKey, false, ""))
		case "email":
			out = append(out, secret(name+" password", t.Password, false, ""))
		}
	}
	return out
}

func secret(name, value string, optional bool, hint string) Result {
	res := Result{Name: name, Status: "OK", Optional: optional, Details: "set"}
	if value == "" {
		res.Status = missingStatus(optional)
		res.Details = "not set"
		if hint != "" {
			res.Details += " (" + hint + ")"
		}
	}
	return res
}

func endpoint(name, value string, optional bool) Result {
	res := Result{Name: name, Status: "OK", Optional: optional, Details: value}
	if value == "" {
		res.Status = "OK"
		res.Details = "default"
		return res
	}
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		res.Status = missingStatus(optional)
		res.Details = fmt.Sprintf("not a usable URL: %s", value)
	}
	return res
}

func dirWritable(name, path string) Result {
	res := Result{Name: name, Status: "OK", Details: path}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		res.Status = "MISSING"
		res.Details = fmt.Sprintf("cannot create %s: %v", dir, err)
		return res
	}
	probe := filepath.Join(dir, ".doctor-probe")
	f, err := os.Create(probe)
	if err != nil {
		res.Status = "MISSING"
		res.Details = fmt.Sprintf("%s is not writable: %v", dir, err)
		return res
	}
	f.Close()
	os.Remove(probe)
	return res
}

func missingStatus(optional bool) string {
	if optional {
		return "WARN"
	}
	return "MISSING"
}
