package router

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/rhuss/llmrouter/pkg/api"
	"github.com/rhuss/llmrouter/pkg/config"
	"github.com/rhuss/llmrouter/pkg/provider"
	"github.com/rhuss/llmrouter/pkg/provider/anthropic"
	"github.com/rhuss/llmrouter/pkg/provider/openaicompat"
)

// DefaultBaseURLs holds the endpoints of the built-in pass-through hosts.
var DefaultBaseURLs = map[string]string{
	"deepseek":   "https://api.deepseek.com",
	"gemini":     "https://generativelanguage.googleapis.com/v1beta/openai/",
	"openai":     "https://api.openai.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"xai":        "https://api.x.ai/v1",
}

// NewFromConfig builds a Router from the hosts section. A host is
// registered only when it has an API key; the anthropic host gets the
// protocol bridge and every other host the pass-through adapter.
func NewFromConfig(cfg *config.Config) (*Router, error) {
	names := make([]string, 0, len(cfg.Hosts))
	for name := range cfg.Hosts {
		names = append(names, name)
	}
	sort.Strings(names)

	hosts := make(map[string]provider.Provider, len(names))
	for _, name := range names {
		hc := cfg.Hosts[name]
		if hc.APIKey == "" {
			slog.Info("host skipped, no API key", "host", name, "env", config.HostKeyEnv(name))
			continue
		}

		p, err := newHost(name, hc)
		if err != nil {
			for _, built := range hosts {
				built.Close()
			}
			return nil, fmt.Errorf("host %s: %w", name, err)
		}
		hosts[name] = p
		slog.Info("host registered", "host", name)
	}

	return New(hosts), nil
}

func newHost(name string, hc config.HostConfig) (provider.Provider, error) {
	if name == anthropic.HostName {
		return anthropic.New(anthropic.Config{
			Name:               name,
			BaseURL:            hc.BaseURL,
			APIKey:             hc.APIKey,
			Timeout:            hc.Timeout,
			StrictStreamErrors: hc.StrictStreamErrors,
		}), nil
	}

	baseURL := hc.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURLs[name]
	}
	if baseURL == "" {
		return nil, fmt.Errorf("no base_url configured")
	}

	quirks := openaicompat.DefaultQuirks()
	if len(hc.Quirks) > 0 {
		extra := QuirksFromConfig(hc.Quirks)
		if err := extra.Validate(); err != nil {
			return nil, fmt.Errorf("quirks: %w", err)
		}
		quirks = quirks.Merge(extra)
	}

	return openaicompat.New(openaicompat.Config{
		Name:    name,
		BaseURL: baseURL,
		APIKey:  hc.APIKey,
		Timeout: hc.Timeout,
		Headers: hc.Headers,
		Quirks:  quirks,
	}), nil
}

// QuirksFromConfig converts configured quirk entries to a quirk table.
func QuirksFromConfig(entries map[string]config.QuirkConfig) openaicompat.QuirkTable {
	table := make(openaicompat.QuirkTable, len(entries))
	for model, qc := range entries {
		q := openaicompat.Quirk{
			Unlisted:   qc.Unlisted,
			DropParams: append([]string(nil), qc.DropParams...),
		}
		if len(qc.RoleRewrites) > 0 {
			q.RoleRewrites = make(map[api.Role]api.Role, len(qc.RoleRewrites))
			for from, to := range qc.RoleRewrites {
				q.RoleRewrites[api.Role(from)] = api.Role(to)
			}
		}
		if len(qc.Clamp) > 0 {
			q.Clamp = make(map[string]float64, len(qc.Clamp))
			for param, v := range qc.Clamp {
				q.Clamp[param] = v
			}
		}
		table[model] = q
	}
	return table
}
