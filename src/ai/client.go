package ai

import (
	"context"
	"time"

	"github.com/bpstack/home-account-showcase-sub001/src/config"
	"github.com/bpstack/home-account-showcase-sub001/src/logger"
)

// retryBaseDelay is multiplied by the attempt number for linear backoff.
// A var so tests can shorten it.
var retryBaseDelay = 2 * time.Second

// Client owns at most one active provider adapter and applies the uniform
// retry policy on top of it. Clients are cheap and constructed per logical
// operation; they hold no persisted state.
type Client struct {
	cfg      ProviderConfig
	provider Provider
}

// NewClient resolves the active provider: an explicit kind wins, then the
// injected runtime override, then the environment default (if enabled and
// credentialed), then the first usable vendor from the priority list, else
// none.
func NewClient(appCfg *config.AppConfig, override *ProviderOverride, explicit ProviderKind) *Client {
	kind := resolveProvider(appCfg, override, explicit)
	client := &Client{cfg: ProviderConfig{Kind: kind}}
	if kind != ProviderNone {
		client.cfg = vendorConfig(appCfg, kind)
		client.provider = newProvider(client.cfg)
	}
	return client
}

// NewClientWithProvider wires a specific adapter directly, bypassing
// resolution. Used by tests.
func NewClientWithProvider(provider Provider, cfg ProviderConfig) *Client {
	return &Client{cfg: cfg, provider: provider}
}

func resolveProvider(appCfg *config.AppConfig, override *ProviderOverride, explicit ProviderKind) ProviderKind {
	if !appCfg.AIEnabled {
		return ProviderNone
	}
	if explicit != "" && explicit != ProviderNone {
		if usable(appCfg, explicit) {
			return explicit
		}
		return ProviderNone
	}
	if override != nil {
		if kind := override.Get(); kind != "" && usable(appCfg, kind) {
			return kind
		}
	}
	if appCfg.AIDefaultProvider != "" {
		kind := ProviderKind(appCfg.AIDefaultProvider)
		if usable(appCfg, kind) {
			return kind
		}
	}
	for _, kind := range providerPriority {
		if usable(appCfg, kind) {
			return kind
		}
	}
	return ProviderNone
}

// usable means the vendor is enabled and its adapter reports availability
// (credentials present, or self-hosted).
func usable(appCfg *config.AppConfig, kind ProviderKind) bool {
	if !ValidProviderKind(string(kind)) || !vendorEnabled(appCfg, kind) {
		return false
	}
	return newProvider(vendorConfig(appCfg, kind)).IsAvailable()
}

func (c *Client) IsAvailable() bool {
	return c.provider != nil && c.provider.IsAvailable()
}

func (c *Client) ProviderName() string {
	if c.provider == nil {
		return string(ProviderNone)
	}
	return c.provider.Name()
}

func (c *Client) Model() string { return c.cfg.Model }

// SendPrompt retries on any adapter failure up to MaxRetries times with linear
// backoff, then propagates the last error unchanged. When no provider is
// available it fails fast without attempting the adapter.
func (c *Client) SendPrompt(ctx context.Context, prompt string) (string, error) {
	if !c.IsAvailable() {
		return "", ErrProviderUnavailable
	}

	var lastErr error
	attempts := c.cfg.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		response, err := c.provider.SendPrompt(ctx, prompt)
		elapsed := time.Since(start)
		if err == nil {
			if logger.L != nil {
				logger.L.Info("AI prompt completed",
					"provider", c.provider.Name(),
					"promptLength", len(prompt),
					"elapsedMs", elapsed.Milliseconds(),
					"attempt", attempt)
			}
			return response, nil
		}
		lastErr = err
		if logger.L != nil {
			logger.L.Warn("AI prompt failed",
				"provider", c.provider.Name(),
				"promptLength", len(prompt),
				"elapsedMs", elapsed.Milliseconds(),
				"attempt", attempt,
				"error", err)
		}

		if attempt < attempts {
			select {
			case <-time.After(retryBaseDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return "", lastErr
			}
		}
	}
	return "", lastErr
}

// SendPromptJSON sends the prompt and decodes the JSON value extracted from
// the response into v.
func (c *Client) SendPromptJSON(ctx context.Context, prompt string, v any) error {
	response, err := c.SendPrompt(ctx, prompt)
	if err != nil {
		return err
	}
	return UnmarshalLoose(response, v)
}

// VendorStatus describes one vendor for the administrative status endpoint.
type VendorStatus struct {
	Configured bool   `json:"configured"`
	Enabled    bool   `json:"enabled"`
	Model      string `json:"model"`
	BaseURL    string `json:"baseUrl,omitempty"`
}

// ProviderStatuses reports every vendor's configuration state.
func ProviderStatuses(appCfg *config.AppConfig) map[string]VendorStatus {
	statuses := make(map[string]VendorStatus, len(providerPriority))
	for _, kind := range providerPriority {
		cfg := vendorConfig(appCfg, kind)
		statuses[string(kind)] = VendorStatus{
			Configured: newProvider(cfg).IsAvailable(),
			Enabled:    vendorEnabled(appCfg, kind),
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
		}
	}
	return statuses
}
