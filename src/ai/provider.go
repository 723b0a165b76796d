package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bpstack/home-account-showcase-sub001/src/config"
)

// ProviderKind is the closed set of supported LLM vendors.
type ProviderKind string

const (
	ProviderNone   ProviderKind = "none"
	ProviderOpenAI ProviderKind = "openai"
	ProviderClaude ProviderKind = "claude"
	ProviderGemini ProviderKind = "gemini"
	ProviderOllama ProviderKind = "ollama"
)

// providerPriority is the fallback order used when no explicit or default
// provider is usable.
var providerPriority = []ProviderKind{ProviderOpenAI, ProviderClaude, ProviderGemini, ProviderOllama}

func ValidProviderKind(s string) bool {
	switch ProviderKind(s) {
	case ProviderOpenAI, ProviderClaude, ProviderGemini, ProviderOllama:
		return true
	}
	return false
}

// ProviderConfig is resolved once per client construction and immutable after.
type ProviderConfig struct {
	Kind        ProviderKind
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

// Provider normalizes one vendor's chat-completion API. Adapters resolve to
// plain response text; JSON handling happens above this layer.
type Provider interface {
	Name() string
	IsAvailable() bool
	SendPrompt(ctx context.Context, prompt string) (string, error)
}

var ErrProviderUnavailable = errors.New("no AI provider available")

// ErrorKind classifies provider failures surfaced to the client.
type ErrorKind int

const (
	ErrorAuth ErrorKind = iota
	ErrorRateLimited
	ErrorUpstream
	ErrorTimeout
	ErrorMalformed
	ErrorUnreachable
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorAuth:
		return "auth"
	case ErrorRateLimited:
		return "rate_limited"
	case ErrorUpstream:
		return "upstream"
	case ErrorTimeout:
		return "timeout"
	case ErrorMalformed:
		return "malformed_response"
	case ErrorUnreachable:
		return "unreachable"
	}
	return "unknown"
}

type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d): %s", e.Provider, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

// statusError maps an HTTP status to the provider failure taxonomy.
func statusError(provider string, status int, body string) *ProviderError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &ProviderError{Provider: provider, Kind: ErrorAuth, Status: status, Message: "invalid or missing API key"}
	case status == http.StatusTooManyRequests:
		return &ProviderError{Provider: provider, Kind: ErrorRateLimited, Status: status, Message: "rate limited"}
	default:
		return &ProviderError{Provider: provider, Kind: ErrorUpstream, Status: status, Message: body}
	}
}

func timeoutError(provider string, bound time.Duration) *ProviderError {
	return &ProviderError{Provider: provider, Kind: ErrorTimeout,
		Message: fmt.Sprintf("no response within %s", bound)}
}

// newProvider dispatches on the kind; the closed switch keeps the set of
// vendors exhaustive at one place.
func newProvider(cfg ProviderConfig) Provider {
	switch cfg.Kind {
	case ProviderOpenAI:
		return newOpenAIProvider(cfg)
	case ProviderClaude:
		return newClaudeProvider(cfg)
	case ProviderGemini:
		return newGeminiProvider(cfg)
	case ProviderOllama:
		return newOllamaProvider(cfg)
	default:
		return nil
	}
}

// vendorConfig builds a ProviderConfig for one kind from the app configuration.
func vendorConfig(appCfg *config.AppConfig, kind ProviderKind) ProviderConfig {
	var vc config.VendorConfig
	switch kind {
	case ProviderOpenAI:
		vc = appCfg.OpenAI
	case ProviderClaude:
		vc = appCfg.Claude
	case ProviderGemini:
		vc = appCfg.Gemini
	case ProviderOllama:
		vc = appCfg.Ollama
	}
	return ProviderConfig{
		Kind:        kind,
		APIKey:      vc.APIKey,
		Model:       vc.Model,
		BaseURL:     vc.BaseURL,
		Temperature: appCfg.AITemperature,
		MaxTokens:   appCfg.AIMaxTokens,
		Timeout:     appCfg.AITimeout,
		MaxRetries:  appCfg.AIMaxRetries,
	}
}

func vendorEnabled(appCfg *config.AppConfig, kind ProviderKind) bool {
	switch kind {
	case ProviderOpenAI:
		return appCfg.OpenAI.Enabled
	case ProviderClaude:
		return appCfg.Claude.Enabled
	case ProviderGemini:
		return appCfg.Gemini.Enabled
	case ProviderOllama:
		return appCfg.Ollama.Enabled
	}
	return false
}

// ProviderOverride is the process-wide runtime override, set by the
// administrative endpoint. It is injected explicitly into client construction
// rather than living as a package-level variable.
type ProviderOverride struct {
	mu   sync.RWMutex
	kind ProviderKind
}

func NewProviderOverride() *ProviderOverride {
	return &ProviderOverride{}
}

func (o *ProviderOverride) Set(kind ProviderKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.kind = kind
}

func (o *ProviderOverride) Get() ProviderKind {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.kind
}

func (o *ProviderOverride) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.kind = ""
}
