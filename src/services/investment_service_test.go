package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpstack/home-account-showcase-sub001/src/ai"
	"github.com/bpstack/home-account-showcase-sub001/src/config"
)

func advisorTestConfig() *config.AppConfig {
	return &config.AppConfig{
		AIEnabled:         true,
		AIDefaultProvider: "openai",
		OpenAI:            config.VendorConfig{Enabled: true, APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: "https://api.openai.com/v1"},
		Gemini:            config.VendorConfig{Enabled: true, APIKey: "g-test", Model: "gemini-2.0-flash", BaseURL: "https://generativelanguage.googleapis.com/v1beta"},
	}
}

func newAdvisorService(t *testing.T, cfg *config.AppConfig) *InvestmentService {
	t.Helper()
	db := newServiceTestDB(t)
	market := NewMarketService(db, healthyFeeds(), time.Minute)
	return NewInvestmentService(db, cfg, ai.NewProviderOverride(), market)
}

func TestProbeClientHonorsRequestedVendor(t *testing.T) {
	svc := newAdvisorService(t, advisorTestConfig())

	assert.Equal(t, "gemini", svc.probeClient(ai.ProviderGemini).ProviderName(),
		"a requested vendor must win over the configured default")
	assert.Equal(t, "openai", svc.probeClient("").ProviderName(),
		"without a request the default resolution applies")
}

func TestProbeClientUncredentialedVendorResolvesToNone(t *testing.T) {
	cfg := advisorTestConfig()
	cfg.Claude = config.VendorConfig{Enabled: true}

	svc := newAdvisorService(t, cfg)
	assert.Equal(t, "none", svc.probeClient(ai.ProviderClaude).ProviderName())
}

func TestTestProviderFailsFastWhenDisabled(t *testing.T) {
	cfg := advisorTestConfig()
	cfg.AIEnabled = false

	svc := newAdvisorService(t, cfg)
	result := svc.TestProvider(context.Background(), ai.ProviderGemini)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, "none", result.Provider)
	assert.NotEmpty(t, result.Error)
}
