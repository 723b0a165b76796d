package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ollamaProvider talks to a self-hosted Ollama instance. It reports itself
// available without probing the network; reachability is only checked at send
// time, where connection failures map to a descriptive error.
type ollamaProvider struct {
	cfg        ProviderConfig
	httpClient *http.Client
}

func newOllamaProvider(cfg ProviderConfig) *ollamaProvider {
	return &ollamaProvider{cfg: cfg, httpClient: &http.Client{}}
}

func (p *ollamaProvider) Name() string { return string(ProviderOllama) }

func (p *ollamaProvider) IsAvailable() bool { return true }

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (p *ollamaProvider) SendPrompt(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	reqBody := ollamaRequest{Model: p.cfg.Model, Prompt: prompt, Stream: false}
	reqBody.Options.Temperature = p.cfg.Temperature
	reqBody.Options.NumPredict = p.cfg.MaxTokens

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", timeoutError(p.Name(), p.cfg.Timeout)
		}
		return "", &ProviderError{Provider: p.Name(), Kind: ErrorUnreachable,
			Message: fmt.Sprintf("ollama service not reachable at %s: %v", p.cfg.BaseURL, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", statusError(p.Name(), resp.StatusCode, string(body))
	}

	var decoded ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &ProviderError{Provider: p.Name(), Kind: ErrorMalformed, Message: err.Error()}
	}
	if decoded.Response == "" {
		return "", &ProviderError{Provider: p.Name(), Kind: ErrorMalformed, Message: "empty response field"}
	}
	return decoded.Response, nil
}
