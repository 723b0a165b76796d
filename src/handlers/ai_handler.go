package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bpstack/home-account-showcase-sub001/src/ai"
	"github.com/bpstack/home-account-showcase-sub001/src/logger"
	"github.com/bpstack/home-account-showcase-sub001/src/services"
	"github.com/bpstack/home-account-showcase-sub001/src/utils"
)

// AIHandler exposes advisor administration: vendor status, runtime provider
// switching and a live connectivity probe.
type AIHandler struct {
	investmentService *services.InvestmentService
}

func NewAIHandler(investmentService *services.InvestmentService) *AIHandler {
	return &AIHandler{investmentService: investmentService}
}

// writeAIError maps the provider error taxonomy onto HTTP statuses.
func writeAIError(w http.ResponseWriter, err error) {
	if isModelError(err) {
		writeModelError(w, err)
		return
	}
	if errors.Is(err, ai.ErrProviderUnavailable) {
		utils.SendJSONError(w, "AI advisor is disabled or not configured", http.StatusBadRequest)
		return
	}
	var perr *ai.ProviderError
	if errors.As(err, &perr) {
		switch perr.Kind {
		case ai.ErrorTimeout:
			utils.SendJSONError(w, "AI provider timed out", http.StatusGatewayTimeout)
		case ai.ErrorRateLimited:
			utils.SendJSONError(w, "AI provider rate limit exceeded", http.StatusTooManyRequests)
		default:
			utils.SendJSONError(w, "AI provider request failed", http.StatusBadGateway)
		}
		return
	}
	if errors.Is(err, ai.ErrNoJSONFound) {
		utils.SendJSONError(w, "AI response could not be interpreted", http.StatusBadGateway)
		return
	}
	logger.L.Error("Unhandled AI error", "error", err)
	utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
}

func (h *AIHandler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	provider, modelName, available := h.investmentService.ActiveProvider()
	utils.SendJSON(w, map[string]any{
		"enabled":        h.investmentService.AIEnabled(),
		"activeProvider": provider,
		"model":          modelName,
		"available":      available,
		"providers":      h.investmentService.ProviderStatuses(),
	}, http.StatusOK)
}

// HandleSetProvider switches the active provider at runtime. An empty provider
// clears the override and falls back to configured resolution.
func (h *AIHandler) HandleSetProvider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	req.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
	if err := h.investmentService.SetProviderOverride(req.Provider); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	provider, modelName, available := h.investmentService.ActiveProvider()
	logger.L.Info("AI provider override changed", "requested", req.Provider, "active", provider)
	utils.SendJSON(w, map[string]any{
		"activeProvider": provider,
		"model":          modelName,
		"available":      available,
	}, http.StatusOK)
}

// HandleTestProvider performs a live round-trip and reports latency. The body
// may name the vendor to probe; without one the active provider is tested.
// Failures are reported in the body, not the status code.
func (h *AIHandler) HandleTestProvider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.SendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	req.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
	if req.Provider != "" && !ai.ValidProviderKind(req.Provider) {
		utils.SendJSONError(w, fmt.Sprintf("unknown provider %q", req.Provider), http.StatusBadRequest)
		return
	}

	result := h.investmentService.TestProvider(r.Context(), ai.ProviderKind(req.Provider))
	utils.SendJSON(w, result, http.StatusOK)
}

// HandleParseTransactions extracts transaction candidates from free text. The
// candidates are returned for review, never inserted directly.
func (h *AIHandler) HandleParseTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		utils.SendJSONError(w, "Text to parse required", http.StatusBadRequest)
		return
	}

	parsed, err := h.investmentService.ParseTransactions(r.Context(), accountID, userID, req.Text)
	if err != nil {
		writeAIError(w, err)
		return
	}
	utils.SendJSON(w, map[string]any{"transactions": parsed}, http.StatusOK)
}
