package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bpstack/home-account-showcase-sub001/src/ai"
	"github.com/bpstack/home-account-showcase-sub001/src/services"
	"github.com/bpstack/home-account-showcase-sub001/src/utils"
)

type InvestmentHandler struct {
	investmentService *services.InvestmentService
}

func NewInvestmentHandler(investmentService *services.InvestmentService) *InvestmentHandler {
	return &InvestmentHandler{investmentService: investmentService}
}

// HandleAssessProfile runs the questionnaire through the advisor and stores
// the resulting risk profile for the account.
func (h *InvestmentHandler) HandleAssessProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var answers ai.QuestionnaireAnswers
	if err := json.NewDecoder(r.Body).Decode(&answers); err != nil {
		utils.SendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if answers.Age <= 0 || answers.HorizonYears <= 0 {
		utils.SendJSONError(w, "Age and investment horizon are required", http.StatusBadRequest)
		return
	}

	assessment, err := h.investmentService.AssessProfile(r.Context(), accountID, userID, answers)
	if err != nil {
		writeAIError(w, err)
		return
	}
	utils.SendJSON(w, assessment, http.StatusOK)
}

func (h *InvestmentHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	profile, err := h.investmentService.GetProfile(accountID, userID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	utils.SendJSON(w, profile, http.StatusOK)
}

// HandleGetRecommendations requires an assessed profile; unparseable advisor
// output is a hard failure here.
func (h *InvestmentHandler) HandleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	recommendations, err := h.investmentService.Recommendations(r.Context(), accountID, userID)
	if err != nil {
		writeAIError(w, err)
		return
	}
	utils.SendJSON(w, recommendations, http.StatusOK)
}

func (h *InvestmentHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		utils.SendJSONError(w, "Message required", http.StatusBadRequest)
		return
	}

	reply, err := h.investmentService.Chat(r.Context(), accountID, userID, req.SessionID, strings.TrimSpace(req.Message))
	if err != nil {
		writeAIError(w, err)
		return
	}
	utils.SendJSON(w, reply, http.StatusOK)
}

// HandleEducation generates a structured lesson for a topic and level.
func (h *InvestmentHandler) HandleEducation(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	var req struct {
		Topic string `json:"topic"`
		Level string `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Topic) == "" {
		utils.SendJSONError(w, "Topic required", http.StatusBadRequest)
		return
	}
	level := strings.TrimSpace(req.Level)
	if level == "" {
		level = "principiante"
	}

	result, err := h.investmentService.Education(r.Context(), strings.TrimSpace(req.Topic), level)
	if err != nil {
		writeAIError(w, err)
		return
	}
	utils.SendJSON(w, result, http.StatusOK)
}
