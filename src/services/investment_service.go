package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bpstack/home-account-showcase-sub001/src/ai"
	"github.com/bpstack/home-account-showcase-sub001/src/config"
	"github.com/bpstack/home-account-showcase-sub001/src/logger"
	"github.com/bpstack/home-account-showcase-sub001/src/model"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

const (
	summaryWindowMonths = 3
	chatHistoryLimit    = 15
)

// InvestmentService drives every advisor feature: profile assessment,
// portfolio recommendations, chat and education. It owns the per-request AI
// client construction so the runtime provider override is honored everywhere.
type InvestmentService struct {
	db       *sql.DB
	cfg      *config.AppConfig
	override *ai.ProviderOverride
	market   *MarketService

	// Financial summaries are aggregation queries over the whole transaction
	// table; they are cached in-process since slight staleness is harmless in
	// prompt context.
	summaryCache *gocache.Cache
}

func NewInvestmentService(db *sql.DB, cfg *config.AppConfig, override *ai.ProviderOverride, market *MarketService) *InvestmentService {
	return &InvestmentService{
		db:           db,
		cfg:          cfg,
		override:     override,
		market:       market,
		summaryCache: gocache.New(5*time.Minute, 10*time.Minute),
	}
}

func (s *InvestmentService) client() *ai.Client {
	return ai.NewClient(s.cfg, s.override, ai.ProviderNone)
}

// probeClient resolves a client for a connectivity check: the requested vendor
// when one is named, otherwise whatever the normal resolution chain picks.
func (s *InvestmentService) probeClient(explicit ai.ProviderKind) *ai.Client {
	return ai.NewClient(s.cfg, s.override, explicit)
}

// AIEnabled reports the global advisor switch.
func (s *InvestmentService) AIEnabled() bool {
	return s.cfg.AIEnabled
}

// SetProviderOverride validates and applies a runtime provider switch.
func (s *InvestmentService) SetProviderOverride(name string) error {
	if name == "" {
		s.override.Clear()
		return nil
	}
	if !ai.ValidProviderKind(name) {
		return fmt.Errorf("unknown provider %q", name)
	}
	s.override.Set(ai.ProviderKind(name))
	return nil
}

func (s *InvestmentService) financialSummary(accountID, callerID int64) *model.FinancialSummary {
	key := fmt.Sprintf("summary:%d", accountID)
	if cached, ok := s.summaryCache.Get(key); ok {
		return cached.(*model.FinancialSummary)
	}
	fs, err := model.SummarizeAccountFinances(s.db, accountID, callerID, summaryWindowMonths)
	if err != nil {
		// Prompts tolerate a missing summary; authorization failures are still
		// caught by the profile and chat paths themselves.
		if logger.L != nil {
			logger.L.Warn("Financial summary unavailable for prompt context", "accountID", accountID, "error", err)
		}
		return nil
	}
	s.summaryCache.SetDefault(key, fs)
	return fs
}

// InvalidateSummary drops the cached financial summary after writes that
// change the underlying transactions.
func (s *InvestmentService) InvalidateSummary(accountID int64) {
	s.summaryCache.Delete(fmt.Sprintf("summary:%d", accountID))
}

// AssessProfile runs the questionnaire through the advisor and persists the
// resulting profile for the account. The assessment itself never fails on bad
// model output; it degrades to a conservative default.
func (s *InvestmentService) AssessProfile(ctx context.Context, accountID, userID int64, answers ai.QuestionnaireAnswers) (*ai.ProfileAssessment, error) {
	if err := model.RequireRole(s.db, accountID, userID); err != nil {
		return nil, err
	}

	client := s.client()
	prompt := ai.BuildProfilePrompt(answers, s.financialSummary(accountID, userID), s.market.GetMarketData(ctx))
	raw, err := client.SendPrompt(ctx, prompt)
	if err != nil {
		return nil, err
	}
	assessment := ai.ParseProfileResponse(raw)

	analysis, err := json.Marshal(assessment)
	if err != nil {
		return nil, err
	}
	profile := &model.InvestmentProfile{
		AccountID:         accountID,
		RiskProfile:       assessment.RiskProfile,
		MonthlyInvestable: answers.MonthlyInvestable,
		LumpSum:           answers.LumpSum,
		HorizonYears:      answers.HorizonYears,
		AnalysisJSON:      sql.NullString{String: string(analysis), Valid: true},
	}
	if err := model.UpsertInvestmentProfile(s.db, userID, profile); err != nil {
		return nil, err
	}
	return &assessment, nil
}

func (s *InvestmentService) GetProfile(accountID, userID int64) (*model.InvestmentProfile, error) {
	return model.GetInvestmentProfile(s.db, accountID, userID)
}

// Recommendations requires an existing profile and treats unparseable model
// output as a hard failure: there is no safe default portfolio.
func (s *InvestmentService) Recommendations(ctx context.Context, accountID, userID int64) (*ai.RecommendationResult, error) {
	profile, err := model.GetInvestmentProfile(s.db, accountID, userID)
	if err != nil {
		return nil, err
	}

	client := s.client()
	prompt := ai.BuildRecommendationPrompt(profile, s.financialSummary(accountID, userID), s.market.GetMarketData(ctx))
	raw, err := client.SendPrompt(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return ai.ParseRecommendationResponse(raw)
}

// ChatReply is one advisor chat turn together with its session identity.
type ChatReply struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Provider  string `json:"provider"`
}

// Chat threads the rolling history window into the prompt, then persists both
// sides of the turn.
func (s *InvestmentService) Chat(ctx context.Context, accountID, userID int64, sessionExternalID, message string) (*ChatReply, error) {
	session, err := model.GetOrCreateChatSession(s.db, accountID, userID, sessionExternalID, uuid.NewString())
	if err != nil {
		return nil, err
	}
	history, err := model.GetRecentChatMessages(s.db, session.ID, chatHistoryLimit)
	if err != nil {
		return nil, err
	}

	client := s.client()
	prompt := ai.BuildChatPrompt(history, message, s.financialSummary(accountID, userID), s.market.GetMarketData(ctx))
	raw, err := client.SendPrompt(ctx, prompt)
	if err != nil {
		return nil, err
	}
	reply := ai.ParseChatResponse(raw)

	provider := client.ProviderName()
	userMsg := &model.ChatMessage{SessionID: session.ID, Role: "user", Content: message}
	if err := model.AppendChatMessage(s.db, userMsg); err != nil {
		return nil, err
	}
	assistantMsg := &model.ChatMessage{SessionID: session.ID, Role: "assistant", Content: reply, Provider: provider}
	if err := model.AppendChatMessage(s.db, assistantMsg); err != nil {
		return nil, err
	}

	return &ChatReply{SessionID: session.ExternalID, Reply: reply, Provider: provider}, nil
}

// Education generates a structured lesson; parse failures degrade to a
// fallback lesson, transport failures surface as errors.
func (s *InvestmentService) Education(ctx context.Context, topic, level string) (*ai.EducationResult, error) {
	client := s.client()
	raw, err := client.SendPrompt(ctx, ai.BuildEducationPrompt(topic, level))
	if err != nil {
		return nil, err
	}
	result := ai.ParseEducationResponse(raw, topic, level)
	return &result, nil
}

// ParseTransactions extracts transaction candidates from free text, biased
// toward the account's existing category names.
func (s *InvestmentService) ParseTransactions(ctx context.Context, accountID, userID int64, text string) ([]ai.ParsedTransaction, error) {
	categories, err := model.ListCategories(s.db, accountID, userID)
	if err != nil {
		return nil, err
	}

	client := s.client()
	raw, err := client.SendPrompt(ctx, ai.BuildParseTransactionsPrompt(text, categories))
	if err != nil {
		return nil, err
	}
	return ai.ParseTransactionsResponse(raw)
}

// ProviderTestResult reports a live round-trip against one provider.
type ProviderTestResult struct {
	Success        bool   `json:"success"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	ResponseTimeMs int64  `json:"responseTimeMs"`
	Error          string `json:"error,omitempty"`
}

// TestProvider sends a trivial prompt and measures the round trip. A named
// vendor is probed directly; ProviderNone probes whatever is currently active.
func (s *InvestmentService) TestProvider(ctx context.Context, explicit ai.ProviderKind) *ProviderTestResult {
	client := s.probeClient(explicit)
	result := &ProviderTestResult{Provider: client.ProviderName(), Model: client.Model()}

	start := time.Now()
	reply, err := client.SendPrompt(ctx, "Responde exactamente con: OK")
	result.ResponseTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Success = true
	if reply == "" {
		result.Success = false
		result.Error = "empty response from provider"
	}
	return result
}

// ProviderStatuses exposes per-vendor availability for the admin endpoint.
func (s *InvestmentService) ProviderStatuses() map[string]ai.VendorStatus {
	return ai.ProviderStatuses(s.cfg)
}

// ActiveProvider reports the provider a fresh client would resolve to.
func (s *InvestmentService) ActiveProvider() (name, modelName string, available bool) {
	client := s.client()
	return client.ProviderName(), client.Model(), client.IsAvailable()
}
