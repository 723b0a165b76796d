package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bpstack/home-account-showcase-sub001/src/logger"
	"github.com/bpstack/home-account-showcase-sub001/src/model"
)

// chatHistoryWindow bounds how many prior turns are threaded into the chat
// prompt for continuity.
const chatHistoryWindow = 15

const standardDisclaimer = "Esta información es educativa y no constituye asesoramiento financiero. Rentabilidades pasadas no garantizan rentabilidades futuras."

// QuestionnaireAnswers are the user-declared inputs to the profile assessment.
type QuestionnaireAnswers struct {
	Age               int     `json:"age"`
	HorizonYears      int     `json:"horizon_years"`
	RiskTolerance     string  `json:"risk_tolerance"` // low | medium | high
	Experience        string  `json:"experience"`     // none | basic | advanced
	Goal              string  `json:"goal"`
	MonthlyInvestable float64 `json:"monthly_investable"`
	LumpSum           float64 `json:"lump_sum"`
}

type ProfileAssessment struct {
	RiskProfile     string   `json:"risk_profile"` // conservador | moderado | agresivo
	Score           int      `json:"score"`        // 0-100
	Summary         string   `json:"summary"`
	Strengths       []string `json:"strengths"`
	Improvements    []string `json:"improvements"`
	NeedsDisclaimer bool     `json:"needs_disclaimer"`
	Disclaimer      string   `json:"disclaimer"`
}

type AssetRecommendation struct {
	Name          string  `json:"name"`
	Ticker        string  `json:"ticker"`
	AssetType     string  `json:"asset_type"`
	AllocationPct float64 `json:"allocation_pct"`
	Rationale     string  `json:"rationale"`
	RiskLevel     string  `json:"risk_level"`
}

type RecommendationResult struct {
	Strategy        string                `json:"strategy"`
	Recommendations []AssetRecommendation `json:"recommendations"`
	Disclaimer      string                `json:"disclaimer"`
}

type EducationSection struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type EducationResult struct {
	Topic        string             `json:"topic"`
	Level        string             `json:"level"`
	Sections     []EducationSection `json:"sections"`
	KeyTakeaways []string           `json:"key_takeaways"`
	Disclaimer   string             `json:"disclaimer"`
}

// ParsedTransaction is one transaction candidate extracted from free text.
type ParsedTransaction struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category,omitempty"`
	Subcategory string  `json:"subcategory,omitempty"`
}

func formatMarketContext(mc *model.MarketContext) string {
	if mc == nil {
		return "Contexto de mercado no disponible."
	}
	return fmt.Sprintf(`Contexto de mercado actual (%s):
- S&P 500: %.2f (%+.2f%% 24h)
- MSCI World: %.2f (%+.2f%% 24h)
- Nasdaq: %.2f (%+.2f%% 24h)
- Bitcoin: %.2f USD (%+.2f%% 24h)
- Ethereum: %.2f USD (%+.2f%% 24h)
- EUR/USD: %.4f, EUR/GBP: %.4f`,
		mc.LastUpdated.Format("2006-01-02 15:04"),
		mc.EquityIndex.Value, mc.EquityIndex.Change24Pct,
		mc.WorldIndex.Value, mc.WorldIndex.Change24Pct,
		mc.TechIndex.Value, mc.TechIndex.Change24Pct,
		mc.Bitcoin.Value, mc.Bitcoin.Change24Pct,
		mc.Ethereum.Value, mc.Ethereum.Change24Pct,
		mc.EurUsd, mc.EurGbp)
}

func formatFinancialSummary(fs *model.FinancialSummary) string {
	if fs == nil {
		return "Resumen financiero no disponible."
	}
	return fmt.Sprintf(`Situación financiera del hogar (últimos %d meses):
- Ingresos mensuales medios: %.2f EUR
- Gasto mensual medio: %.2f EUR
- Tasa de ahorro: %.1f%%
- Fondo de emergencia: %.1f meses de gasto
- Saldo total registrado: %.2f EUR`,
		fs.WindowMonths, fs.MonthlyIncome, fs.MonthlySpending,
		fs.SavingsRatePct, fs.EmergencyFundMonths, fs.TotalBalance)
}

// BuildProfilePrompt renders the questionnaire plus financial and market
// context into a single instruction that demands pure JSON out.
func BuildProfilePrompt(answers QuestionnaireAnswers, fs *model.FinancialSummary, mc *model.MarketContext) string {
	var b strings.Builder
	b.WriteString("Eres un asesor financiero prudente para familias. Evalúa el perfil inversor del usuario.\n\n")
	fmt.Fprintf(&b, `Cuestionario:
- Edad: %d
- Horizonte de inversión: %d años
- Tolerancia al riesgo declarada: %s
- Experiencia: %s
- Objetivo: %s
- Aportación mensual posible: %.2f EUR
- Capital inicial: %.2f EUR

`, answers.Age, answers.HorizonYears, answers.RiskTolerance, answers.Experience,
		answers.Goal, answers.MonthlyInvestable, answers.LumpSum)
	b.WriteString(formatFinancialSummary(fs))
	b.WriteString("\n\n")
	b.WriteString(formatMarketContext(mc))
	b.WriteString(`

Nunca presentes rentabilidades como garantizadas. Responde ÚNICAMENTE con JSON puro, sin texto adicional, con esta forma exacta:
{"risk_profile":"conservador|moderado|agresivo","score":65,"summary":"...","strengths":["..."],"improvements":["..."],"needs_disclaimer":true,"disclaimer":"..."}`)
	return b.String()
}

// ParseProfileResponse never fails: on unparseable output it degrades to a
// conservative fallback assessment.
func ParseProfileResponse(raw string) ProfileAssessment {
	var result ProfileAssessment
	if err := UnmarshalLoose(raw, &result); err != nil || result.RiskProfile == "" {
		if logger.L != nil {
			logger.L.Warn("Profile assessment response not parseable, using fallback", "error", err)
		}
		return ProfileAssessment{
			RiskProfile:     "conservador",
			Score:           50,
			Summary:         "No se pudo analizar la respuesta del asesor. Se asigna un perfil conservador por defecto.",
			NeedsDisclaimer: true,
			Disclaimer:      standardDisclaimer,
		}
	}
	if result.Disclaimer == "" {
		result.NeedsDisclaimer = true
		result.Disclaimer = standardDisclaimer
	}
	return result
}

func BuildRecommendationPrompt(profile *model.InvestmentProfile, fs *model.FinancialSummary, mc *model.MarketContext) string {
	var b strings.Builder
	b.WriteString("Eres un asesor financiero prudente para familias. Propón una cartera diversificada.\n\n")
	fmt.Fprintf(&b, `Perfil del inversor:
- Perfil de riesgo: %s
- Aportación mensual: %.2f EUR
- Capital inicial: %.2f EUR
- Horizonte: %d años

`, profile.RiskProfile, profile.MonthlyInvestable, profile.LumpSum, profile.HorizonYears)
	b.WriteString(formatFinancialSummary(fs))
	b.WriteString("\n\n")
	b.WriteString(formatMarketContext(mc))
	b.WriteString(`

Las asignaciones deben sumar 100. Nunca prometas rentabilidades garantizadas; incluye siempre un disclaimer. Responde ÚNICAMENTE con JSON puro con esta forma exacta:
{"strategy":"...","recommendations":[{"name":"...","ticker":"...","asset_type":"ETF|fondo|bono|accion|cripto","allocation_pct":40,"rationale":"...","risk_level":"bajo|medio|alto"}],"disclaimer":"..."}`)
	return b.String()
}

// ParseRecommendationResponse is fatal on bad output: there is no safe default
// allocation to fall back to.
func ParseRecommendationResponse(raw string) (*RecommendationResult, error) {
	var result RecommendationResult
	if err := UnmarshalLoose(raw, &result); err != nil {
		return nil, fmt.Errorf("parse recommendation response: %w", err)
	}
	if len(result.Recommendations) == 0 {
		return nil, fmt.Errorf("recommendation response contains no allocations")
	}
	if result.Disclaimer == "" {
		result.Disclaimer = standardDisclaimer
	}
	return &result, nil
}

// BuildChatPrompt threads the rolling history window into the prompt. A
// synthetic system turn is injected only when there is no history yet.
func BuildChatPrompt(history []model.ChatMessage, userMessage string, fs *model.FinancialSummary, mc *model.MarketContext) string {
	var b strings.Builder
	b.WriteString("Eres un asesor financiero conversacional para una familia. Responde de forma clara y breve, en el idioma del usuario. Nunca garantices rentabilidades; recuerda que es información educativa cuando des consejos concretos.\n\n")
	b.WriteString(formatFinancialSummary(fs))
	b.WriteString("\n\n")
	b.WriteString(formatMarketContext(mc))
	b.WriteString("\n\nConversación:\n")

	if len(history) == 0 {
		b.WriteString("system: Nueva conversación. Saluda brevemente si procede.\n")
	}
	start := 0
	if len(history) > chatHistoryWindow {
		start = len(history) - chatHistoryWindow
	}
	for _, m := range history[start:] {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&b, "user: %s\nassistant:", userMessage)
	return b.String()
}

// ParseChatResponse strips any stray fences; chat replies are free text.
func ParseChatResponse(raw string) string {
	return StripFences(raw)
}

func BuildEducationPrompt(topic, level string) string {
	return fmt.Sprintf(`Eres un educador financiero. Explica el tema "%s" a nivel %s para una familia sin conocimientos técnicos profundos.

Responde ÚNICAMENTE con JSON puro con esta forma exacta:
{"topic":"%s","level":"%s","sections":[{"title":"...","body":"..."}],"key_takeaways":["..."],"disclaimer":"..."}`,
		topic, level, topic, level)
}

// ParseEducationResponse degrades to a minimal fallback lesson on bad output.
func ParseEducationResponse(raw, topic, level string) EducationResult {
	var result EducationResult
	if err := UnmarshalLoose(raw, &result); err != nil || len(result.Sections) == 0 {
		if logger.L != nil {
			logger.L.Warn("Education response not parseable, using fallback", "topic", topic, "error", err)
		}
		return EducationResult{
			Topic: topic,
			Level: level,
			Sections: []EducationSection{{
				Title: topic,
				Body:  "No se pudo generar el contenido educativo en este momento. Inténtalo de nuevo más tarde.",
			}},
			Disclaimer: standardDisclaimer,
		}
	}
	if result.Disclaimer == "" {
		result.Disclaimer = standardDisclaimer
	}
	return result
}

// BuildParseTransactionsPrompt asks the model to turn free text (a pasted bank
// statement fragment, a dictated note) into transaction candidates, biased
// toward the account's existing categories.
func BuildParseTransactionsPrompt(text string, categories []model.Category) string {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	categoriesList := "ninguna definida"
	if len(names) > 0 {
		categoriesList = strings.Join(names, ", ")
	}
	return fmt.Sprintf(`Extrae movimientos financieros del siguiente texto. Los gastos llevan importe negativo y los ingresos positivo. Usa fechas ISO (YYYY-MM-DD); si falta el año, asume el actual. Categorías disponibles: %s. Deja la categoría vacía si ninguna encaja.

Texto:
%s

Responde ÚNICAMENTE con JSON puro con esta forma exacta:
{"transactions":[{"date":"2025-01-31","description":"...","amount":-12.50,"category":"","subcategory":""}]}`,
		categoriesList, text)
}

// ParseTransactionsResponse fails when no candidates can be extracted; the
// endpoint surfaces that as a client-visible error rather than a fallback.
func ParseTransactionsResponse(raw string) ([]ParsedTransaction, error) {
	var envelope struct {
		Transactions []ParsedTransaction `json:"transactions"`
	}
	if err := UnmarshalLoose(raw, &envelope); err != nil {
		// Some models answer with a bare array instead of the envelope.
		jsonText, extractErr := ExtractJSON(raw)
		if extractErr != nil {
			return nil, extractErr
		}
		var list []ParsedTransaction
		if arrErr := json.Unmarshal([]byte(jsonText), &list); arrErr != nil {
			return nil, fmt.Errorf("parse transactions response: %w", err)
		}
		return list, nil
	}
	return envelope.Transactions, nil
}
