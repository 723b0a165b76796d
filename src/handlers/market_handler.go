package handlers

import (
	"net/http"

	"github.com/bpstack/home-account-showcase-sub001/src/services"
	"github.com/bpstack/home-account-showcase-sub001/src/utils"
)

type MarketHandler struct {
	marketService *services.MarketService
}

func NewMarketHandler(marketService *services.MarketService) *MarketHandler {
	return &MarketHandler{marketService: marketService}
}

// HandleGetMarketData serves the aggregate market context with its trend
// label. Always 200: upstream failures degrade to fallback values.
func (h *MarketHandler) HandleGetMarketData(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, h.marketService.GetMarketDataFull(r.Context()), http.StatusOK)
}

func (h *MarketHandler) HandleGetQuickSummary(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, h.marketService.GetQuickSummary(r.Context()), http.StatusOK)
}
