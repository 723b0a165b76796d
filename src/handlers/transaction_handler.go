package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/bpstack/home-account-showcase-sub001/src/config"
	"github.com/bpstack/home-account-showcase-sub001/src/logger"
	"github.com/bpstack/home-account-showcase-sub001/src/model"
	"github.com/bpstack/home-account-showcase-sub001/src/services"
	"github.com/bpstack/home-account-showcase-sub001/src/utils"
)

// summaryInvalidator drops cached financial summaries after transaction
// writes. Satisfied by services.InvestmentService.
type summaryInvalidator interface {
	InvalidateSummary(accountID int64)
}

type TransactionHandler struct {
	db            *sql.DB
	importService *services.ImportService
	summaries     summaryInvalidator
}

func NewTransactionHandler(db *sql.DB, importService *services.ImportService, summaries summaryInvalidator) *TransactionHandler {
	return &TransactionHandler{db: db, importService: importService, summaries: summaries}
}

type transactionRequest struct {
	CategoryID    *int64  `json:"category_id"`
	SubcategoryID *int64  `json:"subcategory_id"`
	Date          string  `json:"date"`
	Description   string  `json:"description"`
	Amount        float64 `json:"amount"`
}

func (req *transactionRequest) validate() string {
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return "Date must be in YYYY-MM-DD format"
	}
	if strings.TrimSpace(req.Description) == "" {
		return "Description required"
	}
	return ""
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func (h *TransactionHandler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		utils.SendJSONError(w, msg, http.StatusBadRequest)
		return
	}

	t := &model.Transaction{
		AccountID:     accountID,
		CategoryID:    nullInt64(req.CategoryID),
		SubcategoryID: nullInt64(req.SubcategoryID),
		Date:          req.Date,
		Description:   strings.TrimSpace(req.Description),
		Amount:        req.Amount,
	}
	if err := model.CreateTransaction(h.db, userID, t); err != nil {
		writeModelError(w, err)
		return
	}
	h.summaries.InvalidateSummary(accountID)
	utils.SendJSON(w, t, http.StatusCreated)
}

// HandleListTransactions supports optional from/to date filters.
func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	for _, d := range []string{from, to} {
		if d != "" {
			if _, err := time.Parse("2006-01-02", d); err != nil {
				utils.SendJSONError(w, "Date filters must be in YYYY-MM-DD format", http.StatusBadRequest)
				return
			}
		}
	}

	transactions, err := model.ListTransactions(h.db, accountID, userID, from, to)
	if err != nil {
		writeModelError(w, err)
		return
	}
	utils.SendJSON(w, transactions, http.StatusOK)
}

func (h *TransactionHandler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	txID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := model.GetTransactionForUser(h.db, txID, userID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	utils.SendJSON(w, t, http.StatusOK)
}

func (h *TransactionHandler) HandleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	txID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		utils.SendJSONError(w, msg, http.StatusBadRequest)
		return
	}

	existing, err := model.GetTransactionForUser(h.db, txID, userID)
	if err != nil {
		writeModelError(w, err)
		return
	}

	t := &model.Transaction{
		ID:            txID,
		CategoryID:    nullInt64(req.CategoryID),
		SubcategoryID: nullInt64(req.SubcategoryID),
		Date:          req.Date,
		Description:   strings.TrimSpace(req.Description),
		Amount:        req.Amount,
	}
	if err := model.UpdateTransaction(h.db, userID, t); err != nil {
		writeModelError(w, err)
		return
	}
	h.summaries.InvalidateSummary(existing.AccountID)
	utils.SendJSON(w, map[string]string{"message": "Transaction updated"}, http.StatusOK)
}

func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	txID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	existing, err := model.GetTransactionForUser(h.db, txID, userID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	if err := model.DeleteTransaction(h.db, txID, userID); err != nil {
		writeModelError(w, err)
		return
	}
	h.summaries.InvalidateSummary(existing.AccountID)
	utils.SendJSON(w, map[string]string{"message": "Transaction deleted"}, http.StatusOK)
}

// HandleGetSummary returns the trailing-window financial summary used both by
// the dashboard and as advisor prompt context.
func (h *TransactionHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	summary, err := model.SummarizeAccountFinances(h.db, accountID, userID, 3)
	if err != nil {
		writeModelError(w, err)
		return
	}
	utils.SendJSON(w, summary, http.StatusOK)
}

// HandleImportCSV accepts a multipart upload and records all parsed rows under
// one import batch.
func (h *TransactionHandler) HandleImportCSV(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.Cfg.MaxUploadSizeBytes)
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		utils.SendJSONError(w, "Upload too large or malformed", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		utils.SendJSONError(w, "A 'file' form field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	batch, err := h.importService.ImportCSV(accountID, userID, header.Filename, file)
	if err != nil {
		if isModelError(err) {
			writeModelError(w, err)
			return
		}
		logger.L.Warn("CSV import rejected", "accountID", accountID, "filename", header.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.summaries.InvalidateSummary(accountID)
	utils.SendJSON(w, batch, http.StatusCreated)
}
