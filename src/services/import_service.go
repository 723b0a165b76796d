package services

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bpstack/home-account-showcase-sub001/src/logger"
	"github.com/bpstack/home-account-showcase-sub001/src/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ImportService turns uploaded CSV statements into transaction rows recorded
// under a single import batch.
type ImportService struct {
	db *sql.DB
}

func NewImportService(db *sql.DB) *ImportService {
	return &ImportService{db: db}
}

// ImportCSV parses a bank statement export with a header row of
// date,description,amount and stores all rows atomically under a fresh batch.
// Amounts are parsed as decimals so "1.234,56" style statements do not lose
// cents to float rounding.
func (s *ImportService) ImportCSV(accountID, userID int64, filename string, r io.Reader) (*model.ImportBatch, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	batch := &model.ImportBatch{
		ID:        uuid.NewString(),
		AccountID: accountID,
		UserID:    userID,
		Filename:  filename,
	}

	var transactions []model.Transaction
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		if isBlankRecord(record) {
			continue
		}

		t, err := recordToTransaction(record, cols, accountID, batch.ID)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		transactions = append(transactions, *t)
	}
	if len(transactions) == 0 {
		return nil, fmt.Errorf("csv file contains no transactions")
	}

	batch.RowCount = len(transactions)
	if err := model.InsertImportBatch(s.db, userID, batch, transactions); err != nil {
		return nil, err
	}
	if logger.L != nil {
		logger.L.Info("CSV import completed", "batchID", batch.ID, "accountID", accountID, "rows", batch.RowCount)
	}
	return batch, nil
}

type csvColumns struct {
	date        int
	description int
	amount      int
}

func resolveColumns(header []string) (csvColumns, error) {
	cols := csvColumns{date: -1, description: -1, amount: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date", "fecha":
			cols.date = i
		case "description", "concepto", "descripcion", "descripción":
			cols.description = i
		case "amount", "importe":
			cols.amount = i
		}
	}
	if cols.date < 0 || cols.description < 0 || cols.amount < 0 {
		return cols, fmt.Errorf("csv header must contain date, description and amount columns")
	}
	return cols, nil
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func recordToTransaction(record []string, cols csvColumns, accountID int64, batchID string) (*model.Transaction, error) {
	max := cols.date
	if cols.description > max {
		max = cols.description
	}
	if cols.amount > max {
		max = cols.amount
	}
	if len(record) <= max {
		return nil, fmt.Errorf("row has %d fields, expected at least %d", len(record), max+1)
	}

	date, err := normalizeDate(strings.TrimSpace(record[cols.date]))
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(strings.TrimSpace(record[cols.amount]))
	if err != nil {
		return nil, err
	}

	return &model.Transaction{
		AccountID:     accountID,
		Date:          date,
		Description:   strings.TrimSpace(record[cols.description]),
		Amount:        amount,
		ImportBatchID: sql.NullString{String: batchID, Valid: true},
	}, nil
}

var importDateLayouts = []string{"2006-01-02", "02-01-2006", "02/01/2006", "2006/01/02"}

func normalizeDate(s string) (string, error) {
	for _, layout := range importDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", s)
}

// parseAmount accepts both "1234.56" and European "1.234,56" notations.
func parseAmount(s string) (float64, error) {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimSuffix(s, "€")
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("unrecognized amount %q", s)
	}
	f, _ := d.Round(2).Float64()
	return f, nil
}
