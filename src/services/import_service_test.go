package services

import (
	"database/sql"
	"strings"
	"testing"

	"github.com/bpstack/home-account-showcase-sub001/src/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServiceTestUser(t *testing.T, db *sql.DB, name string) (*model.User, *model.Account) {
	t.Helper()
	user := &model.User{
		Username:        name,
		Email:           name + "@example.com",
		Password:        "hashed",
		AuthProvider:    "local",
		IsEmailVerified: true,
	}
	account, err := model.CreateUserWithDefaultAccount(db, user, name+"'s account")
	require.NoError(t, err)
	return user, account
}

func TestImportCSVEnglishHeader(t *testing.T) {
	db := newServiceTestDB(t)
	user, account := newServiceTestUser(t, db, "importer")
	svc := NewImportService(db)

	csvBody := strings.Join([]string{
		"date,description,amount",
		"2026-01-10,Nomina enero,2100.00",
		"2026-01-12,Supermercado,-84.37",
	}, "\n")

	batch, err := svc.ImportCSV(account.ID, user.ID, "enero.csv", strings.NewReader(csvBody))
	require.NoError(t, err)
	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, 2, batch.RowCount)
	assert.Equal(t, "enero.csv", batch.Filename)

	transactions, err := model.ListTransactions(db, account.ID, user.ID, "", "")
	require.NoError(t, err)
	require.Len(t, transactions, 2)
	for _, tr := range transactions {
		assert.Equal(t, batch.ID, tr.ImportBatchID.String)
	}
}

func TestImportCSVSpanishHeaderAndFormats(t *testing.T) {
	db := newServiceTestDB(t)
	user, account := newServiceTestUser(t, db, "importer-es")
	svc := NewImportService(db)

	csvBody := strings.Join([]string{
		"Fecha,Concepto,Importe",
		`15/01/2026,Alquiler,"-1.150,00 €"`,
		"",
		`16-01-2026,Transferencia recibida,"1.234,56"`,
	}, "\n")

	batch, err := svc.ImportCSV(account.ID, user.ID, "extracto.csv", strings.NewReader(csvBody))
	require.NoError(t, err)
	assert.Equal(t, 2, batch.RowCount, "blank lines are skipped")

	transactions, err := model.ListTransactions(db, account.ID, user.ID, "", "")
	require.NoError(t, err)
	require.Len(t, transactions, 2)

	byDescription := map[string]model.Transaction{}
	for _, tr := range transactions {
		byDescription[tr.Description] = tr
	}
	assert.Equal(t, "2026-01-15", byDescription["Alquiler"].Date)
	assert.Equal(t, -1150.00, byDescription["Alquiler"].Amount)
	assert.Equal(t, "2026-01-16", byDescription["Transferencia recibida"].Date)
	assert.Equal(t, 1234.56, byDescription["Transferencia recibida"].Amount)
}

func TestImportCSVRejectsMissingColumns(t *testing.T) {
	db := newServiceTestDB(t)
	user, account := newServiceTestUser(t, db, "importer-cols")
	svc := NewImportService(db)

	_, err := svc.ImportCSV(account.ID, user.ID, "bad.csv", strings.NewReader("fecha,concepto\n2026-01-10,algo"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must contain date, description and amount")
}

func TestImportCSVRejectsEmptyFile(t *testing.T) {
	db := newServiceTestDB(t)
	user, account := newServiceTestUser(t, db, "importer-empty")
	svc := NewImportService(db)

	_, err := svc.ImportCSV(account.ID, user.ID, "empty.csv", strings.NewReader(""))
	require.Error(t, err)

	_, err = svc.ImportCSV(account.ID, user.ID, "header-only.csv", strings.NewReader("date,description,amount\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no transactions")
}

func TestImportCSVBadRowReportsLineNumberAndImportsNothing(t *testing.T) {
	db := newServiceTestDB(t)
	user, account := newServiceTestUser(t, db, "importer-bad-row")
	svc := NewImportService(db)

	csvBody := strings.Join([]string{
		"date,description,amount",
		"2026-01-10,Valida,10.00",
		"10 de enero,Invalida,20.00",
	}, "\n")

	_, err := svc.ImportCSV(account.ID, user.ID, "mixed.csv", strings.NewReader(csvBody))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")

	transactions, listErr := model.ListTransactions(db, account.ID, user.ID, "", "")
	require.NoError(t, listErr)
	assert.Empty(t, transactions, "a failed import writes nothing")
}

func TestNormalizeDateLayouts(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
	}{
		{"2026-03-05", "2026-03-05"},
		{"05-03-2026", "2026-03-05"},
		{"05/03/2026", "2026-03-05"},
		{"2026/03/05", "2026-03-05"},
	} {
		got, err := normalizeDate(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := normalizeDate("marzo 5")
	assert.Error(t, err)
}

func TestParseAmountNotations(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want float64
	}{
		{"1234.56", 1234.56},
		{"1.234,56", 1234.56},
		{"-1.150,00 €", -1150.00},
		{"0,99", 0.99},
		{"2100", 2100},
	} {
		got, err := parseAmount(strings.TrimSpace(tc.in))
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := parseAmount("doce")
	assert.Error(t, err)
}
