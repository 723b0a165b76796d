package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertInvestmentProfileReplacesExisting(t *testing.T) {
	db := newTestDB(t)
	owner, account := newTestUser(t, db, "ana")

	first := &InvestmentProfile{AccountID: account.ID, RiskProfile: "conservador", MonthlyInvestable: 200, HorizonYears: 10}
	require.NoError(t, UpsertInvestmentProfile(db, owner.ID, first))

	second := &InvestmentProfile{AccountID: account.ID, RiskProfile: "agresivo", MonthlyInvestable: 500, HorizonYears: 25}
	require.NoError(t, UpsertInvestmentProfile(db, owner.ID, second))

	got, err := GetInvestmentProfile(db, account.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "agresivo", got.RiskProfile)
	assert.Equal(t, 25, got.HorizonYears)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM investment_profiles WHERE account_id = ?`, account.ID).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestGetInvestmentProfileMissing(t *testing.T) {
	db := newTestDB(t)
	owner, account := newTestUser(t, db, "ana")

	_, err := GetInvestmentProfile(db, account.ID, owner.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvestmentProfileIsTenantScoped(t *testing.T) {
	db := newTestDB(t)
	owner, account := newTestUser(t, db, "ana")
	outsider, _ := newTestUser(t, db, "bruno")

	profile := &InvestmentProfile{AccountID: account.ID, RiskProfile: "moderado"}
	require.NoError(t, UpsertInvestmentProfile(db, owner.ID, profile))

	_, err := GetInvestmentProfile(db, account.ID, outsider.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, UpsertInvestmentProfile(db, outsider.ID, &InvestmentProfile{AccountID: account.ID, RiskProfile: "agresivo"}), ErrForbidden)
}

func TestChatSessionGetOrCreate(t *testing.T) {
	db := newTestDB(t)
	owner, account := newTestUser(t, db, "ana")

	external := uuid.NewString()
	created, err := GetOrCreateChatSession(db, account.ID, owner.ID, "", external)
	require.NoError(t, err)
	assert.Equal(t, external, created.ExternalID)

	// A known external ID resolves to the same session instead of creating one.
	resolved, err := GetOrCreateChatSession(db, account.ID, owner.ID, external, uuid.NewString())
	require.NoError(t, err)
	assert.Equal(t, created.ID, resolved.ID)

	// An unknown external ID starts a fresh session.
	fresh, err := GetOrCreateChatSession(db, account.ID, owner.ID, uuid.NewString(), uuid.NewString())
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, fresh.ID)
}

func TestChatHistoryWindowing(t *testing.T) {
	db := newTestDB(t)
	owner, account := newTestUser(t, db, "ana")

	session, err := GetOrCreateChatSession(db, account.ID, owner.ID, "", uuid.NewString())
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		require.NoError(t, AppendChatMessage(db, &ChatMessage{
			SessionID: session.ID,
			Role:      role,
			Content:   string(rune('a' + i)),
		}))
	}

	recent, err := GetRecentChatMessages(db, session.ID, 15)
	require.NoError(t, err)
	require.Len(t, recent, 15)
	// Chronological order, trailing window.
	assert.Equal(t, string(rune('a'+5)), recent[0].Content)
	assert.Equal(t, string(rune('a'+19)), recent[14].Content)
}

func TestChatSessionsAreTenantScoped(t *testing.T) {
	db := newTestDB(t)
	_, account := newTestUser(t, db, "ana")
	outsider, _ := newTestUser(t, db, "bruno")

	_, err := GetOrCreateChatSession(db, account.ID, outsider.ID, "", uuid.NewString())
	assert.ErrorIs(t, err, ErrForbidden)
}
