package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/bpstack/home-account-showcase-sub001/src/logger"
	"github.com/bpstack/home-account-showcase-sub001/src/model"
	"github.com/bpstack/home-account-showcase-sub001/src/utils"
)

type AccountHandler struct {
	db *sql.DB
}

func NewAccountHandler(db *sql.DB) *AccountHandler {
	return &AccountHandler{db: db}
}

// pathID parses a numeric path parameter, writing a 400 on garbage.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		utils.SendJSONError(w, "Invalid "+name+" in path", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *AccountHandler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		utils.SendJSONError(w, "Account name required", http.StatusBadRequest)
		return
	}

	account, err := model.CreateAccountWithOwner(h.db, strings.TrimSpace(req.Name), userID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	logger.L.Info("Account created", "accountID", account.ID, "ownerID", userID)
	utils.SendJSON(w, account, http.StatusCreated)
}

func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accounts, err := model.ListAccountsForUser(h.db, userID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	utils.SendJSON(w, accounts, http.StatusOK)
}

func (h *AccountHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	account, err := model.GetAccountForUser(h.db, accountID, userID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	utils.SendJSON(w, account, http.StatusOK)
}

func (h *AccountHandler) HandleRenameAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		utils.SendJSONError(w, "Account name required", http.StatusBadRequest)
		return
	}
	if err := model.RenameAccount(h.db, accountID, userID, strings.TrimSpace(req.Name)); err != nil {
		writeModelError(w, err)
		return
	}
	utils.SendJSON(w, map[string]string{"message": "Account renamed"}, http.StatusOK)
}

func (h *AccountHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := model.DeleteAccount(h.db, accountID, userID); err != nil {
		writeModelError(w, err)
		return
	}
	logger.L.Info("Account deleted", "accountID", accountID, "byUserID", userID)
	utils.SendJSON(w, map[string]string{"message": "Account deleted"}, http.StatusOK)
}

func (h *AccountHandler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	members, err := model.ListMembers(h.db, accountID, userID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	utils.SendJSON(w, members, http.StatusOK)
}

// HandleAddMember invites an existing user into the account by email.
func (h *AccountHandler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		utils.SendJSONError(w, "Member email required", http.StatusBadRequest)
		return
	}

	newMember, err := model.GetUserByEmail(h.db, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			utils.SendJSONError(w, "No user registered with that email", http.StatusNotFound)
			return
		}
		writeModelError(w, err)
		return
	}
	if err := model.AddMember(h.db, accountID, userID, newMember.ID); err != nil {
		writeModelError(w, err)
		return
	}
	logger.L.Info("Member added to account", "accountID", accountID, "memberID", newMember.ID, "byUserID", userID)
	utils.SendJSON(w, map[string]string{"message": "Member added"}, http.StatusCreated)
}

func (h *AccountHandler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	memberID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	if err := model.RemoveMember(h.db, accountID, userID, memberID); err != nil {
		writeModelError(w, err)
		return
	}
	utils.SendJSON(w, map[string]string{"message": "Member removed"}, http.StatusOK)
}
