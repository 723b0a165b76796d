package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bpstack/home-account-showcase-sub001/src/model"
	"github.com/bpstack/home-account-showcase-sub001/src/utils"
)

type CategoryHandler struct {
	db *sql.DB
}

func NewCategoryHandler(db *sql.DB) *CategoryHandler {
	return &CategoryHandler{db: db}
}

func validCategoryKind(kind string) bool {
	return kind == "expense" || kind == "income"
}

func (h *CategoryHandler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
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
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		utils.SendJSONError(w, "Category name required", http.StatusBadRequest)
		return
	}
	if !validCategoryKind(req.Kind) {
		utils.SendJSONError(w, "Category kind must be 'expense' or 'income'", http.StatusBadRequest)
		return
	}

	category := &model.Category{AccountID: accountID, Name: strings.TrimSpace(req.Name), Kind: req.Kind}
	if err := model.CreateCategory(h.db, userID, category); err != nil {
		writeModelError(w, err)
		return
	}
	utils.SendJSON(w, category, http.StatusCreated)
}

func (h *CategoryHandler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	categories, err := model.ListCategories(h.db, accountID, userID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	utils.SendJSON(w, categories, http.StatusOK)
}

func (h *CategoryHandler) HandleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	categoryID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		utils.SendJSONError(w, "Category name required", http.StatusBadRequest)
		return
	}
	if !validCategoryKind(req.Kind) {
		utils.SendJSONError(w, "Category kind must be 'expense' or 'income'", http.StatusBadRequest)
		return
	}
	if err := model.UpdateCategory(h.db, categoryID, userID, strings.TrimSpace(req.Name), req.Kind); err != nil {
		writeModelError(w, err)
		return
	}
	utils.SendJSON(w, map[string]string{"message": "Category updated"}, http.StatusOK)
}

// HandleDeleteCategory removes the category; transactions referencing it are
// kept with their category cleared.
func (h *CategoryHandler) HandleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	categoryID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := model.DeleteCategory(h.db, categoryID, userID); err != nil {
		writeModelError(w, err)
		return
	}
	utils.SendJSON(w, map[string]string{"message": "Category deleted"}, http.StatusOK)
}

func (h *CategoryHandler) HandleCreateSubcategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	categoryID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		utils.SendJSONError(w, "Subcategory name required", http.StatusBadRequest)
		return
	}

	subcategory := &model.Subcategory{CategoryID: categoryID, Name: strings.TrimSpace(req.Name)}
	if err := model.CreateSubcategory(h.db, userID, subcategory); err != nil {
		writeModelError(w, err)
		return
	}
	utils.SendJSON(w, subcategory, http.StatusCreated)
}

func (h *CategoryHandler) HandleListSubcategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	categoryID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	subcategories, err := model.ListSubcategories(h.db, categoryID, userID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	utils.SendJSON(w, subcategories, http.StatusOK)
}

func (h *CategoryHandler) HandleDeleteSubcategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	subcategoryID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := model.DeleteSubcategory(h.db, subcategoryID, userID); err != nil {
		writeModelError(w, err)
		return
	}
	utils.SendJSON(w, map[string]string{"message": "Subcategory deleted"}, http.StatusOK)
}
