package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bpstack/home-account-showcase-sub001/src/config"
	"github.com/bpstack/home-account-showcase-sub001/src/logger"
	"github.com/bpstack/home-account-showcase-sub001/src/model"
	"github.com/bpstack/home-account-showcase-sub001/src/security"
	"github.com/bpstack/home-account-showcase-sub001/src/services"
	"github.com/bpstack/home-account-showcase-sub001/src/utils"
)

type UserHandler struct {
	db           *sql.DB
	authService  *security.AuthService
	emailService services.EmailService
}

func NewUserHandler(db *sql.DB, authService *security.AuthService, emailService services.EmailService) *UserHandler {
	return &UserHandler{db: db, authService: authService, emailService: emailService}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token        string         `json:"token"`
	RefreshToken string         `json:"refresh_token"`
	User         *model.User    `json:"user"`
	Account      *model.Account `json:"account,omitempty"`
}

// RegisterUserHandler creates the user together with their default account and
// owner membership, then emails a verification link.
func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || len(req.Password) < 8 {
		utils.SendJSONError(w, "Username, email and a password of at least 8 characters are required", http.StatusBadRequest)
		return
	}

	hashed, err := h.authService.HashPassword(req.Password)
	if err != nil {
		logger.L.Error("Failed to hash password during registration", "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		Password:     hashed,
		AuthProvider: "local",
	}
	account, err := model.CreateUserWithDefaultAccount(h.db, user, req.Username)
	if err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			utils.SendJSONError(w, "Username or email already in use", http.StatusConflict)
			return
		}
		logger.L.Error("Failed to create user", "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	token, err := security.GenerateRandomToken()
	if err == nil {
		err = model.SetVerificationToken(h.db, user.ID, token, time.Now().Add(config.Cfg.VerificationTokenExpiry))
	}
	if err != nil {
		logger.L.Error("Failed to store verification token", "userID", user.ID, "error", err)
	} else if err := h.emailService.SendVerificationEmail(user.Email, user.Username, token); err != nil {
		logger.L.Error("Failed to send verification email", "userID", user.ID, "error", err)
	}

	logger.L.Info("User registered", "userID", user.ID, "accountID", account.ID)
	utils.SendJSON(w, map[string]any{
		"message": "Registration successful. Please check your email to verify your account.",
		"user":    user,
		"account": account,
	}, http.StatusCreated)
}

func (h *UserHandler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByEmail(h.db, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		utils.SendJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	if err := h.authService.CompareHashAndPassword(user.Password, req.Password); err != nil {
		utils.SendJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	if user.AuthProvider == "local" && !user.IsEmailVerified {
		utils.SendJSONError(w, "Email not verified", http.StatusForbidden)
		return
	}

	resp, err := h.issueSession(user, r)
	if err != nil {
		logger.L.Error("Failed to create session at login", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	logger.L.Info("User logged in", "userID", user.ID)
	utils.SendJSON(w, resp, http.StatusOK)
}

func (h *UserHandler) issueSession(user *model.User, r *http.Request) (*authResponse, error) {
	token, err := h.authService.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	session := &model.Session{
		UserID:       user.ID,
		Token:        token,
		RefreshToken: refreshToken,
		UserAgent:    r.UserAgent(),
		ClientIP:     r.RemoteAddr,
		ExpiresAt:    time.Now().Add(config.Cfg.AccessTokenExpiry),
	}
	if err := model.CreateSession(h.db, session); err != nil {
		return nil, err
	}
	return &authResponse{Token: token, RefreshToken: refreshToken, User: user}, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshTokenHandler rotates both tokens of the session identified by a valid
// refresh token.
func (h *UserHandler) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		utils.SendJSONError(w, "Refresh token required", http.StatusBadRequest)
		return
	}

	session, err := model.GetSessionByRefreshToken(h.db, req.RefreshToken)
	if err != nil {
		utils.SendJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}
	user, err := model.GetUserByID(h.db, session.UserID)
	if err != nil {
		utils.SendJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	token, err := h.authService.GenerateToken(user.ID, user.Email)
	if err != nil {
		logger.L.Error("Failed to generate token on refresh", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err == nil {
		err = model.RotateSessionTokens(h.db, session.ID, token, refreshToken, time.Now().Add(config.Cfg.AccessTokenExpiry))
	}
	if err != nil {
		logger.L.Error("Failed to rotate session tokens", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, &authResponse{Token: token, RefreshToken: refreshToken, User: user}, http.StatusOK)
}

func (h *UserHandler) LogoutUserHandler(w http.ResponseWriter, r *http.Request) {
	tokenString := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if err := model.DeleteSessionByToken(h.db, tokenString); err != nil {
		logger.L.Error("Failed to delete session at logout", "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]string{"message": "Logged out"}, http.StatusOK)
}

// VerifyEmailHandler consumes the query-param token from the emailed link.
func (h *UserHandler) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		utils.SendJSONError(w, "Verification token required", http.StatusBadRequest)
		return
	}
	if err := model.VerifyEmailByToken(h.db, token); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			utils.SendJSONError(w, "Invalid or expired verification token", http.StatusBadRequest)
			return
		}
		logger.L.Error("Failed to verify email", "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]string{"message": "Email verified successfully"}, http.StatusOK)
}

// RequestPasswordResetHandler always answers 200 so the endpoint cannot be
// used to probe which emails are registered.
func (h *UserHandler) RequestPasswordResetHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		utils.SendJSONError(w, "Email required", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByEmail(h.db, strings.ToLower(strings.TrimSpace(req.Email)))
	if err == nil {
		token, tokenErr := security.GenerateRandomToken()
		if tokenErr == nil {
			tokenErr = model.SetPasswordResetToken(h.db, user.ID, token, time.Now().Add(config.Cfg.PasswordResetTokenExpiry))
		}
		if tokenErr == nil {
			tokenErr = h.emailService.SendPasswordResetEmail(user.Email, user.Username, token)
		}
		if tokenErr != nil {
			logger.L.Error("Failed to process password reset request", "userID", user.ID, "error", tokenErr)
		}
	}

	utils.SendJSON(w, map[string]string{
		"message": "If that email is registered, a password reset link has been sent.",
	}, http.StatusOK)
}

func (h *UserHandler) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" || len(req.Password) < 8 {
		utils.SendJSONError(w, "Token and a password of at least 8 characters are required", http.StatusBadRequest)
		return
	}

	hashed, err := h.authService.HashPassword(req.Password)
	if err != nil {
		logger.L.Error("Failed to hash password during reset", "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if err := model.ResetPasswordByToken(h.db, req.Token, hashed); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			utils.SendJSONError(w, "Invalid or expired reset token", http.StatusBadRequest)
			return
		}
		logger.L.Error("Failed to reset password", "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]string{"message": "Password reset successfully"}, http.StatusOK)
}

// MeHandler returns the authenticated user's profile.
func (h *UserHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	user, err := model.GetUserByID(h.db, userID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	utils.SendJSON(w, user, http.StatusOK)
}
