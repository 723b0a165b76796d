package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/bpstack/home-account-showcase-sub001/src/config"
	"github.com/bpstack/home-account-showcase-sub001/src/logger"
	"github.com/bpstack/home-account-showcase-sub001/src/model"
	"github.com/bpstack/home-account-showcase-sub001/src/security"
)

// OAuthHandler implements Google sign-in. Successful callbacks redirect to the
// frontend with an app-issued JWT; failures redirect with an error code.
type OAuthHandler struct {
	userHandler *UserHandler
	oauthConfig *oauth2.Config
	state       string
}

func NewOAuthHandler(userHandler *UserHandler, cfg *config.AppConfig) *OAuthHandler {
	state, err := security.GenerateRandomToken()
	if err != nil {
		logger.L.Error("Failed to generate OAuth state", "error", err)
		state = "fallback-oauth-state"
	}
	return &OAuthHandler{
		userHandler: userHandler,
		oauthConfig: &oauth2.Config{
			RedirectURL:  cfg.GoogleRedirectURL,
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		state: state,
	}
}

func (h *OAuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.oauthConfig.AuthCodeURL(h.state), http.StatusTemporaryRedirect)
}

func (h *OAuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, fmt.Sprintf("%s/signin?error=%s", config.Cfg.FrontendBaseURL, code), http.StatusTemporaryRedirect)
}

func (h *OAuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("state") != h.state {
		logger.L.Warn("Invalid OAuth state in Google callback")
		h.redirectWithError(w, r, "invalid_state")
		return
	}

	token, err := h.oauthConfig.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		logger.L.Error("Failed to exchange OAuth code", "error", err)
		h.redirectWithError(w, r, "token_exchange_failed")
		return
	}

	client := h.oauthConfig.Client(r.Context(), token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		logger.L.Error("Failed to fetch Google user info", "error", err)
		h.redirectWithError(w, r, "userinfo_failed")
		return
	}
	defer resp.Body.Close()

	var googleUser struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Name     string `json:"name"`
		Verified bool   `json:"verified_email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&googleUser); err != nil {
		logger.L.Error("Failed to decode Google user info", "error", err)
		h.redirectWithError(w, r, "userinfo_parse_failed")
		return
	}
	if !googleUser.Verified || googleUser.Email == "" {
		h.redirectWithError(w, r, "email_not_verified_by_google")
		return
	}

	user, err := model.GetUserByEmail(h.userHandler.db, googleUser.Email)
	if err != nil {
		newUser := &model.User{
			Username:        googleUser.Email,
			Email:           googleUser.Email,
			AuthProvider:    "google",
			IsEmailVerified: true,
		}
		accountName := googleUser.Name
		if accountName == "" {
			accountName = googleUser.Email
		}
		if _, err := model.CreateUserWithDefaultAccount(h.userHandler.db, newUser, accountName); err != nil {
			logger.L.Error("Failed to create user from Google sign-in", "error", err)
			h.redirectWithError(w, r, "user_creation_failed")
			return
		}
		user = newUser
	} else if user.AuthProvider == "local" {
		logger.L.Warn("Google sign-in attempted for existing local account", "email", user.Email)
		h.redirectWithError(w, r, "email_already_exists_local")
		return
	}

	appToken, err := h.userHandler.authService.GenerateToken(user.ID, user.Email)
	if err != nil {
		logger.L.Error("Failed to issue token for Google user", "userID", user.ID, "error", err)
		h.redirectWithError(w, r, "token_generation_failed")
		return
	}

	userJSON, _ := json.Marshal(user)
	redirectURL := fmt.Sprintf("%s/auth/google/callback?token=%s&user=%s",
		config.Cfg.FrontendBaseURL, appToken, url.QueryEscape(string(userJSON)))
	http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
}
