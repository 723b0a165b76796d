package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bpstack/home-account-showcase-sub001/src/logger"
	"github.com/bpstack/home-account-showcase-sub001/src/model"
	"github.com/bpstack/home-account-showcase-sub001/src/security"
	"github.com/bpstack/home-account-showcase-sub001/src/utils"
)

type contextKey string

const userIDContextKey contextKey = "userID"

// UserIDFromContext returns the authenticated user ID stored by AuthMiddleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDContextKey).(int64)
	return id, ok
}

// AuthMiddleware validates the bearer token and confirms a live session for
// locally registered users. Expired tokens get a distinct message so clients
// know to refresh instead of re-authenticating.
func (h *UserHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			logger.L.Debug("AuthMiddleware: Authorization header missing", "path", r.URL.Path)
			utils.SendJSONError(w, "Authorization header required", http.StatusUnauthorized)
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			utils.SendJSONError(w, "Malformed token", http.StatusUnauthorized)
			return
		}

		claims, err := h.authService.ValidateToken(tokenString)
		if err != nil {
			logger.L.Warn("AuthMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
			if errors.Is(err, security.ErrTokenExpired) {
				utils.SendJSONError(w, "Token expired", http.StatusUnauthorized)
			} else {
				utils.SendJSONError(w, "Invalid token", http.StatusUnauthorized)
			}
			return
		}

		if _, err := model.GetSessionByToken(h.db, tokenString); err != nil {
			// Google sign-in tokens have no local session row; local accounts
			// without a session were logged out or revoked.
			user, userErr := model.GetUserByID(h.db, claims.UserID)
			if userErr != nil || user.AuthProvider == "local" {
				logger.L.Warn("AuthMiddleware: No active session for token", "userID", claims.UserID, "path", r.URL.Path)
				utils.SendJSONError(w, "Invalid or expired session", http.StatusUnauthorized)
				return
			}
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireUser extracts the authenticated user or writes a 401. Handlers behind
// AuthMiddleware use it instead of re-deriving the claim.
func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return 0, false
	}
	return userID, true
}

// isModelError reports whether the error belongs to the model taxonomy and
// therefore has a specific HTTP mapping.
func isModelError(err error) bool {
	return errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrForbidden) ||
		errors.Is(err, model.ErrNotOwner) || errors.Is(err, model.ErrDuplicate)
}

// writeModelError maps the model error taxonomy onto HTTP statuses.
func writeModelError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		utils.SendJSONError(w, "Resource not found", http.StatusNotFound)
	case errors.Is(err, model.ErrNotOwner):
		utils.SendJSONError(w, "Owner role required", http.StatusForbidden)
	case errors.Is(err, model.ErrForbidden):
		utils.SendJSONError(w, "Access denied", http.StatusForbidden)
	case errors.Is(err, model.ErrDuplicate):
		utils.SendJSONError(w, "Resource already exists", http.StatusConflict)
	default:
		logger.L.Error("Unhandled error in handler", "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}
