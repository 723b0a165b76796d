package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bpstack/home-account-showcase-sub001/src/ai"
	"github.com/bpstack/home-account-showcase-sub001/src/config"
	"github.com/bpstack/home-account-showcase-sub001/src/database"
	"github.com/bpstack/home-account-showcase-sub001/src/handlers"
	"github.com/bpstack/home-account-showcase-sub001/src/logger"
	"github.com/bpstack/home-account-showcase-sub001/src/security"
	"github.com/bpstack/home-account-showcase-sub001/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			config.Cfg.FrontendBaseURL: true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Requested-With, Cookie, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "X-CSRF-Token, ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Home account backend server starting...")

	if len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}
	if len(config.Cfg.CSRFAuthKey) < 32 {
		logger.L.Error("CSRF_AUTH_KEY must be at least 32 bytes long.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing services and handlers...")
	authService := security.NewAuthService(config.Cfg.JWTSecret, config.Cfg.BcryptCost, config.Cfg.AccessTokenExpiry)
	emailService := services.NewEmailService(config.Cfg)
	providerOverride := ai.NewProviderOverride()

	marketService := services.NewMarketService(database.DB, services.NewMarketFeeds(), config.Cfg.MarketCacheTTL)
	investmentService := services.NewInvestmentService(database.DB, config.Cfg, providerOverride, marketService)
	importService := services.NewImportService(database.DB)

	userHandler := handlers.NewUserHandler(database.DB, authService, emailService)
	oauthHandler := handlers.NewOAuthHandler(userHandler, config.Cfg)
	accountHandler := handlers.NewAccountHandler(database.DB)
	categoryHandler := handlers.NewCategoryHandler(database.DB)
	txHandler := handlers.NewTransactionHandler(database.DB, importService, investmentService)
	aiHandler := handlers.NewAIHandler(investmentService)
	investmentHandler := handlers.NewInvestmentHandler(investmentService)
	marketHandler := handlers.NewMarketHandler(marketService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	// Public routes: token endpoints, email verification and the OAuth dance.
	apiRouter.HandleFunc("GET /api/auth/csrf", handlers.GetCSRFToken)
	apiRouter.HandleFunc("GET /api/auth/verify-email", userHandler.VerifyEmailHandler)
	apiRouter.HandleFunc("GET /api/auth/google/login", oauthHandler.HandleGoogleLogin)
	apiRouter.HandleFunc("GET /api/auth/google/callback", oauthHandler.HandleGoogleCallback)

	csrfProtection := handlers.CSRFMiddleware()

	authActionRouter := http.NewServeMux()
	authActionRouter.HandleFunc("POST /login", userHandler.LoginUserHandler)
	authActionRouter.HandleFunc("POST /register", userHandler.RegisterUserHandler)
	authActionRouter.HandleFunc("POST /refresh", userHandler.RefreshTokenHandler)
	authActionRouter.Handle("POST /logout", userHandler.AuthMiddleware(http.HandlerFunc(userHandler.LogoutUserHandler)))
	authActionRouter.HandleFunc("POST /request-password-reset", userHandler.RequestPasswordResetHandler)
	authActionRouter.HandleFunc("POST /reset-password", userHandler.ResetPasswordHandler)
	apiRouter.Handle("/api/auth/", http.StripPrefix("/api/auth", csrfProtection(authActionRouter)))

	applyCsrfAndAuth := func(handler http.HandlerFunc) http.Handler {
		return csrfProtection(userHandler.AuthMiddleware(handler))
	}

	apiRouter.Handle("GET /api/users/me", applyCsrfAndAuth(userHandler.MeHandler))

	// Accounts and membership.
	apiRouter.Handle("POST /api/accounts", applyCsrfAndAuth(accountHandler.HandleCreateAccount))
	apiRouter.Handle("GET /api/accounts", applyCsrfAndAuth(accountHandler.HandleListAccounts))
	apiRouter.Handle("GET /api/accounts/{id}", applyCsrfAndAuth(accountHandler.HandleGetAccount))
	apiRouter.Handle("PUT /api/accounts/{id}", applyCsrfAndAuth(accountHandler.HandleRenameAccount))
	apiRouter.Handle("DELETE /api/accounts/{id}", applyCsrfAndAuth(accountHandler.HandleDeleteAccount))
	apiRouter.Handle("GET /api/accounts/{id}/members", applyCsrfAndAuth(accountHandler.HandleListMembers))
	apiRouter.Handle("POST /api/accounts/{id}/members", applyCsrfAndAuth(accountHandler.HandleAddMember))
	apiRouter.Handle("DELETE /api/accounts/{id}/members/{userID}", applyCsrfAndAuth(accountHandler.HandleRemoveMember))

	// Categories and subcategories.
	apiRouter.Handle("POST /api/accounts/{id}/categories", applyCsrfAndAuth(categoryHandler.HandleCreateCategory))
	apiRouter.Handle("GET /api/accounts/{id}/categories", applyCsrfAndAuth(categoryHandler.HandleListCategories))
	apiRouter.Handle("PUT /api/categories/{id}", applyCsrfAndAuth(categoryHandler.HandleUpdateCategory))
	apiRouter.Handle("DELETE /api/categories/{id}", applyCsrfAndAuth(categoryHandler.HandleDeleteCategory))
	apiRouter.Handle("POST /api/categories/{id}/subcategories", applyCsrfAndAuth(categoryHandler.HandleCreateSubcategory))
	apiRouter.Handle("GET /api/categories/{id}/subcategories", applyCsrfAndAuth(categoryHandler.HandleListSubcategories))
	apiRouter.Handle("DELETE /api/subcategories/{id}", applyCsrfAndAuth(categoryHandler.HandleDeleteSubcategory))

	// Transactions, summaries and CSV import.
	apiRouter.Handle("POST /api/accounts/{id}/transactions", applyCsrfAndAuth(txHandler.HandleCreateTransaction))
	apiRouter.Handle("GET /api/accounts/{id}/transactions", applyCsrfAndAuth(txHandler.HandleListTransactions))
	apiRouter.Handle("GET /api/transactions/{id}", applyCsrfAndAuth(txHandler.HandleGetTransaction))
	apiRouter.Handle("PUT /api/transactions/{id}", applyCsrfAndAuth(txHandler.HandleUpdateTransaction))
	apiRouter.Handle("DELETE /api/transactions/{id}", applyCsrfAndAuth(txHandler.HandleDeleteTransaction))
	apiRouter.Handle("GET /api/accounts/{id}/summary", applyCsrfAndAuth(txHandler.HandleGetSummary))
	apiRouter.Handle("POST /api/accounts/{id}/import", applyCsrfAndAuth(txHandler.HandleImportCSV))

	// Advisor features.
	apiRouter.Handle("POST /api/accounts/{id}/investment/profile", applyCsrfAndAuth(investmentHandler.HandleAssessProfile))
	apiRouter.Handle("GET /api/accounts/{id}/investment/profile", applyCsrfAndAuth(investmentHandler.HandleGetProfile))
	apiRouter.Handle("GET /api/accounts/{id}/investment/recommendations", applyCsrfAndAuth(investmentHandler.HandleGetRecommendations))
	apiRouter.Handle("POST /api/accounts/{id}/investment/chat", applyCsrfAndAuth(investmentHandler.HandleChat))
	apiRouter.Handle("POST /api/investment/education", applyCsrfAndAuth(investmentHandler.HandleEducation))
	apiRouter.Handle("POST /api/accounts/{id}/ai/parse-transactions", applyCsrfAndAuth(aiHandler.HandleParseTransactions))

	// Advisor administration.
	apiRouter.Handle("GET /api/ai/status", applyCsrfAndAuth(aiHandler.HandleGetStatus))
	apiRouter.Handle("PUT /api/ai/provider", applyCsrfAndAuth(aiHandler.HandleSetProvider))
	apiRouter.Handle("POST /api/ai/test", applyCsrfAndAuth(aiHandler.HandleTestProvider))

	// Market data.
	apiRouter.Handle("GET /api/market", applyCsrfAndAuth(marketHandler.HandleGetMarketData))
	apiRouter.Handle("GET /api/market/summary", applyCsrfAndAuth(marketHandler.HandleGetQuickSummary))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Home account backend is running"})
		} else if !strings.HasPrefix(r.URL.Path, "/api/") {
			logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
