package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bpstack/home-account-showcase-sub001/src/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	m.Run()
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestGetCSRFTokenIssuesMatchingCookieAndBody(t *testing.T) {
	rec := httptest.NewRecorder()
	GetCSRFToken(rec, httptest.NewRequest(http.MethodGet, "/api/auth/csrf", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		CsrfToken string `json:"csrfToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.CsrfToken)
	assert.Equal(t, body.CsrfToken, rec.Header().Get(csrfHeaderName))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, csrfCookieName, cookies[0].Name)
	assert.Equal(t, body.CsrfToken, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestCSRFMiddlewareAllowsSafeMethodsWithoutToken(t *testing.T) {
	protected := CSRFMiddleware()(okHandler())

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(method, "/api/accounts", nil))
		assert.Equal(t, http.StatusOK, rec.Code, method)
	}
}

func TestCSRFMiddlewareAcceptsMatchingDoubleSubmit(t *testing.T) {
	protected := CSRFMiddleware()(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/accounts", nil)
	req.Header.Set(csrfHeaderName, "token-abc")
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "token-abc"})

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRFMiddlewareRejectsMissingOrMismatchedTokens(t *testing.T) {
	protected := CSRFMiddleware()(okHandler())

	cases := []struct {
		name   string
		header string
		cookie string
	}{
		{"no header, no cookie", "", ""},
		{"header only", "token-abc", ""},
		{"cookie only", "", "token-abc"},
		{"mismatch", "token-abc", "token-xyz"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/accounts", nil)
		if tc.header != "" {
			req.Header.Set(csrfHeaderName, tc.header)
		}
		if tc.cookie != "" {
			req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tc.cookie})
		}

		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code, tc.name)
		assert.Contains(t, rec.Body.String(), "CSRF token validation failed", tc.name)
	}
}
