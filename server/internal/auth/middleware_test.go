package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func callWithKey(t *testing.T, mw func(http.Handler) http.Handler, header, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rec := httptest.NewRecorder()
	mw(okHandler).ServeHTTP(rec, req)
	return rec
}

func TestAPIKey(t *testing.T) {
	cases := []struct {
		name       string
		mode, key  string
		sentHeader string
		sentKey    string
		wantCode   int
	}{
		{"mode none passes through", "none", "secret", "X-API-Key", "", http.StatusOK},
		{"unconfigured key passes through", "apikey", "", "X-API-Key", "", http.StatusOK},
		{"correct key", "apikey", "supersecret", "X-API-Key", "supersecret", http.StatusOK},
		{"wrong key", "apikey", "supersecret", "X-API-Key", "wrong", http.StatusUnauthorized},
		{"missing key", "apikey", "supersecret", "X-API-Key", "", http.StatusUnauthorized},
		{"wrong header", "apikey", "supersecret", "X-Other", "supersecret", http.StatusUnauthorized},
		{"header is case-insensitive", "apikey", "supersecret", "x-api-key", "supersecret", http.StatusOK},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := callWithKey(t, APIKey(c.mode, "X-API-Key", c.key), c.sentHeader, c.sentKey)
			if rec.Code != c.wantCode {
				t.Errorf("status: got %d, want %d", rec.Code, c.wantCode)
			}
			if c.wantCode == http.StatusOK && rec.Body.String() != "ok" {
				t.Errorf("body: got %q, want ok", rec.Body.String())
			}
		})
	}
}
