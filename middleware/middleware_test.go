package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key-for-testing-only")

// mockClerkJWT signs a token shaped like a Clerk session token.
func mockClerkJWT(t *testing.T, clerkID string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": clerkID,
		"iss": "https://clerk.test",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
		"azp": "test-app-id",
		"sid": "sess_test123",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func verifyMockJWT(_ context.Context, token string) (string, error) {
	parsed, err := jwt.Parse(token, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return testSecret, nil
	})
	if err != nil {
		return "", err
	}
	return parsed.Claims.GetSubject()
}

func echoClerkID(w http.ResponseWriter, r *http.Request) {
	id, _ := GetClerkID(r.Context())
	w.Write([]byte(id))
}

func TestAuthMiddleware(t *testing.T) {
	auth := NewAuthMiddleware(verifyMockJWT)(http.HandlerFunc(echoClerkID))

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"no bearer prefix", mockClerkJWT(t, "user_1", time.Hour), http.StatusUnauthorized, ""},
		{"expired token", "Bearer " + mockClerkJWT(t, "user_1", -time.Hour), http.StatusUnauthorized, ""},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, ""},
		{"valid token", "Bearer " + mockClerkJWT(t, "user_1", time.Hour), http.StatusOK, "user_1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/user/points", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			auth.ServeHTTP(rr, req)

			assert.Equal(t, tt.code, rr.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, tt.body, rr.Body.String())
				return
			}
			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGetClerkIDEmpty(t *testing.T) {
	_, ok := GetClerkID(context.Background())
	assert.False(t, ok)

	_, ok = GetClerkID(context.WithValue(context.Background(), ClerkIDKey, ""))
	assert.False(t, ok)
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	hit := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.1:1235"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1:1236"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2:1234"))

	limiter.cleanup(time.Now().Add(time.Hour))
	assert.Empty(t, limiter.visitors)
}

func TestBasicAuthMiddleware(t *testing.T) {
	t.Setenv("METRICS_USER", "prom")
	t.Setenv("METRICS_PASS", "scrape")
	h := BasicAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req.SetBasicAuth("prom", "scrape")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
