package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims(sub string, roles ...string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Roles: roles,
	}
}

// runMiddleware returns the handler error and the context the handler saw.
func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, header string) (context.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	c := e.NewContext(req, httptest.NewRecorder())

	var seen context.Context
	err := mw(func(c echo.Context) error {
		seen = c.Request().Context()
		return c.String(http.StatusOK, "ok")
	})(c)
	return seen, err
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "")
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), tt.header)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	tok := createTestToken(t, validClaims("uw.priya", RoleUnderwriter), testSigningKey)
	ctx, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := UserIDFromContext(ctx); got != "uw.priya" {
		t.Errorf("expected subject uw.priya, got %q", got)
	}
	if roles := RolesFromContext(ctx); len(roles) != 1 || roles[0] != RoleUnderwriter {
		t.Errorf("unexpected roles %v", roles)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := validClaims("uw.priya", RoleUnderwriter)
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	tok := createTestToken(t, claims, testSigningKey)
	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tok)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	tok := createTestToken(t, validClaims("uw.priya"), []byte("another-key"))
	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tok)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_IssuerAndAudience(t *testing.T) {
	cfg := JWTConfig{SigningKey: testSigningKey, Issuer: "https://idp.example", Audience: "uw-api"}
	claims := validClaims("uw.priya")
	claims.Issuer = "https://idp.example"
	claims.Audience = jwt.ClaimStrings{"uw-api"}
	if _, err := runMiddleware(t, JWTMiddleware(cfg), "Bearer "+createTestToken(t, claims, testSigningKey)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims.Audience = jwt.ClaimStrings{"other"}
	_, err := runMiddleware(t, JWTMiddleware(cfg), "Bearer "+createTestToken(t, claims, testSigningKey))
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_MissingSubject(t *testing.T) {
	tok := createTestToken(t, validClaims("", RoleApprover), testSigningKey)
	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tok)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_JWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_ = json.NewEncoder(w).Encode(JWKSResponse{Keys: []JWKSKey{{
			Kty: "RSA",
			Kid: "k1",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims("uw.arjun", RoleApprover))
	token.Header["kid"] = "k1"
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}

	mw := JWTMiddleware(JWTConfig{JWKSURL: srv.URL})
	for i := 0; i < 2; i++ {
		ctx, err := runMiddleware(t, mw, "Bearer "+signed)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if UserIDFromContext(ctx) != "uw.arjun" {
			t.Errorf("expected uw.arjun, got %q", UserIDFromContext(ctx))
		}
	}
	if hits != 1 {
		t.Errorf("expected JWKS to be fetched once, got %d", hits)
	}

	// HS256 tokens are rejected when only RSA keys are configured.
	hs := createTestToken(t, validClaims("uw.arjun"), testSigningKey)
	_, err = runMiddleware(t, mw, "Bearer "+hs)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestNewOIDCProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"issuer":"https://idp.example","jwks_uri":"https://idp.example/keys"}`))
	}))
	defer srv.Close()

	p, err := NewOIDCProvider(srv.URL + "/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.JWKSURI != "https://idp.example/keys" {
		t.Errorf("unexpected jwks_uri %q", p.JWKSURI)
	}
}

func TestNewOIDCProvider_MissingJWKS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"issuer":"https://idp.example"}`))
	}))
	defer srv.Close()

	if _, err := NewOIDCProvider(srv.URL); err == nil {
		t.Fatal("expected error when jwks_uri is missing")
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	ctx, err := runMiddleware(t, DevAuthMiddleware(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if UserIDFromContext(ctx) != "" {
		t.Errorf("dev mode should not set a subject, got %q", UserIDFromContext(ctx))
	}
	if !HasRole(ctx, RoleApprover) {
		t.Error("dev mode should satisfy every role")
	}
}
