package usertoken

import (
	"errors"
	"net/http"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-32-bytes-minimum-okay"

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(Config{Secret: testSecret})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return v
}

func mintToken(t *testing.T, claims jwt.RegisteredClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func validClaims() jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   "7",
		Issuer:    "booklend-auth",
		Audience:  jwt.ClaimStrings{"booklend-api"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
}

func TestVerifySubject(t *testing.T) {
	v := newTestVerifier(t)
	id, err := v.VerifySubject(mintToken(t, validClaims(), testSecret))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id != 7 {
		t.Fatalf("subject = %d, want 7", id)
	}
}

func TestVerifySubjectRejectsWrongSecret(t *testing.T) {
	v := newTestVerifier(t)
	if _, err := v.VerifySubject(mintToken(t, validClaims(), "other-secret")); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifySubjectRejectsExpired(t *testing.T) {
	v := newTestVerifier(t)
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	if _, err := v.VerifySubject(mintToken(t, claims, testSecret)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifySubjectRejectsWrongAudience(t *testing.T) {
	v := newTestVerifier(t)
	claims := validClaims()
	claims.Audience = jwt.ClaimStrings{"other-api"}
	if _, err := v.VerifySubject(mintToken(t, claims, testSecret)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifySubjectRejectsNonNumericSubject(t *testing.T) {
	v := newTestVerifier(t)
	claims := validClaims()
	claims.Subject = "alice"
	if _, err := v.VerifySubject(mintToken(t, claims, testSecret)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	if _, err := NewVerifier(Config{}); err == nil {
		t.Fatalf("expected error without secret")
	}
}

func TestBearerToken(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	if _, ok := BearerToken(r); ok {
		t.Fatalf("missing header should not yield a token")
	}
	r.Header.Set("Authorization", "Bearer abc123")
	token, ok := BearerToken(r)
	if !ok || token != "abc123" {
		t.Fatalf("token = %q ok=%v, want abc123", token, ok)
	}
	r.Header.Set("Authorization", "Basic abc123")
	if _, ok := BearerToken(r); ok {
		t.Fatalf("basic auth should not yield a bearer token")
	}
}
