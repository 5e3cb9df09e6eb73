package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/faucetdb/packetdesk/internal/model"
)

var testAdmin = &model.PublicAdmin{ID: "01J9ZK3W2C8Q6V5T4R3P2N1M0K", Email: "admin@example.com", IsActive: true}

func TestJWTRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret-key-for-jwt", time.Hour)

	token, exp, err := issuer.Issue(testAdmin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expiry %v should be in the future", exp)
	}

	principal, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if principal.AdminID != testAdmin.ID {
		t.Errorf("AdminID: got %q, want %q", principal.AdminID, testAdmin.ID)
	}
	if principal.Email != "admin@example.com" {
		t.Errorf("Email: got %q", principal.Email)
	}
}

func TestJWTExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret-key-for-jwt", time.Hour)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := issuer.Issue(testAdmin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	issuer.now = time.Now
	if _, err := issuer.Validate(token); err != ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestJWTWrongSecret(t *testing.T) {
	token, _, _ := NewTokenIssuer("secret-a", time.Hour).Issue(testAdmin)
	if _, err := NewTokenIssuer("secret-b", time.Hour).Validate(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJWTInvalidToken(t *testing.T) {
	issuer := NewTokenIssuer("test-secret-key-for-jwt", time.Hour)
	if _, err := issuer.Validate("garbage.token.here"); err == nil {
		t.Fatal("expected error for invalid token")
	}
}

func TestJWTRejectsNoneAlgorithm(t *testing.T) {
	claims := jwtClaims{
		Email: "admin@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "01A",
			Issuer:    "packetdesk",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := NewTokenIssuer("s", time.Hour).Validate(unsigned); err == nil {
		t.Fatal("alg=none token must be rejected")
	}
}

func TestDefaultTTL(t *testing.T) {
	if NewTokenIssuer("s", 0).ttl != DefaultTokenTTL {
		t.Error("zero ttl should fall back to DefaultTokenTTL")
	}
}
