package auth

import (
	"testing"
	"time"
)

func TestValidateServiceToken(t *testing.T) {
	if err := ValidateServiceToken("", "expected"); err == nil {
		t.Fatalf("expected missing token error")
	}
	if err := ValidateServiceToken("bad", "expected"); err == nil {
		t.Fatalf("expected invalid token error")
	}
	if err := ValidateServiceToken("expected", "expected"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAdminJWTRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateAdminJWT("ops@example.com", secret, time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ValidateAdminJWT(token, secret)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Subject != "ops@example.com" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
}

func TestAdminJWTExpired(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateAdminJWT("ops@example.com", secret, -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ValidateAdminJWT(token, secret); err == nil {
		t.Fatalf("expected expired error")
	}
}

func TestAdminJWTWrongSecret(t *testing.T) {
	token, err := GenerateAdminJWT("ops@example.com", []byte("secret-a"), time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ValidateAdminJWT(token, []byte("secret-b")); err == nil {
		t.Fatalf("expected invalid signature error")
	}
}
