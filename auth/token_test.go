package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	token, err := tm.Generate("665f1e0c9b1d2a3f4c5d6e7f")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	claims, err := tm.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != "665f1e0c9b1d2a3f4c5d6e7f" {
		t.Errorf("UserID = %q", claims.UserID)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret-a", time.Hour).Generate("u1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if _, err := NewTokenManager("secret-b", time.Hour).Parse(token); err != ErrInvalidToken {
		t.Errorf("Parse with wrong secret: got %v, want ErrInvalidToken", err)
	}
}

func TestTokenExpired(t *testing.T) {
	tm := NewTokenManager("test-secret", -time.Minute)

	token, err := tm.Generate("u1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := tm.Parse(token); err != ErrInvalidToken {
		t.Errorf("Parse of expired token: got %v, want ErrInvalidToken", err)
	}
}

func TestTokenGarbage(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	if _, err := tm.Parse("not-a-token"); err != ErrInvalidToken {
		t.Errorf("Parse of garbage: got %v, want ErrInvalidToken", err)
	}
}

func TestPasswordHashAndCheck(t *testing.T) {
	hash, err := HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "password123" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword(hash, "password123") {
		t.Error("CheckPassword rejected the correct password")
	}
	if CheckPassword(hash, "password124") {
		t.Error("CheckPassword accepted a wrong password")
	}
}
