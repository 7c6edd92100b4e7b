package jwt

import (
	"testing"
	"time"
)

func TestGenerateAndValidateToken_RoundTrips(t *testing.T) {
	m := NewManager("shared-secret", time.Hour)
	token, expiry, err := m.GenerateToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("expected a non-empty token")
	}
	if !expiry.After(time.Now()) {
		t.Error("expected expiry to be in the future")
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if claims.Subject != "service" {
		t.Errorf("Subject = %q, want \"service\"", claims.Subject)
	}
	if claims.Issuer != "budgetloop-optimizer" {
		t.Errorf("Issuer = %q, want budgetloop-optimizer", claims.Issuer)
	}
}

func TestValidateToken_RejectsWrongSecret(t *testing.T) {
	m1 := NewManager("secret-one", time.Hour)
	m2 := NewManager("secret-two", time.Hour)

	token, _, err := m1.GenerateToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := m2.ValidateToken(token); err == nil {
		t.Error("expected validation to fail under a different secret")
	}
}

func TestValidateToken_RejectsExpiredToken(t *testing.T) {
	m := NewManager("secret", -time.Second) // already-expired token
	token, _, err := m.GenerateToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = m.ValidateToken(token)
	if !IsTokenExpired(err) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateToken_RejectsMalformedToken(t *testing.T) {
	m := NewManager("secret", time.Hour)
	_, err := m.ValidateToken("not.a.valid.jwt")
	if !IsTokenInvalid(err) {
		t.Errorf("expected a malformed/invalid classification, got %v", err)
	}
}

func TestExtractTokenFromHeader(t *testing.T) {
	cases := []struct {
		header  string
		want    string
		wantErr error
	}{
		{"Bearer abc123", "abc123", nil},
		{"", "", ErrMissingToken},
		{"Basic abc123", "", ErrInvalidAuthHeader},
		{"Bearer ", "", ErrMissingToken},
	}
	for _, c := range cases {
		got, err := ExtractTokenFromHeader(c.header)
		if got != c.want {
			t.Errorf("ExtractTokenFromHeader(%q) = %q, want %q", c.header, got, c.want)
		}
		if c.wantErr != nil && err != c.wantErr {
			t.Errorf("ExtractTokenFromHeader(%q) err = %v, want %v", c.header, err, c.wantErr)
		}
	}
}
