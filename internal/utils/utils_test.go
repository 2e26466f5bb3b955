package utils

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	t.Parallel()

	tok, err := NewAccessToken("s3cret", "X1234567", "PASSENGER", 15)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if tok.Exp.Before(time.Now().Add(14 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", tok.Exp)
	}
	sub, role, err := ParseAccessToken("s3cret", tok.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sub != "X1234567" || role != "PASSENGER" {
		t.Fatalf("unexpected claims %q %q", sub, role)
	}
}

func TestParseAccessToken_Rejects(t *testing.T) {
	t.Parallel()

	good, _ := NewAccessToken("s3cret", "admin", "ADMIN", 5)
	expired, _ := NewAccessToken("s3cret", "admin", "ADMIN", -5)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "admin", "role": "ADMIN", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin", "role": "ADMIN",
	}).SignedString([]byte("s3cret"))

	tests := map[string]struct {
		secret string
		raw    string
	}{
		"wrong secret": {"other", good.Token},
		"expired":      {"s3cret", expired.Token},
		"alg none":     {"s3cret", none},
		"no exp":       {"s3cret", noExp},
		"garbage":      {"s3cret", "not.a.jwt"},
	}
	for name, tt := range tests {
		if _, _, err := ParseAccessToken(tt.secret, tt.raw); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestRefreshToken(t *testing.T) {
	t.Parallel()

	rt, err := NewRefreshToken(7)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if len(rt.Raw) != 96 {
		t.Fatalf("expected 96 hex chars, got %d", len(rt.Raw))
	}
	h := HashRefreshRaw(rt.Raw)
	if len(h) != 64 || h != HashRefreshRaw(rt.Raw) || strings.Contains(h, rt.Raw) {
		t.Fatalf("unexpected hash %q", h)
	}
}

func TestPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("gate42open", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(hash, "gate42open") || VerifyPassword(hash, "gate42shut") {
		t.Fatalf("verify mismatch")
	}

	cases := map[string]error{
		"short1":         ErrPasswordTooShort,
		"onlyletters":    ErrPasswordNoNumber,
		"1234567890":     ErrPasswordNoLetter,
		"boarding2025":   nil,
		strings.Repeat("a1", 40): ErrPasswordTooLong,
	}
	for in, want := range cases {
		if got := ValidatePassword(in); !errors.Is(got, want) {
			t.Errorf("ValidatePassword(%q) = %v, want %v", in, got, want)
		}
	}
}
