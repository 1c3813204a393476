package services

import (
	"testing"
	"time"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/apperrors"

	"github.com/golang-jwt/jwt/v5"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	registered, err := f.auth.Register(f.ctx, &RegisterRequest{Username: "ada", Email: "Ada@Example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if registered.User.Email != "ada@example.com" || registered.User.PasswordHash == "secret1" {
		t.Fatalf("unexpected user %#v", registered.User)
	}

	_, err = f.auth.Register(f.ctx, &RegisterRequest{Username: "ada", Email: "other@example.com", Password: "secret1"})
	assertCode(t, err, apperrors.CodeConflict)

	login, err := f.auth.Login(f.ctx, &LoginRequest{Username: "ada", Password: "secret1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := f.auth.ParseToken(login.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != registered.User.ID || claims.Username != "ada" {
		t.Fatalf("unexpected claims %#v", claims)
	}

	_, err = f.auth.Login(f.ctx, &LoginRequest{Username: "ada", Password: "wrong"})
	assertCode(t, err, apperrors.CodeUnauthorized)
	_, err = f.auth.Login(f.ctx, &LoginRequest{Username: "nobody", Password: "secret1"})
	assertCode(t, err, apperrors.CodeUnauthorized)

	profile, err := f.auth.GetProfile(f.ctx, registered.User.ID)
	if err != nil || profile.Username != "ada" {
		t.Fatalf("profile: %v %#v", err, profile)
	}
}

func TestParseTokenRejectsBadTokens(t *testing.T) {
	f := newFixture(t)
	user := f.user("ada")

	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f.auth.now = func() time.Time { return issued }
	token, err := f.auth.GenerateToken(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := f.auth.ParseToken(token); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	f.auth.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = f.auth.ParseToken(token)
	assertCode(t, err, apperrors.CodeUnauthorized)

	f.auth.now = func() time.Time { return issued }
	other := NewAuthService(f.store, "another-secret", time.Hour)
	other.now = f.auth.now
	_, err = other.ParseToken(token)
	assertCode(t, err, apperrors.CodeUnauthorized)

	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	_, err = f.auth.ParseToken(unsigned)
	assertCode(t, err, apperrors.CodeUnauthorized)

	_, err = f.auth.ParseToken("not-a-token")
	assertCode(t, err, apperrors.CodeUnauthorized)
}
