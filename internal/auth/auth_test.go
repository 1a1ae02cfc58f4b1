package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"tally/internal/apperr"
	"tally/internal/auth"
	"tally/internal/db/dbtest"
)

func TestJWT_SignVerify(t *testing.T) {
	j := auth.NewJWT("secret", time.Hour)
	u := auth.User{ID: uuid.New(), Email: "a@b.c", Username: "ab"}

	tok, err := j.Sign(u)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	c, err := j.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if c.UserID != u.ID || c.Email != u.Email || c.Username != u.Username || c.ExpiresAt.IsZero() {
		t.Fatalf("claims = %+v", c)
	}

	if _, err := auth.NewJWT("other", time.Hour).Verify(tok); err == nil {
		t.Fatalf("token verified with the wrong secret")
	}
}

func TestJWT_RejectsExpired(t *testing.T) {
	j := auth.NewJWT("secret", time.Nanosecond)
	tok, err := j.Sign(auth.User{ID: uuid.New()})
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(1100 * time.Millisecond)
	if _, err := j.Verify(tok); err == nil {
		t.Fatalf("expired token accepted")
	}
}

func TestRequireAuth(t *testing.T) {
	j := auth.NewJWT("secret", time.Hour)
	id := uuid.New()
	tok, _ := j.Sign(auth.User{ID: id})

	var seen uuid.UUID
	h := auth.RequireAuth(j)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.UserIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || seen != id {
		t.Fatalf("status %d, user %s", rec.Code, seen)
	}
}

func TestService_RegisterAndLogin(t *testing.T) {
	svc := &auth.Service{DB: dbtest.New(t)}
	ctx := context.Background()

	u, err := svc.Register(ctx, auth.RegisterInput{Email: " Ada@Example.com ", Password: "correct horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != "ada@example.com" || u.Username != "ada" || u.PasswordHash == "correct horse" {
		t.Fatalf("user = %+v", u)
	}

	if _, err := svc.Register(ctx, auth.RegisterInput{Email: "ada@example.com", Password: "another one"}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict on duplicate email, got %v", err)
	}
	if _, err := svc.Register(ctx, auth.RegisterInput{Email: "bob@example.com", Password: "short"}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input for short password, got %v", err)
	}

	got, err := svc.Login(ctx, "ADA@example.com", "correct horse")
	if err != nil || got.ID != u.ID {
		t.Fatalf("login = %+v, %v", got, err)
	}
	if _, err := svc.Login(ctx, "ada@example.com", "wrong password"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "correct horse"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}
}
