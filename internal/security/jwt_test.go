package security_test

import (
	"errors"
	"testing"
	"time"

	"github.com/chefmate/auth-service/internal/security"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	ts := security.NewTokenService("test-secret", time.Minute)

	tok, err := ts.Issue("42", "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	uid, sub, err := ts.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if uid != "42" || sub != "alice" {
		t.Fatalf("claims mismatch: uid=%q sub=%q", uid, sub)
	}
}

func TestVerifyExpired(t *testing.T) {
	ts := security.NewTokenService("test-secret", -time.Minute)

	tok, err := ts.Issue("42", "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, _, err := ts.Verify(tok); !errors.Is(err, security.ErrTokenExpired) {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := security.NewTokenService("secret-a", time.Minute)
	verifier := security.NewTokenService("secret-b", time.Minute)

	tok, err := issuer.Issue("42", "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, _, err := verifier.Verify(tok); !errors.Is(err, security.ErrTokenMalformed) {
		t.Fatalf("want ErrTokenMalformed, got %v", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	ts := security.NewTokenService("test-secret", time.Minute)
	if _, _, err := ts.Verify("not.a.jwt"); !errors.Is(err, security.ErrTokenMalformed) {
		t.Fatalf("want ErrTokenMalformed, got %v", err)
	}
}

func TestVerifySubject(t *testing.T) {
	ts := security.NewTokenService("test-secret", time.Minute)

	tok, err := ts.Issue("42", "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	uid, err := ts.VerifySubject(tok, "alice")
	if err != nil || uid != "42" {
		t.Fatalf("verify subject: uid=%q err=%v", uid, err)
	}

	if _, err := ts.VerifySubject(tok, "bob"); !errors.Is(err, security.ErrTokenSubjectMismatch) {
		t.Fatalf("want ErrTokenSubjectMismatch, got %v", err)
	}
}
