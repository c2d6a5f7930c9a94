package auth

import (
	"testing"

	"resumate/internal/config"
)

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(config.AuthConfig{JWTSecret: "test-secret", TokenTTLMinutes: 5})
	if err != nil {
		t.Fatalf("new token issuer: %v", err)
	}
	return issuer
}

func TestIssueAndValidateJobToken(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.IssueJobToken("job-1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	claims, err := issuer.ValidateJobToken(token, "job-1")
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.JobID != "job-1" {
		t.Errorf("job id: got %s, want job-1", claims.JobID)
	}
}

func TestValidateRejectsOtherJob(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.IssueJobToken("job-1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	if _, err := issuer.ValidateJobToken(token, "job-2"); err == nil {
		t.Fatal("expected validation to fail for another job")
	}
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	issuer := newTestIssuer(t)
	other, err := NewTokenIssuer(config.AuthConfig{JWTSecret: "other-secret", TokenTTLMinutes: 5})
	if err != nil {
		t.Fatalf("new token issuer: %v", err)
	}

	token, err := other.IssueJobToken("job-1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	if _, err := issuer.ValidateJobToken(token, "job-1"); err == nil {
		t.Fatal("expected validation to fail for token signed with another secret")
	}
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer(config.AuthConfig{}); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
