package auth

import (
	"testing"
	"time"
)

func newTestIssuer(clock func() time.Time) *SessionIssuer {
	return NewSessionIssuer(SessionIssuerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "plantlog-auth",
		Audience:      "plantlog-api",
		TokenTTL:      time.Hour,
		Clock:         clock,
	})
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	issuer := newTestIssuer(func() time.Time { return time.Unix(1706745600, 0) })

	token, expiresIn, err := issuer.Issue(42)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if expiresIn != 3600 {
		t.Fatalf("expected 3600s expiry, got %d", expiresIn)
	}

	userID, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if userID != 42 {
		t.Fatalf("expected user 42, got %d", userID)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	current := time.Unix(1706745600, 0)
	issuer := newTestIssuer(func() time.Time { return current })

	token, _, err := issuer.Issue(42)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	current = current.Add(2 * time.Hour)
	if _, err := issuer.Validate(token); err == nil {
		t.Fatalf("expected expired token to fail validation")
	}
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	clock := func() time.Time { return time.Unix(1706745600, 0) }
	issuer := newTestIssuer(clock)
	other := NewSessionIssuer(SessionIssuerConfig{
		SigningSecret: []byte("other-secret"),
		Issuer:        "plantlog-auth",
		Audience:      "plantlog-api",
		Clock:         clock,
	})

	token, _, err := other.Issue(42)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := issuer.Validate(token); err == nil {
		t.Fatalf("expected foreign-secret token to fail validation")
	}
}

func TestIssueRequiresSecret(t *testing.T) {
	issuer := NewSessionIssuer(SessionIssuerConfig{})
	if _, _, err := issuer.Issue(1); err == nil {
		t.Fatalf("expected missing-secret error")
	}
}
