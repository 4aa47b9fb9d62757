package auth

import (
	"errors"
	"testing"
	"time"
)

func TestManager_IssueAndVerify(t *testing.T) {
	m, err := NewManager("s3cret", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tok, err := m.Issue("user_123", "ada@example.com", "Ada Lovelace")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user_123" || claims.Email != "ada@example.com" || claims.Name != "Ada Lovelace" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestManager_ExpiredToken(t *testing.T) {
	m, _ := NewManager("s3cret", time.Hour)
	issuedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issuedAt }

	tok, err := m.Issue("user_123", "ada@example.com", "Ada")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	m.now = func() time.Time { return issuedAt.Add(61 * time.Minute) }
	if _, err := m.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestManager_WrongSecret(t *testing.T) {
	a, _ := NewManager("one", time.Hour)
	b, _ := NewManager("two", time.Hour)

	tok, _ := a.Issue("u", "e@example.com", "n")
	if _, err := b.Verify(tok); err == nil {
		t.Fatal("expected verification to fail with a different secret")
	}
}

func TestNewManager_EmptySecret(t *testing.T) {
	if _, err := NewManager("  ", time.Hour); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		tok string
		ok  bool
	}{
		"Bearer abc":   {"abc", true},
		"bearer  abc ": {"abc", true},
		"Basic abc":    {"", false},
		"Bearer":       {"", false},
		"":             {"", false},
	}
	for header, want := range cases {
		tok, ok := BearerToken(header)
		if tok != want.tok || ok != want.ok {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", header, tok, ok, want.tok, want.ok)
		}
	}
}
