package session

import (
	"testing"
	"time"

	"docguard/internal/domain"
)

func testUser() domain.User {
	return domain.User{
		ID:          "u1",
		Email:       "user@example.com",
		Username:    "user",
		DisplayName: "Test",
		Role:        domain.RoleUser,
	}
}

func testTokens(now time.Time) TokenPair {
	return TokenPair{
		Access:  Token{Value: "acc", ExpiresAt: now.Add(15 * time.Minute)},
		Refresh: Token{Value: "ref", ExpiresAt: now.Add(30 * 24 * time.Hour)},
	}
}

func TestStore_CredentialsAtomic(t *testing.T) {
	now := time.Now()
	store := NewStore()

	state := store.State(now)
	if state.User != nil || state.Tokens != nil {
		t.Fatalf("expected empty initial state")
	}

	store.SetCredentials(testUser(), testTokens(now))
	state = store.State(now)
	if state.User == nil || state.Tokens == nil {
		t.Fatalf("expected user and tokens present together")
	}
	if !state.IsAuthenticated(now) {
		t.Fatalf("expected authenticated")
	}

	store.ClearCredentials()
	state = store.State(now)
	if state.User != nil || state.Tokens != nil {
		t.Fatalf("expected user and tokens absent together")
	}
	if state.IsAuthenticated(now) {
		t.Fatalf("expected unauthenticated")
	}
}

func TestStore_SetCredentialsClearsPending(t *testing.T) {
	now := time.Now()
	store := NewStore()

	store.SetTwoFactorPending("s1", now)
	if store.State(now).Pending == nil {
		t.Fatalf("expected pending 2fa")
	}

	store.SetCredentials(testUser(), testTokens(now))
	if store.State(now).Pending != nil {
		t.Fatalf("expected pending cleared after set credentials")
	}
}

func TestStore_PendingExpiresAfterTTL(t *testing.T) {
	now := time.Now()
	store := NewStore()

	store.SetTwoFactorPending("s1", now)
	if store.State(now.Add(4 * time.Minute)).Pending == nil {
		t.Fatalf("expected pending still valid before ttl")
	}
	if store.State(now.Add(5 * time.Minute)).Pending != nil {
		t.Fatalf("expected aged pending reported absent")
	}
}

func TestStore_ExpiredAccessTokenNotAuthenticated(t *testing.T) {
	now := time.Now()
	store := NewStore()

	tokens := testTokens(now)
	tokens.Access.ExpiresAt = now.Add(-time.Minute)
	store.SetCredentials(testUser(), tokens)

	if store.IsAuthenticated(now) {
		t.Fatalf("expected expired access token to be unauthenticated")
	}
}

func TestStore_GenerationAdvancesOnCredentialChanges(t *testing.T) {
	now := time.Now()
	store := NewStore()

	g0 := store.Generation()
	store.SetTwoFactorPending("s1", now)
	if store.Generation() != g0 {
		t.Fatalf("pending 2fa must not advance generation")
	}

	store.SetCredentials(testUser(), testTokens(now))
	g1 := store.Generation()
	if g1 == g0 {
		t.Fatalf("expected generation bump on set credentials")
	}
	store.ClearCredentials()
	if store.Generation() == g1 {
		t.Fatalf("expected generation bump on clear")
	}
}
