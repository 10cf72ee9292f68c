//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"sync"
	"testing"

	authgate "github.com/rlvait/authgate"
)

func TestSessionLifecycleAgainstRedis(t *testing.T) {
	ctx := context.Background()
	engine := newIntegrationEngine(t)

	view, signupPair := mustSignup(t, engine, "alice@example.com")
	if view.Role != authgate.RoleUser {
		t.Fatalf("expected role user, got %q", view.Role)
	}

	// A fresh login displaces the signup session.
	_, loginPair, err := engine.Login(ctx, "alice@example.com", "password1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := engine.Refresh(ctx, signupPair.RefreshToken); !errors.Is(err, authgate.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken for displaced session, got %v", err)
	}

	// Rotation: the old token dies, the new one works.
	rotated, err := engine.Refresh(ctx, loginPair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if rotated.RefreshToken == loginPair.RefreshToken {
		t.Fatal("refresh must rotate the token")
	}
	if _, err := engine.Refresh(ctx, loginPair.RefreshToken); !errors.Is(err, authgate.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken on reuse, got %v", err)
	}

	// Access tokens stay verifiable throughout.
	res, err := engine.Authenticate(ctx, rotated.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if res.IdentityID != view.ID {
		t.Fatalf("expected identity %q, got %q", view.ID, res.IdentityID)
	}

	// Logout kills the refresh path and is idempotent.
	if err := engine.Logout(ctx, rotated.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if err := engine.Logout(ctx, rotated.RefreshToken); err != nil {
		t.Fatalf("second Logout failed: %v", err)
	}
	if _, err := engine.Refresh(ctx, rotated.RefreshToken); !errors.Is(err, authgate.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken after logout, got %v", err)
	}
}

func TestConcurrentRefreshAgainstRedis(t *testing.T) {
	ctx := context.Background()
	engine := newIntegrationEngine(t)

	_, pair := mustSignup(t, engine, "race@example.com")

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan authgate.TokenPair, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if next, err := engine.Refresh(ctx, pair.RefreshToken); err == nil {
				wins <- next
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners []authgate.TokenPair
	for w := range wins {
		winners = append(winners, w)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly one racer to win, got %d", len(winners))
	}

	// The single winner's token is the live session.
	if _, err := engine.Refresh(ctx, winners[0].RefreshToken); err != nil {
		t.Fatalf("winner's token must refresh: %v", err)
	}
}

func TestFederatedLinkAgainstRedis(t *testing.T) {
	ctx := context.Background()
	engine := newIntegrationEngine(t)

	view, _ := mustSignup(t, engine, "linked@example.com")

	fed := authgate.FederatedIdentity{
		Provider: "google",
		Subject:  "sub-123",
		Email:    "linked@example.com",
		Name:     "Linked User",
	}
	linked, _, err := engine.LoginFederated(ctx, fed)
	if err != nil {
		t.Fatalf("LoginFederated failed: %v", err)
	}
	if linked.ID != view.ID {
		t.Fatalf("federated login must link the existing account, got %q want %q", linked.ID, view.ID)
	}
	if !linked.Federated {
		t.Fatal("linked account must report federated")
	}

	// A second federated login resolves by provider id, not email.
	again, _, err := engine.LoginFederated(ctx, fed)
	if err != nil {
		t.Fatalf("repeat LoginFederated failed: %v", err)
	}
	if again.ID != view.ID {
		t.Fatalf("repeat federated login resolved %q, want %q", again.ID, view.ID)
	}
}
