//go:build integration
// +build integration

package test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	authgate "github.com/rlvait/authgate"
	redisstore "github.com/rlvait/authgate/store/redis"
)

func newIntegrationEngine(t *testing.T) *authgate.Engine {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := redisstore.New(client, "authgate-it")
	if err != nil {
		t.Fatalf("redis store init failed: %v", err)
	}

	cfg := authgate.DefaultConfig()
	cfg.Token.PrivateKey = []byte("integration-test-secret")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := authgate.New().
		WithConfig(cfg).
		WithStore(store).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine
}

func mustSignup(t *testing.T, engine *authgate.Engine, email string) (authgate.IdentityView, authgate.TokenPair) {
	t.Helper()

	view, pair, err := engine.Signup(context.Background(), authgate.SignupRequest{
		Email:    email,
		Password: "password1",
		Name:     "Integration User",
	})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	return view, pair
}
