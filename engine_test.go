package authgate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rlvait/authgate/password"
)

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Token.PrivateKey = []byte("test-secret")
	// Floor work factors so the suite stays fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *mockStore) {
	t.Helper()

	store := newMockStore()
	engine, err := New().
		WithConfig(cfg).
		WithStore(store).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, store
}

func signupAlice(t *testing.T, engine *Engine) (IdentityView, TokenPair) {
	t.Helper()

	view, pair, err := engine.Signup(context.Background(), SignupRequest{
		Email:    "alice@example.com",
		Password: "password1",
		Name:     "Alice",
	})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	return view, pair
}

func TestBuildRequiresStore(t *testing.T) {
	_, err := New().WithConfig(testConfig()).Build()
	if err == nil {
		t.Fatal("expected Build to fail without a store")
	}
}

func TestBuildRejectsMissingKey(t *testing.T) {
	cfg := testConfig()
	cfg.Token.PrivateKey = nil
	_, err := New().WithConfig(cfg).WithStore(newMockStore()).Build()
	if err == nil {
		t.Fatal("expected Build to fail without a signing key")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig()).WithStore(newMockStore())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestNilEngineIsSafe(t *testing.T) {
	var engine *Engine
	engine.Close()
	if _, _, err := engine.Signup(context.Background(), SignupRequest{}); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if got := engine.AuditDropped(); got != 0 {
		t.Fatalf("expected 0 dropped, got %d", got)
	}
	snap := engine.MetricsSnapshot()
	if snap.Counters == nil {
		t.Fatal("expected non-nil snapshot maps")
	}
}

func TestSignupCreatesUserRole(t *testing.T) {
	engine, store := newTestEngine(t, testConfig())

	view, pair := signupAlice(t, engine)

	if view.Role != RoleUser {
		t.Fatalf("expected role user, got %s", view.Role)
	}
	if view.Email != "alice@example.com" {
		t.Fatalf("unexpected email %q", view.Email)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}

	stored := store.get(view.ID)
	if stored.PasswordHash == "" || stored.PasswordHash == "password1" {
		t.Fatal("expected stored password to be hashed")
	}
	if stored.RefreshToken != pair.RefreshToken {
		t.Fatal("expected refresh token persisted as the live session")
	}
	if engine.MetricsSnapshot().Counters[MetricSignupSuccess] != 1 {
		t.Fatal("expected signup success counter incremented")
	}
}

func TestSignupNormalizesEmail(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())

	view, _, err := engine.Signup(context.Background(), SignupRequest{
		Email:    "  Bob@Example.COM ",
		Password: "password1",
		Name:     "Bob",
	})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if view.Email != "bob@example.com" {
		t.Fatalf("expected normalized email, got %q", view.Email)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	signupAlice(t, engine)

	_, _, err := engine.Signup(context.Background(), SignupRequest{
		Email:    "ALICE@example.com",
		Password: "password1",
		Name:     "Alice Again",
	})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if engine.MetricsSnapshot().Counters[MetricSignupDuplicate] != 1 {
		t.Fatal("expected duplicate counter incremented")
	}
}

func TestSignupValidation(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())

	cases := []struct {
		name string
		req  SignupRequest
	}{
		{"bad email", SignupRequest{Email: "not-an-email", Password: "password1", Name: "X"}},
		{"short password", SignupRequest{Email: "a@b.com", Password: "p1", Name: "X"}},
		{"no digit", SignupRequest{Email: "a@b.com", Password: "password", Name: "X"}},
		{"oversized password", SignupRequest{Email: "a@b.com", Password: strings.Repeat("a1", password.MaxPasswordBytes), Name: "X"}},
		{"empty name", SignupRequest{Email: "a@b.com", Password: "password1", Name: "  "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := engine.Signup(context.Background(), tc.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(verr.Fields) == 0 {
				t.Fatal("expected at least one field error")
			}
		})
	}
}

func TestLoginSuccess(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	view, _ := signupAlice(t, engine)

	got, pair, err := engine.Login(context.Background(), "Alice@Example.com", "password1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if got.ID != view.ID {
		t.Fatalf("expected identity %s, got %s", view.ID, got.ID)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	signupAlice(t, engine)

	_, _, unknownErr := engine.Login(context.Background(), "nobody@example.com", "password1")
	_, _, wrongErr := engine.Login(context.Background(), "alice@example.com", "wrongpass1")

	if !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", unknownErr)
	}
	if !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatal("expected identical error text for both failure modes")
	}
}

func TestLoginDisplacesPreviousSession(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	_, first := signupAlice(t, engine)

	_, second, err := engine.Login(context.Background(), "alice@example.com", "password1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := engine.Refresh(context.Background(), first.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected displaced token to be dead, got %v", err)
	}
	if _, err := engine.Refresh(context.Background(), second.RefreshToken); err != nil {
		t.Fatalf("expected new token to refresh, got %v", err)
	}
}

func TestLoginUpgradesWeakHash(t *testing.T) {
	engine, store := newTestEngine(t, testConfig())
	view, _ := signupAlice(t, engine)

	// The signup hash used floor work factors; a second engine with stronger
	// factors should replace it on the next login.
	weakHash := store.get(view.ID).PasswordHash

	strongCfg := testConfig()
	strongCfg.Password.Time = 2
	strong, err := New().WithConfig(strongCfg).WithStore(store).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer strong.Close()

	if _, _, err := strong.Login(context.Background(), "alice@example.com", "password1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	upgraded := store.get(view.ID).PasswordHash
	if upgraded == weakHash {
		t.Fatal("expected hash upgraded on login")
	}
	if !strong.hasher.Verify("password1", upgraded) {
		t.Fatal("expected upgraded hash to verify")
	}
}

func TestStoreOutageIsWrapped(t *testing.T) {
	engine, store := newTestEngine(t, testConfig())
	signupAlice(t, engine)
	store.failWith = errors.New("connection refused")

	_, _, err := engine.Login(context.Background(), "alice@example.com", "password1")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Fatal("outage must not masquerade as bad credentials")
	}
}

func TestMetricsSnapshotCounts(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	signupAlice(t, engine)
	_, _, _ = engine.Login(context.Background(), "alice@example.com", "wrongpass1")

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricSignupSuccess] != 1 {
		t.Fatalf("signup counter = %d", snap.Counters[MetricSignupSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("login failure counter = %d", snap.Counters[MetricLoginFailure])
	}
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	engine, _ := newTestEngine(t, cfg)
	signupAlice(t, engine)

	if got := engine.MetricsSnapshot().Counters[MetricSignupSuccess]; got != 0 {
		t.Fatalf("expected no counting when disabled, got %d", got)
	}
}

func TestAuthenticateLatencyHistogram(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.EnableLatencyHistograms = true
	engine, _ := newTestEngine(t, cfg)
	_, pair := signupAlice(t, engine)

	if _, err := engine.Authenticate(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	buckets := engine.MetricsSnapshot().Histograms[MetricAuthenticateLatency]
	if len(buckets) == 0 {
		t.Fatal("expected histogram buckets in snapshot")
	}
	var total uint64
	for _, b := range buckets {
		total += b
	}
	if total != 1 {
		t.Fatalf("expected one sample, got %d", total)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	cfg.Token.AccessTTL = 2 * cfg.Token.RefreshTTL
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected access >= refresh TTL to be rejected")
	}

	cfg = testConfig()
	cfg.Token.SigningMethod = "rs256"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unsupported signing method to be rejected")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("AUTHGATE_SIGNING_SECRET", "env-secret")
	t.Setenv("AUTHGATE_ACCESS_TTL", "5m")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}
	if string(cfg.Token.PrivateKey) != "env-secret" {
		t.Fatal("expected signing secret from environment")
	}
	if cfg.Token.AccessTTL != 5*time.Minute {
		t.Fatalf("expected 5m access TTL, got %v", cfg.Token.AccessTTL)
	}
}

func TestConfigFromEnvRequiresSecret(t *testing.T) {
	t.Setenv("AUTHGATE_SIGNING_SECRET", "")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("expected missing secret to fail")
	}
}

func TestDecoyHashBurnsFullVerify(t *testing.T) {
	hasher, err := password.NewHasher(password.DefaultConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	// The decoy is only worth anything if it parses; a malformed constant
	// makes Verify bail before the key derivation.
	if _, err := hasher.NeedsRehash(decoyHash); err != nil {
		t.Fatalf("decoy hash must parse: %v", err)
	}
	if hasher.Verify("password1", decoyHash) {
		t.Fatal("decoy hash must never verify")
	}
}

// contendedStore loses every refresh-token swap, simulating logins that keep
// displacing each other.
type contendedStore struct {
	*mockStore
}

func (s *contendedStore) UpdateRefreshToken(_ context.Context, _, _, _ string) (bool, error) {
	return false, nil
}

func TestOpenSessionFailsWhenSwapKeepsLosing(t *testing.T) {
	store := &contendedStore{mockStore: newMockStore()}
	engine, err := New().
		WithConfig(testConfig()).
		WithStore(store).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	// Signup must not report success with a refresh token no record holds.
	_, _, err = engine.Signup(context.Background(), SignupRequest{
		Email:    "alice@example.com",
		Password: "password1",
		Name:     "Alice",
	})
	if err == nil {
		t.Fatal("expected signup to fail when the session slot cannot be installed")
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		t.Fatalf("expected an internal failure, got ValidationError %v", verr)
	}
}
