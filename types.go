package authgate

import (
	"context"
	"time"
)

// Role is the coarse authorization level carried by an identity and
// snapshotted into every issued token.
type Role string

const (
	// RoleUser is the default role assigned at signup. It cannot be
	// self-escalated; only an admin operation changes it.
	RoleUser Role = "user"
	// RoleAdmin grants access to the administrative operation surface.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Identity is the full account record held by the [Store]. It carries the
// password hash and the live refresh token and therefore must never be
// serialized toward clients; use [Identity.View] for anything outbound.
type Identity struct {
	ID    string
	Email string
	Name  string
	// PasswordHash is empty for federated-only accounts.
	PasswordHash string
	Role         Role
	// FederatedID is the provider-scoped external identifier in the form
	// "provider:subject" ("google:123"), empty when no provider is linked.
	FederatedID string
	// RefreshToken is the single live refresh token, empty when the identity
	// has no active session.
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// View copies the non-sensitive fields into an [IdentityView]. This is an
// explicit allowlist: new Identity fields stay private until added here.
func (i Identity) View() IdentityView {
	return IdentityView{
		ID:        i.ID,
		Email:     i.Email,
		Name:      i.Name,
		Role:      i.Role,
		Federated: i.FederatedID != "",
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

// IdentityView is the client-facing projection of an [Identity]. It never
// carries the password hash or refresh token.
type IdentityView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Federated bool      `json:"federated"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TokenPair is the ephemeral result of a successful authentication or refresh.
// Both strings are opaque to clients.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult is returned by [Engine.Authenticate]. It carries the
// authenticated identity id and the role snapshot taken when the access token
// was issued.
type AuthResult struct {
	IdentityID string
	Role       Role
}

// SignupRequest is the input for [Engine.Signup]. Any role supplied by the
// transport layer is ignored; signup always creates a RoleUser account.
type SignupRequest struct {
	Email    string
	Password string
	Name     string
}

// FederatedIdentity is the normalized fact set returned by an external
// identity provider after a verified login. Providers return facts only;
// account lookup, linking, and creation decisions live in the engine.
type FederatedIdentity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

// FederatedID returns the store key "provider:subject".
func (f FederatedIdentity) FederatedID() string {
	return f.Provider + ":" + f.Subject
}

// ProfileUpdate carries the caller-editable profile fields. Empty fields are
// left unchanged.
type ProfileUpdate struct {
	Name  string
	Email string
}

// CreateIdentityInput is the input for [Store.Create]. The store assigns the
// id and timestamps.
type CreateIdentityInput struct {
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	FederatedID  string
}

// Store is the credential-store interface callers implement to integrate
// authgate with their user database. Implementations must map missing records
// to [ErrNotFound] and uniqueness violations to [ErrDuplicateEmail] or
// [ErrDuplicateFederatedID].
//
// UpdateRefreshToken is the serialization point for refresh rotation: it must
// atomically compare the stored refresh token against expectedOld and only
// then write next, reporting whether the swap applied. Without this guarantee
// two concurrent refresh calls holding the same stale token could both
// succeed and double-issue.
type Store interface {
	FindByID(ctx context.Context, id string) (Identity, error)
	FindByEmail(ctx context.Context, email string) (Identity, error)
	FindByFederatedID(ctx context.Context, federatedID string) (Identity, error)
	FindByRefreshToken(ctx context.Context, refreshToken string) (Identity, error)
	Create(ctx context.Context, input CreateIdentityInput) (Identity, error)
	UpdateProfile(ctx context.Context, id, name, email string) (Identity, error)
	// LinkFederatedID attaches a provider identifier to an existing identity.
	// It fails with ErrDuplicateFederatedID when another identity already
	// holds the identifier.
	LinkFederatedID(ctx context.Context, id, federatedID string) (Identity, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	UpdateRefreshToken(ctx context.Context, id, expectedOld, next string) (bool, error)
	// ClearRefreshToken removes the given refresh token wherever it is held.
	// Clearing a token no identity holds is a silent no-op.
	ClearRefreshToken(ctx context.Context, refreshToken string) error
	UpdateRole(ctx context.Context, id string, role Role) (Identity, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Identity, error)
}
