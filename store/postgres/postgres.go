package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rlvait/authgate"
)

const (
	uniqueViolation = "23505"

	emailConstraint = "identities_email_key"
	fedConstraint   = "identities_federated_id_key"
)

const schema = `
CREATE TABLE IF NOT EXISTS identities (
	id UUID PRIMARY KEY,
	email TEXT UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL,
	federated_id TEXT UNIQUE,
	refresh_token TEXT,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_identities_refresh_token ON identities(refresh_token);
`

const identityColumns = "id, email, name, password_hash, role, federated_id, refresh_token, created_at, updated_at"

// Store implements authgate.Store on a *sql.DB. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

var _ authgate.Store = (*Store)(nil)

// New wraps db and ensures the identities table exists.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("postgres: database connection required")
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (authgate.Identity, error) {
	return s.findBy(ctx, "id = $1", id)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (authgate.Identity, error) {
	return s.findBy(ctx, "email = $1", email)
}

func (s *Store) FindByFederatedID(ctx context.Context, federatedID string) (authgate.Identity, error) {
	return s.findBy(ctx, "federated_id = $1", federatedID)
}

func (s *Store) FindByRefreshToken(ctx context.Context, refreshToken string) (authgate.Identity, error) {
	if refreshToken == "" {
		return authgate.Identity{}, authgate.ErrNotFound
	}
	return s.findBy(ctx, "refresh_token = $1", refreshToken)
}

func (s *Store) findBy(ctx context.Context, where string, arg any) (authgate.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+identityColumns+" FROM identities WHERE "+where, arg)
	return scanIdentity(row)
}

func (s *Store) Create(ctx context.Context, input authgate.CreateIdentityInput) (authgate.Identity, error) {
	now := time.Now().UTC()
	identity := authgate.Identity{
		ID:           uuid.NewString(),
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		FederatedID:  input.FederatedID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO identities (id, email, name, password_hash, role, federated_id, refresh_token, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULL, $7, $7)`,
		identity.ID, nullable(identity.Email), identity.Name, identity.PasswordHash,
		string(identity.Role), nullable(identity.FederatedID), now)
	if err != nil {
		return authgate.Identity{}, mapError(err)
	}

	return identity, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id, name, email string) (authgate.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE identities SET name = $2, email = $3, updated_at = $4
		 WHERE id = $1
		 RETURNING `+identityColumns,
		id, name, nullable(email), time.Now().UTC())
	identity, err := scanIdentity(row)
	if err != nil {
		return authgate.Identity{}, mapError(err)
	}
	return identity, nil
}

func (s *Store) LinkFederatedID(ctx context.Context, id, federatedID string) (authgate.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE identities SET federated_id = $2, updated_at = $3
		 WHERE id = $1
		 RETURNING `+identityColumns,
		id, federatedID, time.Now().UTC())
	identity, err := scanIdentity(row)
	if err != nil {
		return authgate.Identity{}, mapError(err)
	}
	return identity, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE identities SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, time.Now().UTC())
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

// UpdateRefreshToken performs the rotation compare-and-swap as a single
// conditional UPDATE, so concurrent refreshes across processes still elect
// exactly one winner.
func (s *Store) UpdateRefreshToken(ctx context.Context, id, expectedOld, next string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE identities SET refresh_token = $3, updated_at = $4
		 WHERE id = $1 AND COALESCE(refresh_token, '') = $2`,
		id, expectedOld, nullable(next), time.Now().UTC())
	if err != nil {
		return false, mapError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return true, nil
	}

	// Zero rows is either a lost race or a missing identity; tell them apart
	// so the caller can report ErrNotFound.
	if _, err := s.FindByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) ClearRefreshToken(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE identities SET refresh_token = NULL, updated_at = $2 WHERE refresh_token = $1`,
		refreshToken, time.Now().UTC())
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) UpdateRole(ctx context.Context, id string, role authgate.Role) (authgate.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE identities SET role = $2, updated_at = $3
		 WHERE id = $1
		 RETURNING `+identityColumns,
		id, string(role), time.Now().UTC())
	identity, err := scanIdentity(row)
	if err != nil {
		return authgate.Identity{}, mapError(err)
	}
	return identity, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

func (s *Store) List(ctx context.Context) ([]authgate.Identity, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+identityColumns+" FROM identities ORDER BY created_at")
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []authgate.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, identity)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (authgate.Identity, error) {
	var (
		identity     authgate.Identity
		role         string
		email        sql.NullString
		federatedID  sql.NullString
		refreshToken sql.NullString
	)

	err := row.Scan(&identity.ID, &email, &identity.Name, &identity.PasswordHash,
		&role, &federatedID, &refreshToken, &identity.CreatedAt, &identity.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return authgate.Identity{}, authgate.ErrNotFound
	}
	if err != nil {
		return authgate.Identity{}, err
	}

	identity.Email = email.String
	identity.Role = authgate.Role(role)
	identity.FederatedID = federatedID.String
	identity.RefreshToken = refreshToken.String

	return identity, nil
}

// nullable maps "" to NULL so the UNIQUE constraints ignore absent values.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return authgate.ErrNotFound
	}
	return nil
}

func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		switch pqErr.Constraint {
		case emailConstraint:
			return authgate.ErrDuplicateEmail
		case fedConstraint:
			return authgate.ErrDuplicateFederatedID
		}
	}
	return err
}
