package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rlvait/authgate"
)

const defaultPrefix = "authgate"

const (
	statusOK       int64 = 1
	statusMiss     int64 = 0
	statusNotFound int64 = -1
	statusDupEmail int64 = -2
	statusDupFed   int64 = -3
)

// create checks both uniqueness indexes, writes the identity hash, and
// installs the index entries in one atomic step.
// KEYS: identity, emailIdx, fedIdx, idSet
// ARGV: id, email, fedID, name, passwordHash, role, now
var createScript = redis.NewScript(`
if ARGV[2] ~= "" and redis.call("EXISTS", KEYS[2]) == 1 then
  return -2
end
if ARGV[3] ~= "" and redis.call("EXISTS", KEYS[3]) == 1 then
  return -3
end
redis.call("HSET", KEYS[1],
  "id", ARGV[1],
  "email", ARGV[2],
  "federated_id", ARGV[3],
  "name", ARGV[4],
  "password_hash", ARGV[5],
  "role", ARGV[6],
  "refresh_token", "",
  "created_at", ARGV[7],
  "updated_at", ARGV[7])
if ARGV[2] ~= "" then
  redis.call("SET", KEYS[2], ARGV[1])
end
if ARGV[3] ~= "" then
  redis.call("SET", KEYS[3], ARGV[1])
end
redis.call("SADD", KEYS[4], ARGV[1])
return 1
`)

// rotate is the refresh compare-and-swap.
// KEYS: identity, oldTokenIdx, newTokenIdx
// ARGV: expectedOld, next, id, now
var rotateScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local cur = redis.call("HGET", KEYS[1], "refresh_token") or ""
if cur ~= ARGV[1] then
  return 0
end
redis.call("HSET", KEYS[1], "refresh_token", ARGV[2], "updated_at", ARGV[4])
if ARGV[1] ~= "" then
  redis.call("DEL", KEYS[2])
end
if ARGV[2] ~= "" then
  redis.call("SET", KEYS[3], ARGV[3])
end
return 1
`)

// clear retires a refresh token wherever it is held.
// KEYS: tokenIdx
// ARGV: token, identityKeyPrefix, now
var clearScript = redis.NewScript(`
local id = redis.call("GET", KEYS[1])
if not id then
  return 0
end
local ikey = ARGV[2] .. id
if redis.call("HGET", ikey, "refresh_token") == ARGV[1] then
  redis.call("HSET", ikey, "refresh_token", "", "updated_at", ARGV[3])
end
redis.call("DEL", KEYS[1])
return 1
`)

// updateProfile re-points the email index together with the field write.
// KEYS: identity, oldEmailIdx, newEmailIdx
// ARGV: name, newEmail, id, now
var updateProfileScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
if ARGV[2] ~= "" then
  local holder = redis.call("GET", KEYS[3])
  if holder and holder ~= ARGV[3] then
    return -2
  end
end
redis.call("DEL", KEYS[2])
redis.call("HSET", KEYS[1], "name", ARGV[1], "email", ARGV[2], "updated_at", ARGV[4])
if ARGV[2] ~= "" then
  redis.call("SET", KEYS[3], ARGV[3])
end
return 1
`)

// link attaches a federated id with the same uniqueness rule as create.
// KEYS: identity, fedIdx
// ARGV: fedID, id, now
var linkScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local holder = redis.call("GET", KEYS[2])
if holder and holder ~= ARGV[2] then
  return -3
end
local old = redis.call("HGET", KEYS[1], "federated_id")
if old and old ~= "" and old ~= ARGV[1] then
  redis.call("DEL", ARGV[4] .. old)
end
redis.call("HSET", KEYS[1], "federated_id", ARGV[1], "updated_at", ARGV[3])
redis.call("SET", KEYS[2], ARGV[2])
return 1
`)

// remove deletes the identity hash and every index entry pointing at it.
// KEYS: identity, idSet
// ARGV: id, emailIdxPrefix, fedIdxPrefix, tokenIdxPrefix
var removeScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local email = redis.call("HGET", KEYS[1], "email")
if email and email ~= "" then
  redis.call("DEL", ARGV[2] .. email)
end
local fed = redis.call("HGET", KEYS[1], "federated_id")
if fed and fed ~= "" then
  redis.call("DEL", ARGV[3] .. fed)
end
local rt = redis.call("HGET", KEYS[1], "refresh_token")
if rt and rt ~= "" then
  redis.call("DEL", ARGV[4] .. rt)
end
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
return 1
`)

// Store implements authgate.Store on a redis client. Safe for concurrent use.
type Store struct {
	client *redis.Client
	prefix string
}

var _ authgate.Store = (*Store)(nil)

// New wraps client. An empty prefix defaults to "authgate".
func New(client *redis.Client, prefix string) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis: client required")
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix}, nil
}

func (s *Store) identityKey(id string) string { return s.prefix + ":identity:" + id }
func (s *Store) emailKey(email string) string { return s.prefix + ":email:" + email }
func (s *Store) fedKey(fedID string) string   { return s.prefix + ":fed:" + fedID }
func (s *Store) tokenKey(token string) string { return s.prefix + ":rt:" + token }
func (s *Store) idSetKey() string             { return s.prefix + ":ids" }
func (s *Store) identityKeyPrefix() string    { return s.prefix + ":identity:" }

func (s *Store) FindByID(ctx context.Context, id string) (authgate.Identity, error) {
	return s.load(ctx, s.identityKey(id))
}

func (s *Store) FindByEmail(ctx context.Context, email string) (authgate.Identity, error) {
	return s.loadIndexed(ctx, s.emailKey(email))
}

func (s *Store) FindByFederatedID(ctx context.Context, federatedID string) (authgate.Identity, error) {
	return s.loadIndexed(ctx, s.fedKey(federatedID))
}

func (s *Store) FindByRefreshToken(ctx context.Context, refreshToken string) (authgate.Identity, error) {
	if refreshToken == "" {
		return authgate.Identity{}, authgate.ErrNotFound
	}
	return s.loadIndexed(ctx, s.tokenKey(refreshToken))
}

func (s *Store) loadIndexed(ctx context.Context, indexKey string) (authgate.Identity, error) {
	id, err := s.client.Get(ctx, indexKey).Result()
	if errors.Is(err, redis.Nil) {
		return authgate.Identity{}, authgate.ErrNotFound
	}
	if err != nil {
		return authgate.Identity{}, err
	}
	return s.load(ctx, s.identityKey(id))
}

func (s *Store) load(ctx context.Context, key string) (authgate.Identity, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return authgate.Identity{}, err
	}
	if len(fields) == 0 {
		return authgate.Identity{}, authgate.ErrNotFound
	}
	return decodeIdentity(fields)
}

func (s *Store) Create(ctx context.Context, input authgate.CreateIdentityInput) (authgate.Identity, error) {
	now := time.Now().UTC()
	id := uuid.NewString()

	status, err := createScript.Run(ctx, s.client,
		[]string{s.identityKey(id), s.emailKey(input.Email), s.fedKey(input.FederatedID), s.idSetKey()},
		id, input.Email, input.FederatedID, input.Name, input.PasswordHash,
		string(input.Role), now.Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return authgate.Identity{}, err
	}
	if err := mapStatus(status); err != nil {
		return authgate.Identity{}, err
	}

	return authgate.Identity{
		ID:           id,
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		FederatedID:  input.FederatedID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id, name, email string) (authgate.Identity, error) {
	current, err := s.FindByID(ctx, id)
	if err != nil {
		return authgate.Identity{}, err
	}

	status, err := updateProfileScript.Run(ctx, s.client,
		[]string{s.identityKey(id), s.emailKey(current.Email), s.emailKey(email)},
		name, email, id, time.Now().UTC().Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return authgate.Identity{}, err
	}
	if err := mapStatus(status); err != nil {
		return authgate.Identity{}, err
	}

	return s.FindByID(ctx, id)
}

func (s *Store) LinkFederatedID(ctx context.Context, id, federatedID string) (authgate.Identity, error) {
	status, err := linkScript.Run(ctx, s.client,
		[]string{s.identityKey(id), s.fedKey(federatedID)},
		federatedID, id, time.Now().UTC().Format(time.RFC3339Nano), s.prefix+":fed:",
	).Int64()
	if err != nil {
		return authgate.Identity{}, err
	}
	if err := mapStatus(status); err != nil {
		return authgate.Identity{}, err
	}
	return s.FindByID(ctx, id)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	key := s.identityKey(id)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return authgate.ErrNotFound
	}

	return s.client.HSet(ctx, key,
		"password_hash", passwordHash,
		"updated_at", time.Now().UTC().Format(time.RFC3339Nano),
	).Err()
}

func (s *Store) UpdateRefreshToken(ctx context.Context, id, expectedOld, next string) (bool, error) {
	status, err := rotateScript.Run(ctx, s.client,
		[]string{s.identityKey(id), s.tokenKey(expectedOld), s.tokenKey(next)},
		expectedOld, next, id, time.Now().UTC().Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return false, err
	}
	switch status {
	case statusOK:
		return true, nil
	case statusMiss:
		return false, nil
	default:
		return false, mapStatus(status)
	}
}

func (s *Store) ClearRefreshToken(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	return clearScript.Run(ctx, s.client,
		[]string{s.tokenKey(refreshToken)},
		refreshToken, s.identityKeyPrefix(), time.Now().UTC().Format(time.RFC3339Nano),
	).Err()
}

func (s *Store) UpdateRole(ctx context.Context, id string, role authgate.Role) (authgate.Identity, error) {
	key := s.identityKey(id)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return authgate.Identity{}, err
	}
	if exists == 0 {
		return authgate.Identity{}, authgate.ErrNotFound
	}

	if err := s.client.HSet(ctx, key,
		"role", string(role),
		"updated_at", time.Now().UTC().Format(time.RFC3339Nano),
	).Err(); err != nil {
		return authgate.Identity{}, err
	}

	return s.FindByID(ctx, id)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	status, err := removeScript.Run(ctx, s.client,
		[]string{s.identityKey(id), s.idSetKey()},
		id, s.prefix+":email:", s.prefix+":fed:", s.prefix+":rt:",
	).Int64()
	if err != nil {
		return err
	}
	return mapStatus(status)
}

func (s *Store) List(ctx context.Context) ([]authgate.Identity, error) {
	ids, err := s.client.SMembers(ctx, s.idSetKey()).Result()
	if err != nil {
		return nil, err
	}

	out := make([]authgate.Identity, 0, len(ids))
	for _, id := range ids {
		identity, err := s.load(ctx, s.identityKey(id))
		if errors.Is(err, authgate.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, identity)
	}
	return out, nil
}

func decodeIdentity(fields map[string]string) (authgate.Identity, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return authgate.Identity{}, fmt.Errorf("redis: corrupt created_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, fields["updated_at"])
	if err != nil {
		return authgate.Identity{}, fmt.Errorf("redis: corrupt updated_at: %w", err)
	}

	return authgate.Identity{
		ID:           fields["id"],
		Email:        fields["email"],
		Name:         fields["name"],
		PasswordHash: fields["password_hash"],
		Role:         authgate.Role(fields["role"]),
		FederatedID:  fields["federated_id"],
		RefreshToken: fields["refresh_token"],
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

func mapStatus(status int64) error {
	switch status {
	case statusOK:
		return nil
	case statusNotFound:
		return authgate.ErrNotFound
	case statusDupEmail:
		return authgate.ErrDuplicateEmail
	case statusDupFed:
		return authgate.ErrDuplicateFederatedID
	default:
		return fmt.Errorf("redis: unexpected script status %d", status)
	}
}
