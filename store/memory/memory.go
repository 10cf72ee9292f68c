package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rlvait/authgate"
)

// Store is a mutex-guarded in-memory credential store. The single mutex makes
// UpdateRefreshToken a true compare-and-swap. Safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	identities map[string]*authgate.Identity
	byEmail    map[string]string
	byFedID    map[string]string
}

var _ authgate.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		identities: map[string]*authgate.Identity{},
		byEmail:    map[string]string{},
		byFedID:    map[string]string{},
	}
}

func (s *Store) FindByID(_ context.Context, id string) (authgate.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.identities[id]
	if !ok {
		return authgate.Identity{}, authgate.ErrNotFound
	}
	return *identity, nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (authgate.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return authgate.Identity{}, authgate.ErrNotFound
	}
	return *s.identities[id], nil
}

func (s *Store) FindByFederatedID(_ context.Context, federatedID string) (authgate.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byFedID[federatedID]
	if !ok {
		return authgate.Identity{}, authgate.ErrNotFound
	}
	return *s.identities[id], nil
}

func (s *Store) FindByRefreshToken(_ context.Context, refreshToken string) (authgate.Identity, error) {
	if refreshToken == "" {
		return authgate.Identity{}, authgate.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, identity := range s.identities {
		if identity.RefreshToken == refreshToken {
			return *identity, nil
		}
	}
	return authgate.Identity{}, authgate.ErrNotFound
}

func (s *Store) Create(_ context.Context, input authgate.CreateIdentityInput) (authgate.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.Email != "" {
		if _, taken := s.byEmail[input.Email]; taken {
			return authgate.Identity{}, authgate.ErrDuplicateEmail
		}
	}
	if input.FederatedID != "" {
		if _, taken := s.byFedID[input.FederatedID]; taken {
			return authgate.Identity{}, authgate.ErrDuplicateFederatedID
		}
	}

	now := time.Now().UTC()
	identity := &authgate.Identity{
		ID:           uuid.NewString(),
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		FederatedID:  input.FederatedID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.identities[identity.ID] = identity
	if identity.Email != "" {
		s.byEmail[identity.Email] = identity.ID
	}
	if identity.FederatedID != "" {
		s.byFedID[identity.FederatedID] = identity.ID
	}

	return *identity, nil
}

func (s *Store) UpdateProfile(_ context.Context, id, name, email string) (authgate.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok {
		return authgate.Identity{}, authgate.ErrNotFound
	}
	if email != identity.Email {
		if holder, taken := s.byEmail[email]; taken && holder != id {
			return authgate.Identity{}, authgate.ErrDuplicateEmail
		}
		delete(s.byEmail, identity.Email)
		if email != "" {
			s.byEmail[email] = id
		}
		identity.Email = email
	}
	identity.Name = name
	identity.UpdatedAt = time.Now().UTC()

	return *identity, nil
}

func (s *Store) LinkFederatedID(_ context.Context, id, federatedID string) (authgate.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok {
		return authgate.Identity{}, authgate.ErrNotFound
	}
	if holder, taken := s.byFedID[federatedID]; taken && holder != id {
		return authgate.Identity{}, authgate.ErrDuplicateFederatedID
	}

	if identity.FederatedID != "" {
		delete(s.byFedID, identity.FederatedID)
	}
	identity.FederatedID = federatedID
	identity.UpdatedAt = time.Now().UTC()
	s.byFedID[federatedID] = id

	return *identity, nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok {
		return authgate.ErrNotFound
	}
	identity.PasswordHash = passwordHash
	identity.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) UpdateRefreshToken(_ context.Context, id, expectedOld, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok {
		return false, authgate.ErrNotFound
	}
	if identity.RefreshToken != expectedOld {
		return false, nil
	}
	identity.RefreshToken = next
	identity.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *Store) ClearRefreshToken(_ context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, identity := range s.identities {
		if identity.RefreshToken == refreshToken {
			identity.RefreshToken = ""
			identity.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (s *Store) UpdateRole(_ context.Context, id string, role authgate.Role) (authgate.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok {
		return authgate.Identity{}, authgate.ErrNotFound
	}
	identity.Role = role
	identity.UpdatedAt = time.Now().UTC()
	return *identity, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok {
		return authgate.ErrNotFound
	}
	delete(s.byEmail, identity.Email)
	if identity.FederatedID != "" {
		delete(s.byFedID, identity.FederatedID)
	}
	delete(s.identities, id)
	return nil
}

func (s *Store) List(_ context.Context) ([]authgate.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]authgate.Identity, 0, len(s.identities))
	for _, identity := range s.identities {
		out = append(out, *identity)
	}
	return out, nil
}
