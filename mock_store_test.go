package authgate

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// mockStore is an in-memory Store for engine tests. It serializes everything
// behind one mutex, which makes UpdateRefreshToken a true compare-and-swap.
type mockStore struct {
	mu         sync.Mutex
	seq        int
	identities map[string]*Identity

	// failWith, when set, is returned by every call to simulate an outage.
	failWith error
}

func newMockStore() *mockStore {
	return &mockStore{
		identities: map[string]*Identity{},
	}
}

func (s *mockStore) FindByID(_ context.Context, id string) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return Identity{}, s.failWith
	}
	identity, ok := s.identities[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return *identity, nil
}

func (s *mockStore) FindByEmail(_ context.Context, email string) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return Identity{}, s.failWith
	}
	for _, identity := range s.identities {
		if identity.Email == email {
			return *identity, nil
		}
	}
	return Identity{}, ErrNotFound
}

func (s *mockStore) FindByFederatedID(_ context.Context, federatedID string) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return Identity{}, s.failWith
	}
	for _, identity := range s.identities {
		if identity.FederatedID == federatedID {
			return *identity, nil
		}
	}
	return Identity{}, ErrNotFound
}

func (s *mockStore) FindByRefreshToken(_ context.Context, refreshToken string) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return Identity{}, s.failWith
	}
	for _, identity := range s.identities {
		if identity.RefreshToken != "" && identity.RefreshToken == refreshToken {
			return *identity, nil
		}
	}
	return Identity{}, ErrNotFound
}

func (s *mockStore) Create(_ context.Context, input CreateIdentityInput) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return Identity{}, s.failWith
	}
	for _, identity := range s.identities {
		if input.Email != "" && identity.Email == input.Email {
			return Identity{}, ErrDuplicateEmail
		}
		if input.FederatedID != "" && identity.FederatedID == input.FederatedID {
			return Identity{}, ErrDuplicateFederatedID
		}
	}

	s.seq++
	now := time.Now().UTC()
	identity := &Identity{
		ID:           "id-" + strconv.Itoa(s.seq),
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		FederatedID:  input.FederatedID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.identities[identity.ID] = identity
	return *identity, nil
}

func (s *mockStore) UpdateProfile(_ context.Context, id, name, email string) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return Identity{}, s.failWith
	}
	identity, ok := s.identities[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	for otherID, other := range s.identities {
		if otherID != id && other.Email == email {
			return Identity{}, ErrDuplicateEmail
		}
	}
	identity.Name = name
	identity.Email = email
	identity.UpdatedAt = time.Now().UTC()
	return *identity, nil
}

func (s *mockStore) LinkFederatedID(_ context.Context, id, federatedID string) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return Identity{}, s.failWith
	}
	identity, ok := s.identities[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	for otherID, other := range s.identities {
		if otherID != id && other.FederatedID == federatedID {
			return Identity{}, ErrDuplicateFederatedID
		}
	}
	identity.FederatedID = federatedID
	identity.UpdatedAt = time.Now().UTC()
	return *identity, nil
}

func (s *mockStore) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	identity, ok := s.identities[id]
	if !ok {
		return ErrNotFound
	}
	identity.PasswordHash = passwordHash
	identity.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *mockStore) UpdateRefreshToken(_ context.Context, id, expectedOld, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return false, s.failWith
	}
	identity, ok := s.identities[id]
	if !ok {
		return false, ErrNotFound
	}
	if identity.RefreshToken != expectedOld {
		return false, nil
	}
	identity.RefreshToken = next
	identity.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *mockStore) ClearRefreshToken(_ context.Context, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	for _, identity := range s.identities {
		if identity.RefreshToken == refreshToken {
			identity.RefreshToken = ""
			identity.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (s *mockStore) UpdateRole(_ context.Context, id string, role Role) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return Identity{}, s.failWith
	}
	identity, ok := s.identities[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	identity.Role = role
	identity.UpdatedAt = time.Now().UTC()
	return *identity, nil
}

func (s *mockStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if _, ok := s.identities[id]; !ok {
		return ErrNotFound
	}
	delete(s.identities, id)
	return nil
}

func (s *mockStore) List(_ context.Context) ([]Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := make([]Identity, 0, len(s.identities))
	for _, identity := range s.identities {
		out = append(out, *identity)
	}
	return out, nil
}

func (s *mockStore) get(id string) Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[id]
	if !ok {
		return Identity{}
	}
	return *identity
}
