package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/terraconstructs/authresolve/internal/config"
	"github.com/terraconstructs/authresolve/internal/db/models"
	"github.com/terraconstructs/authresolve/internal/sessionstore"
)

var errBackend = errors.New("backend down")

// mockSessions is keyed by name then id.
type mockSessions struct {
	mu       sync.Mutex
	sessions map[string]map[string]map[string]any
	fail     map[string]error
	loads    []string
}

func newMockSessions() *mockSessions {
	return &mockSessions{
		sessions: map[string]map[string]map[string]any{},
		fail:     map[string]error{},
	}
}

func (m *mockSessions) put(name, id string, attrs map[string]any) {
	if m.sessions[name] == nil {
		m.sessions[name] = map[string]map[string]any{}
	}
	m.sessions[name][id] = attrs
}

func (m *mockSessions) Load(_ context.Context, name, id string) (*sessionstore.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads = append(m.loads, name)
	if err, ok := m.fail[name]; ok {
		return nil, err
	}
	attrs, ok := m.sessions[name][id]
	if !ok {
		return nil, sessionstore.ErrNotFound
	}
	return &sessionstore.Session{Name: name, ID: id, Attributes: attrs}, nil
}

type mockUsers struct {
	mu      sync.Mutex
	users   map[int64]*models.User
	err     error
	getByID int
}

func newMockUsers(users ...*models.User) *mockUsers {
	m := &mockUsers{users: map[int64]*models.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByID++
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *mockUsers) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getByID
}

type mockTokens struct {
	persistent      map[string]int64 // raw or hashed value -> user id
	bearer          map[string]int64
	persistentErr   error
	bearerErr       error
	persistentCalls int
	bearerCalls     int
	lastLocations   []config.TokenLocation
}

func newMockTokens() *mockTokens {
	return &mockTokens{persistent: map[string]int64{}, bearer: map[string]int64{}}
}

func (m *mockTokens) FindPersistentToken(_ context.Context, locations []config.TokenLocation, raw, hashed string) (int64, bool, error) {
	m.persistentCalls++
	m.lastLocations = locations
	if m.persistentErr != nil {
		return 0, false, m.persistentErr
	}
	if id, ok := m.persistent[raw]; ok {
		return id, true, nil
	}
	if id, ok := m.persistent[hashed]; ok {
		return id, true, nil
	}
	return 0, false, nil
}

func (m *mockTokens) FindBearerToken(_ context.Context, token string) (int64, bool, error) {
	m.bearerCalls++
	if m.bearerErr != nil {
		return 0, false, m.bearerErr
	}
	id, ok := m.bearer[token]
	return id, ok, nil
}

type mockGrants struct {
	mu              sync.Mutex
	rolePerms       map[int64][]string
	memberships     map[int64][]int64
	roleKeys        map[int64]string
	permErr         error
	membershipErr   error
	roleKeysErr     error
	permCalls       int
	membershipCalls int
}

func newMockGrants() *mockGrants {
	return &mockGrants{
		rolePerms:   map[int64][]string{},
		memberships: map[int64][]int64{},
		roleKeys:    map[int64]string{},
	}
}

func (m *mockGrants) GetRolePermissions(_ context.Context, roleID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permCalls++
	if m.permErr != nil {
		return nil, m.permErr
	}
	return m.rolePerms[roleID], nil
}

func (m *mockGrants) GetUserRoleMemberships(_ context.Context, userID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.membershipCalls++
	if m.membershipErr != nil {
		return nil, m.membershipErr
	}
	return m.memberships[userID], nil
}

func (m *mockGrants) GetRoleKeys(_ context.Context, roleIDs []int64) (map[int64]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roleKeysErr != nil {
		return nil, m.roleKeysErr
	}
	out := make(map[int64]string, len(roleIDs))
	for _, id := range roleIDs {
		if k, ok := m.roleKeys[id]; ok {
			out[id] = k
		}
	}
	return out, nil
}

func (m *mockGrants) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permCalls + m.membershipCalls
}

func int64Ptr(v int64) *int64 { return &v }

func boolPtr(v bool) *bool { return &v }
