package store

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryUserModel keeps users in-memory and guards access with a RWMutex.
// Records are listed in insertion order and identifiers use the same ObjectID
// hex form as the MongoDB model.
type MemoryUserModel struct {
	mu    sync.RWMutex
	order []string
	users map[string]User
}

// NewMemoryUserModel initialises an empty in-memory user model.
func NewMemoryUserModel() *MemoryUserModel {
	return &MemoryUserModel{
		users: make(map[string]User),
	}
}

// NewMemoryModels returns a registry backed entirely by in-memory models.
func NewMemoryModels() Models {
	return Models{ExempleUser: NewMemoryUserModel()}
}

// List returns a copy of every stored user.
func (m *MemoryUserModel) List(ctx context.Context) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]User, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.users[id])
	}
	return out, nil
}

// CreateMany validates the whole batch, then stores it under a single lock.
func (m *MemoryUserModel) CreateMany(ctx context.Context, inputs []UserInput) ([]User, error) {
	staged, err := prepare(inputs)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	created := make([]User, 0, len(staged))
	for _, in := range staged {
		created = append(created, User{
			ID:   primitive.NewObjectID().Hex(),
			Name: in.Name,
			Age:  in.Age,
		})
	}

	m.mu.Lock()
	for _, u := range created {
		m.order = append(m.order, u.ID)
		m.users[u.ID] = u
	}
	m.mu.Unlock()

	return created, nil
}

// Update replaces name and age of an existing user.
func (m *MemoryUserModel) Update(ctx context.Context, id string, input UserInput) (User, error) {
	staged, err := prepare([]UserInput{input})
	if err != nil {
		return User{}, err
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	u.Name = staged[0].Name
	u.Age = staged[0].Age
	m.users[id] = u
	return u, nil
}

// Delete removes a user.
func (m *MemoryUserModel) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
