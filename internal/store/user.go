package store

import (
	"context"
	"errors"
	"strings"
)

// UserModelName is the registry name of the user model.
const UserModelName = "ExempleUser"

// User is a persisted user record. ID is assigned by the store and never changes.
type User struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// UserInput carries the mutable attributes of a user for create and update.
type UserInput struct {
	Name string `json:"name" validate:"required,min=2"`
	Age  int    `json:"age" validate:"min=1,max=150"`
}

// Normalize returns a copy with surrounding whitespace removed from the name.
func (in UserInput) Normalize() UserInput {
	in.Name = strings.TrimSpace(in.Name)
	return in
}

// UserModel is the data accessor for user records. Implementations validate every
// input before writing; a batch passed to CreateMany is either fully written or
// rejected with a *ValidationError and nothing persisted.
type UserModel interface {
	List(ctx context.Context) ([]User, error)
	CreateMany(ctx context.Context, inputs []UserInput) ([]User, error)
	Update(ctx context.Context, id string, input UserInput) (User, error)
	Delete(ctx context.Context, id string) error
}

// Models is the registry of store-backed models. It is fixed at construction.
type Models struct {
	ExempleUser UserModel
}

// Validate reports whether every model of the registry is present.
func (m Models) Validate() error {
	if m.ExempleUser == nil {
		return errors.New("model registry is missing " + UserModelName)
	}
	return nil
}

// Lookup resolves a model by its registry name.
func (m Models) Lookup(name string) (UserModel, bool) {
	if name == UserModelName && m.ExempleUser != nil {
		return m.ExempleUser, true
	}
	return nil, false
}
