// Package chat implements the identity registry: user records, the handle
// index, and credential checks.
package chat

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// User is a registered identity. Handle is the lowercase normalization of
// the display name at signup time and never changes; DisplayName may be
// renamed later. ConnID points at the most recently authenticated
// connection and is deliberately left stale after a disconnect.
type User struct {
	Handle      string
	DisplayName string
	ConnID      uuid.UUID

	secret string
}

// credentials carries the format constraints for signup input. The colon is
// excluded from display names because it delimits conversation keys.
type credentials struct {
	DisplayName string `validate:"required,min=3,max=20,excludesall=:"`
	Secret      string `validate:"required,min=4"`
}

// IdentityRegistry owns all user records. It indexes users by normalized
// handle and keeps a display-name reverse index so DM targets resolve by
// the name other users actually see.
type IdentityRegistry struct {
	users    map[string]*User  // normalized handle -> user
	byName   map[string]string // display name -> normalized handle
	validate *validator.Validate
}

// NewIdentityRegistry returns an empty registry.
func NewIdentityRegistry() *IdentityRegistry {
	return &IdentityRegistry{
		users:    make(map[string]*User),
		byName:   make(map[string]string),
		validate: validator.New(),
	}
}

func normalizeHandle(displayName string) string {
	return strings.ToLower(displayName)
}

// Register creates a new user keyed by the lowercase normalization of
// displayName. It fails with ErrInvalidFormat when the name or secret
// violates the format constraints and with ErrUsernameTaken when the
// handle is already occupied, in any casing.
func (r *IdentityRegistry) Register(displayName, secret string) (*User, error) {
	if err := r.validate.Struct(credentials{DisplayName: displayName, Secret: secret}); err != nil {
		return nil, ErrInvalidFormat
	}

	handle := normalizeHandle(displayName)
	if _, exists := r.users[handle]; exists {
		return nil, ErrUsernameTaken
	}

	user := &User{
		Handle:      handle,
		DisplayName: displayName,
		secret:      secret,
	}
	r.users[handle] = user
	r.byName[displayName] = handle
	return user, nil
}

// Authenticate looks the user up by normalized handle and checks the
// secret. Unknown handles and wrong secrets both yield
// ErrInvalidCredentials.
func (r *IdentityRegistry) Authenticate(displayName, secret string) (*User, error) {
	user, exists := r.users[normalizeHandle(displayName)]
	if !exists || user.secret != secret {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Rename updates the user's display name in place. The normalized handle
// and any conversation keys minted under the old name are untouched; the
// reverse index gains an entry for the new name while keeping the old one,
// so names already baked into conversation keys still resolve.
func (r *IdentityRegistry) Rename(user *User, newDisplayName string) error {
	if err := r.validate.Var(newDisplayName, "required,min=3,max=20,excludesall=:"); err != nil {
		return ErrInvalidFormat
	}
	if owner, exists := r.byName[newDisplayName]; exists && owner != user.Handle {
		return ErrUsernameTaken
	}

	user.DisplayName = newDisplayName
	r.byName[newDisplayName] = user.Handle
	return nil
}

// Lookup resolves a display name through the reverse index.
func (r *IdentityRegistry) Lookup(displayName string) (*User, bool) {
	handle, exists := r.byName[displayName]
	if !exists {
		return nil, false
	}
	user, exists := r.users[handle]
	return user, exists
}
