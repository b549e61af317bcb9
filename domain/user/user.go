package user

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ping/pkg/auth"
)

// User is the minimal account record the notification core needs: an
// identity to authenticate, an avatar to embed in event envelopes and the
// roles the issued token will carry.
type User struct {
	Username     string
	PasswordHash string
	Avatar       string
	Roles        []auth.Role
	CreatedAt    time.Time
}

// New creates a user with a bcrypt-hashed password and the default role.
func New(username, password, avatar string) (*User, error) {
	if username == "" {
		return nil, errors.New("username required")
	}
	if password == "" {
		return nil, errors.New("password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &User{
		Username:     username,
		PasswordHash: string(hash),
		Avatar:       avatar,
		Roles:        []auth.Role{auth.RoleUser},
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// CheckPassword verifies a candidate password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Identity returns the identity this user authenticates as.
func (u *User) Identity() auth.Identity {
	return auth.Identity{Username: u.Username, Roles: u.Roles}
}
