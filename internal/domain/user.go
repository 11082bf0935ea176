// Package domain contains entity without logic, just meta-data
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen   = 36
	MaxUsernameLen = 36
)

var (
	ErrUsernameTooLong = fmt.Errorf("%w: username too long", ErrValidation)
	ErrUsernameEmpty   = fmt.Errorf("%w: username empty", ErrValidation)
)

type UserID string

// User is the identity the identity provider attaches to a connection.
type User struct {
	ID        UserID `json:"id"`
	Username  string `json:"username"`
	Moderator bool   `json:"moderator,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(username string) (*User, error) {
	return NewUserWithID(UserID(uuid.NewString()), username)
}

func NewUserWithID(id UserID, username string) (*User, error) {
	if id == "" || len(id) > MaxUserIDLen {
		return nil, ErrInvalidUserID
	}
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	return &User{ID: id, Username: username}, nil
}

func (u *User) SetUsername(username string) error {
	if err := validateUsername(username); err != nil {
		return err
	}
	u.Username = username
	return nil
}

func validateUsername(username string) error {
	if len(username) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	return nil
}
