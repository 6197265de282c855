// Package users registers and authenticates buyers and sellers.
package users

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
)

type Type string

const (
	TypeBuyer  Type = "buyer"
	TypeSeller Type = "seller"
)

func (t Type) Valid() bool { return t == TypeBuyer || t == TypeSeller }

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	UserType     Type      `json:"userType"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType Type   `json:"userType"`
}

type Update struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
}

// Store fails Create and Update with apperr.ErrConflict on a duplicate email.
type Store interface {
	Create(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Update(ctx context.Context, id string, upd Update) (User, error)
	ListByType(ctx context.Context, t Type) ([]User, error)
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func validEmail(s string) bool {
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == s
}

func (r *Registration) validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = normalizeEmail(r.Email)
	switch {
	case r.Username == "":
		return apperr.Invalid("username is required")
	case !validEmail(r.Email):
		return apperr.Invalid("email is invalid")
	case len(r.Password) < 6:
		return apperr.Invalid("password must be at least 6 characters")
	case !r.UserType.Valid():
		return apperr.Invalid("userType must be buyer or seller")
	}
	return nil
}

func (u *Update) validate() error {
	if u.Username != nil {
		v := strings.TrimSpace(*u.Username)
		if v == "" {
			return apperr.Invalid("username must not be empty")
		}
		u.Username = &v
	}
	if u.Email != nil {
		v := normalizeEmail(*u.Email)
		if !validEmail(v) {
			return apperr.Invalid("email is invalid")
		}
		u.Email = &v
	}
	return nil
}

func (u Update) apply(dst *User) {
	if u.Username != nil {
		dst.Username = *u.Username
	}
	if u.Email != nil {
		dst.Email = *u.Email
	}
}
