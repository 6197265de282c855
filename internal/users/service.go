package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
	"github.com/ariefcatur/techguru-shop/internal/events"
)

type Payload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	UserType Type   `json:"userType"`
}

type Service struct {
	Store    Store
	Notifier events.Notifier
	Producer string
	Log      *slog.Logger
	// Cost defaults to bcrypt.DefaultCost.
	Cost int
}

func (s *Service) Register(ctx context.Context, r Registration) (User, error) {
	if err := r.validate(); err != nil {
		return User{}, err
	}
	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	u, err := s.Store.Create(ctx, User{
		ID:           uuid.NewString(),
		Username:     r.Username,
		Email:        r.Email,
		UserType:     r.UserType,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, apperr.ErrConflict) {
		return User{}, fmt.Errorf("email %s already registered: %w", r.Email, err)
	}
	if err != nil {
		return User{}, err
	}
	s.publish(ctx, events.UserRegistered, u)
	return u, nil
}

// Login reports apperr.ErrUnauthorized for both unknown email and wrong
// password.
func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	u, err := s.Store.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, apperr.ErrNotFound) {
		return User{}, apperr.ErrUnauthorized
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, apperr.ErrUnauthorized
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.Store.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id string, upd Update) (User, error) {
	if err := upd.validate(); err != nil {
		return User{}, err
	}
	u, err := s.Store.Update(ctx, id, upd)
	if err != nil {
		return User{}, err
	}
	s.publish(ctx, events.UserUpdated, u)
	return u, nil
}

func (s *Service) ListByType(ctx context.Context, t Type) ([]User, error) {
	if !t.Valid() {
		return nil, apperr.Invalid("userType must be buyer or seller")
	}
	return s.Store.ListByType(ctx, t)
}

func (s *Service) publish(ctx context.Context, name string, u User) {
	b, err := events.Encode(name, s.Producer, u.ID, Payload{UserID: u.ID, Username: u.Username, Email: u.Email, UserType: u.UserType})
	if err == nil {
		err = s.Notifier.Publish(ctx, events.TopicUsers, name, b)
	}
	if err != nil {
		s.Log.Warn("publish user event", "user_id", u.ID, "event", name, "err", err)
	}
}
