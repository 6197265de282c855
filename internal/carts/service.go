package carts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
	"github.com/ariefcatur/techguru-shop/internal/events"
)

const saveAttempts = 3

type ItemPayload struct {
	UserID    string `json:"userId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity,omitempty"`
}

type ClearedPayload struct {
	UserID string `json:"userId"`
}

type Service struct {
	Store    Store
	Notifier events.Notifier
	Producer string
	Log      *slog.Logger
}

func (s *Service) GetCart(ctx context.Context, userID string) (Cart, error) {
	if userID == "" {
		return Cart{}, apperr.Invalid("userId is required")
	}
	return s.Store.Get(ctx, userID)
}

func (s *Service) AddItem(ctx context.Context, userID string, l Line) (Cart, error) {
	c, _, err := s.mutate(ctx, userID, false, func(c *Cart) (bool, error) {
		return true, c.Add(l)
	})
	if err != nil {
		return Cart{}, err
	}
	s.publish(ctx, events.CartItemAdded, userID, ItemPayload{UserID: userID, ProductID: l.ProductID, Quantity: l.Quantity})
	return c, nil
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (Cart, error) {
	c, changed, err := s.mutate(ctx, userID, true, func(c *Cart) (bool, error) {
		return c.Remove(productID), nil
	})
	if err != nil {
		return Cart{}, err
	}
	if changed {
		s.publish(ctx, events.CartItemRemoved, userID, ItemPayload{UserID: userID, ProductID: productID})
	}
	return c, nil
}

func (s *Service) UpdateItem(ctx context.Context, userID, productID string, quantity int) (Cart, error) {
	c, _, err := s.mutate(ctx, userID, true, func(c *Cart) (bool, error) {
		return true, c.SetQuantity(productID, quantity)
	})
	if err != nil {
		return Cart{}, err
	}
	s.publish(ctx, events.CartItemUpdated, userID, ItemPayload{UserID: userID, ProductID: productID, Quantity: quantity})
	return c, nil
}

// Clear empties the cart; clearing an empty or unknown cart does nothing.
func (s *Service) Clear(ctx context.Context, userID string) error {
	_, changed, err := s.mutate(ctx, userID, false, func(c *Cart) (bool, error) {
		return c.Clear(), nil
	})
	if err != nil {
		return err
	}
	if changed {
		s.publish(ctx, events.CartCleared, userID, ClearedPayload{UserID: userID})
	}
	return nil
}

// mutate retries fn on a fresh copy while another writer wins the version race.
func (s *Service) mutate(ctx context.Context, userID string, mustExist bool, fn func(*Cart) (bool, error)) (Cart, bool, error) {
	if userID == "" {
		return Cart{}, false, apperr.Invalid("userId is required")
	}
	for attempt := 0; attempt < saveAttempts; attempt++ {
		c, err := s.Store.Get(ctx, userID)
		if err != nil {
			return Cart{}, false, err
		}
		if mustExist && c.Version == 0 {
			return Cart{}, false, fmt.Errorf("cart for %s: %w", userID, apperr.ErrNotFound)
		}
		changed, err := fn(&c)
		if err != nil {
			return Cart{}, false, err
		}
		if !changed {
			return c, false, nil
		}
		saved, err := s.Store.Save(ctx, c)
		if errors.Is(err, apperr.ErrConflict) {
			continue
		}
		if err != nil {
			return Cart{}, false, err
		}
		return saved, true, nil
	}
	return Cart{}, false, fmt.Errorf("cart for %s: %w: too many concurrent updates", userID, apperr.ErrConflict)
}

func (s *Service) publish(ctx context.Context, name, userID string, payload any) {
	b, err := events.Encode(name, s.Producer, userID, payload)
	if err == nil {
		err = s.Notifier.Publish(ctx, events.TopicCarts, name, b)
	}
	if err != nil {
		s.Log.Warn("publish cart event", "user_id", userID, "event", name, "err", err)
	}
}
