package carts

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/ariefcatur/techguru-shop/internal/httpclient"
)

// Client reads and clears carts on the cart service for the order service.
type Client struct{ c *httpclient.Client }

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{c: httpclient.New("cart-service", baseURL, timeout)}
}

func (c *Client) GetCart(ctx context.Context, userID string) (Cart, error) {
	var out Cart
	if err := c.c.Do(ctx, http.MethodGet, "/cart/"+url.PathEscape(userID), nil, &out); err != nil {
		return Cart{}, err
	}
	if out.Items == nil {
		out.Items = []Line{}
	}
	return out, nil
}

func (c *Client) Clear(ctx context.Context, userID string) error {
	return c.c.Do(ctx, http.MethodDelete, "/cart/"+url.PathEscape(userID), nil, nil)
}
