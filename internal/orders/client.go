package orders

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
	"github.com/ariefcatur/techguru-shop/internal/httpclient"
)

// Client lets the product service ask the order service whether an order
// was placed.
type Client struct{ c *httpclient.Client }

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{c: httpclient.New("order-service", baseURL, timeout)}
}

func (c *Client) GetByID(ctx context.Context, orderID string) (Order, error) {
	var o Order
	err := c.c.Do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, &o)
	return o, err
}

func (c *Client) OrderExists(ctx context.Context, orderID string) (bool, error) {
	_, err := c.GetByID(ctx, orderID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperr.ErrNotFound):
		return false, nil
	}
	return false, err
}
