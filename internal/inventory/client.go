package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
	"github.com/ariefcatur/techguru-shop/internal/httpclient"
)

// Client is the order service's view of the product service ledger.
type Client struct{ c *httpclient.Client }

var _ Ledger = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{c: httpclient.New("product-service", baseURL, timeout)}
}

type ReserveRequest struct {
	OrderID   string `json:"orderId,omitempty"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type Availability struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Available bool   `json:"available"`
}

// StockErrorBody is the 409 body the product service sends for a short reservation.
type StockErrorBody struct {
	Error     string `json:"error"`
	ProductID string `json:"productId"`
	Available int    `json:"available"`
}

func (c *Client) CheckAvailability(ctx context.Context, productID string, quantity int) (bool, error) {
	var a Availability
	path := fmt.Sprintf("/products/%s/availability?quantity=%d", url.PathEscape(productID), quantity)
	if err := c.c.Do(ctx, http.MethodGet, path, nil, &a); err != nil {
		return false, err
	}
	return a.Available, nil
}

func (c *Client) Reserve(ctx context.Context, orderID, productID string, quantity int) (Reservation, error) {
	var r Reservation
	req := ReserveRequest{OrderID: orderID, ProductID: productID, Quantity: quantity}
	err := c.c.Do(ctx, http.MethodPost, "/inventory/reservations", req, &r)
	var se *httpclient.StatusError
	if errors.As(err, &se) && se.Code == http.StatusConflict {
		var body StockErrorBody
		if json.Unmarshal(se.Body, &body) == nil && body.ProductID != "" {
			return Reservation{}, &apperr.InsufficientStockError{ProductID: body.ProductID, Available: body.Available}
		}
	}
	return r, err
}

func (c *Client) Release(ctx context.Context, r Reservation) error {
	return c.c.Do(ctx, http.MethodPost, "/inventory/reservations/"+url.PathEscape(r.ID)+"/release", nil, nil)
}

func (c *Client) Commit(ctx context.Context, r Reservation) error {
	return c.c.Do(ctx, http.MethodPost, "/inventory/reservations/"+url.PathEscape(r.ID)+"/commit", nil, nil)
}
