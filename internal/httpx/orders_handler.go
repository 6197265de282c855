package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
	"github.com/ariefcatur/techguru-shop/internal/checkout"
	"github.com/ariefcatur/techguru-shop/internal/orders"
)

const headerIdempotencyKey = "Idempotency-Key"

type CreateOrderReq struct {
	UserID      string          `json:"userId"`
	Items       []orders.Line   `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

type CheckoutReq struct {
	UserID string `json:"userId"`
}

type StatusReq struct {
	Status orders.Status `json:"status"`
}

// Idempotency is implemented by redisx.Idempotency. Keys are scoped to the
// user placing the order.
type Idempotency interface {
	Claim(ctx context.Context, userID, key string) (orderID string, claimed bool, err error)
	Complete(ctx context.Context, userID, key, orderID string) error
	Abandon(ctx context.Context, userID, key string) error
}

type OrdersHandler struct {
	Checkout *checkout.Orchestrator
	Orders   *orders.Service
	// Idem is optional; without it Idempotency-Key is ignored.
	Idem Idempotency
	Log  *slog.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/create", h.create)
		r.Post("/checkout", h.checkoutCart)
		r.Get("/user/{userId}", h.listByUser)
		r.Get("/{orderId}", h.get)
		r.Put("/{orderId}/status", h.setStatus)
	})
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.place(w, r, req.UserID, func(ctx context.Context) (orders.Order, error) {
		return h.Checkout.Checkout(ctx, req.UserID, req.Items, req.TotalAmount)
	})
}

func (h *OrdersHandler) checkoutCart(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if req.UserID == "" {
		writeError(w, h.Log, apperr.Invalid("userId is required"))
		return
	}
	h.place(w, r, req.UserID, func(ctx context.Context) (orders.Order, error) {
		return h.Checkout.CheckoutCart(ctx, req.UserID)
	})
}

// place runs a checkout at most once per user and Idempotency-Key. A
// finished key replays its order with 200, a running one answers 409 and a
// failed one is freed for retry.
func (h *OrdersHandler) place(w http.ResponseWriter, r *http.Request, userID string, run func(context.Context) (orders.Order, error)) {
	ctx := r.Context()
	key := r.Header.Get(headerIdempotencyKey)
	if key == "" || h.Idem == nil {
		o, err := run(ctx)
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		writeJSON(w, http.StatusCreated, o)
		return
	}

	orderID, claimed, err := h.Idem.Claim(ctx, userID, key)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if !claimed {
		o, err := h.Orders.Get(ctx, orderID)
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		w.Header().Set("Idempotent-Replayed", "true")
		writeJSON(w, http.StatusOK, o)
		return
	}

	o, err := run(ctx)
	bg := context.WithoutCancel(ctx)
	if err != nil {
		if aerr := h.Idem.Abandon(bg, userID, key); aerr != nil {
			h.Log.Warn("abandon idempotency key", "user_id", userID, "key", key, "err", aerr)
		}
		writeError(w, h.Log, err)
		return
	}
	if cerr := h.Idem.Complete(bg, userID, key, o.ID); cerr != nil {
		h.Log.Warn("complete idempotency key", "user_id", userID, "key", key, "order_id", o.ID, "err", cerr)
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Get(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listByUser(w http.ResponseWriter, r *http.Request) {
	list, err := h.Orders.ListByUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	o, err := h.Orders.SetStatus(r.Context(), chi.URLParam(r, "orderId"), req.Status)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
