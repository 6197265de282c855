package httpx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/techguru-shop/internal/carts"
)

type CartItemReq struct {
	UserID    string          `json:"userId"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Name      string          `json:"name"`
}

type CartsHandler struct {
	Service *carts.Service
	Log     *slog.Logger
}

func (h *CartsHandler) Register(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Post("/add", h.add)
		r.Post("/remove", h.remove)
		r.Put("/update", h.update)
		r.Get("/{userId}", h.get)
		r.Delete("/{userId}", h.clear)
	})
}

func (h *CartsHandler) add(w http.ResponseWriter, r *http.Request) {
	var req CartItemReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	c, err := h.Service.AddItem(r.Context(), req.UserID, carts.Line{
		ProductID: req.ProductID, Quantity: req.Quantity, Price: req.Price, Name: req.Name,
	})
	h.writeCart(w, c, err)
}

func (h *CartsHandler) remove(w http.ResponseWriter, r *http.Request) {
	var req CartItemReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	c, err := h.Service.RemoveItem(r.Context(), req.UserID, req.ProductID)
	h.writeCart(w, c, err)
}

func (h *CartsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req CartItemReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	c, err := h.Service.UpdateItem(r.Context(), req.UserID, req.ProductID, req.Quantity)
	h.writeCart(w, c, err)
}

func (h *CartsHandler) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Service.GetCart(r.Context(), chi.URLParam(r, "userId"))
	h.writeCart(w, c, err)
}

func (h *CartsHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Clear(r.Context(), chi.URLParam(r, "userId")); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartsHandler) writeCart(w http.ResponseWriter, c carts.Cart, err error) {
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
