package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
	"github.com/ariefcatur/techguru-shop/internal/events"
	"github.com/ariefcatur/techguru-shop/internal/inventory"
)

type ProductPayload struct {
	ProductID string          `json:"productId"`
	SellerID  string          `json:"sellerId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type RestockReq struct {
	Quantity int `json:"quantity"`
}

// ProductsHandler serves the catalog and the reservation ledger the order
// service checks out against.
type ProductsHandler struct {
	Store    inventory.Store
	Notifier events.Notifier
	Producer string
	Log      *slog.Logger
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/search", h.search)
		r.Get("/categories", h.categories)
		r.Get("/seller/{sellerId}", h.bySeller)
		r.Get("/{productId}", h.get)
		r.Put("/{productId}", h.update)
		r.Delete("/{productId}", h.delete)
		r.Post("/{productId}/restock", h.restock)
		r.Get("/{productId}/availability", h.availability)
	})
	r.Route("/inventory/reservations", func(r chi.Router) {
		r.Post("/", h.reserve)
		r.Post("/{reservationId}/commit", h.commit)
		r.Post("/{reservationId}/release", h.release)
	})
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := inventory.Filter{Category: q.Get("category"), SellerID: q.Get("sellerId"), Query: q.Get("q")}
	var err error
	if f.MinPrice, err = optDecimal(q.Get("minPrice"), "minPrice"); err == nil {
		f.MaxPrice, err = optDecimal(q.Get("maxPrice"), "maxPrice")
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.writeList(w, r.Context(), f)
}

func optDecimal(v, name string) (*decimal.Decimal, error) {
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, apperr.Invalid("%s must be a number", name)
	}
	return &d, nil
}

func (h *ProductsHandler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, h.Log, apperr.Invalid("q is required"))
		return
	}
	h.writeList(w, r.Context(), inventory.Filter{Query: q, Category: r.URL.Query().Get("category")})
}

func (h *ProductsHandler) bySeller(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r.Context(), inventory.Filter{SellerID: chi.URLParam(r, "sellerId")})
}

func (h *ProductsHandler) writeList(w http.ResponseWriter, ctx context.Context, f inventory.Filter) {
	ps, err := h.Store.List(ctx, f)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) categories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Store.Categories(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	var p inventory.Product
	if err := decode(r, &p); err != nil {
		writeError(w, h.Log, err)
		return
	}
	p, err := h.Store.Create(r.Context(), p)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.publish(r.Context(), events.ProductCreated, p)
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.Get(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) update(w http.ResponseWriter, r *http.Request) {
	var u inventory.ProductUpdate
	if err := decode(r, &u); err != nil {
		writeError(w, h.Log, err)
		return
	}
	p, err := h.Store.Update(r.Context(), chi.URLParam(r, "productId"), u)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.publish(r.Context(), events.ProductUpdated, p)
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productId")
	if err := h.Store.Delete(r.Context(), id); err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.publish(r.Context(), events.ProductDeleted, inventory.Product{ID: id})
	writeJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

func (h *ProductsHandler) restock(w http.ResponseWriter, r *http.Request) {
	var req RestockReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	p, err := h.Store.Restock(r.Context(), chi.URLParam(r, "productId"), req.Quantity)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.publish(r.Context(), events.ProductRestocked, p)
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) availability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productId")
	qty := 1
	if v := r.URL.Query().Get("quantity"); v != "" {
		n, err := positiveInt(v)
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		qty = n
	}
	ok, err := h.Store.CheckAvailability(r.Context(), id, qty)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, inventory.Availability{ProductID: id, Quantity: qty, Available: ok})
}

func (h *ProductsHandler) reserve(w http.ResponseWriter, r *http.Request) {
	var req inventory.ReserveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	res, err := h.Store.Reserve(r.Context(), req.OrderID, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *ProductsHandler) commit(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Commit(r.Context(), inventory.Reservation{ID: chi.URLParam(r, "reservationId")}); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductsHandler) release(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Release(r.Context(), inventory.Reservation{ID: chi.URLParam(r, "reservationId")}); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductsHandler) publish(ctx context.Context, name string, p inventory.Product) {
	b, err := events.Encode(name, h.Producer, p.ID, ProductPayload{
		ProductID: p.ID, SellerID: p.SellerID, Name: p.Name, Price: p.Price, Quantity: p.Quantity,
	})
	if err == nil {
		err = h.Notifier.Publish(ctx, events.TopicProducts, name, b)
	}
	if err != nil {
		h.Log.Warn("publish product event", "product_id", p.ID, "event", name, "err", err)
	}
}
