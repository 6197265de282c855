package httpx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/techguru-shop/internal/users"
)

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UsersHandler struct {
	Service *users.Service
	Log     *slog.Logger
}

func (h *UsersHandler) Register(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Get("/type/{userType}", h.listByType)
		r.Get("/{userId}", h.get)
		r.Put("/{userId}", h.update)
	})
}

func (h *UsersHandler) register(w http.ResponseWriter, r *http.Request) {
	var req users.Registration
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	u, err := h.Service.Register(r.Context(), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *UsersHandler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	u, err := h.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UsersHandler) get(w http.ResponseWriter, r *http.Request) {
	u, err := h.Service.Get(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UsersHandler) update(w http.ResponseWriter, r *http.Request) {
	var req users.Update
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	u, err := h.Service.Update(r.Context(), chi.URLParam(r, "userId"), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UsersHandler) listByType(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListByType(r.Context(), users.Type(chi.URLParam(r, "userType")))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
