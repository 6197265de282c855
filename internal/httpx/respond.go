package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
	"github.com/ariefcatur/techguru-shop/internal/inventory"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return apperr.Invalid("invalid json: %v", err)
	}
	return nil
}

// writeError maps an error kind to its status. Unclassified errors are
// logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	if e, ok := apperr.AsInsufficientStock(err); ok {
		writeJSON(w, http.StatusConflict, inventory.StockErrorBody{Error: e.Error(), ProductID: e.ProductID, Available: e.Available})
		return
	}
	code := http.StatusInternalServerError
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Reason})
		return
	case errors.Is(err, apperr.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, apperr.ErrUnauthorized):
		code = http.StatusUnauthorized
	case errors.Is(err, apperr.ErrInvalidTransition), errors.Is(err, apperr.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, apperr.ErrDependencyUnavailable):
		code = http.StatusServiceUnavailable
	}
	msg := err.Error()
	if code == http.StatusInternalServerError {
		if log != nil {
			log.Error("unhandled error", "err", err)
		}
		msg = "internal error"
	}
	writeJSON(w, code, map[string]string{"error": msg})
}

func positiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, apperr.Invalid("%q is not a positive integer", s)
	}
	return n, nil
}
