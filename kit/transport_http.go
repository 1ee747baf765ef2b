package kit

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPDecoder extracts an endpoint request from an HTTP request.
type HTTPDecoder func(r *http.Request) (any, error)

// DecodeJSON decodes the body into a fresh *T. An empty body yields the zero
// request.
func DecodeJSON[T any](r *http.Request) (any, error) {
	var v T
	if r.Body == nil || r.ContentLength == 0 {
		return &v, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// HTTPHandler serves endpoint over HTTP with JSON responses. status maps
// endpoint errors to HTTP status codes; nil means 500 for every error.
func HTTPHandler(endpoint Endpoint, decode HTTPDecoder, status func(error) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := WithTransport(r.Context(), "http")
		if id := r.Header.Get("X-Request-Id"); id != "" {
			ctx = WithRequestID(ctx, id)
			w.Header().Set("X-Request-Id", id)
		}

		req, err := decode(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}

		resp, err := endpoint(ctx, req)
		if err != nil {
			code := http.StatusInternalServerError
			if status != nil {
				code = status(err)
			}
			writeError(w, code, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
