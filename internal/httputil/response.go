// Package httputil holds the response and query helpers shared by the
// report HTTP handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/banshee-data/pothole.report/internal/report"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// WriteJSON writes data as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode json response: %v", err)
	}
}

// WriteJSONError writes {"error": msg} with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorBody{Error: msg})
}

// BadRequest writes a 400 response.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusBadRequest, msg)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusNotFound, msg)
}

// WriteStoreError maps a store error to a response: report.ErrNotFound is a
// 404, anything else a 500 naming what failed.
func WriteStoreError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, report.ErrNotFound) {
		NotFound(w, what+" not found")
		return
	}
	log.Printf("failed to load %s: %v", what, err)
	WriteJSONError(w, http.StatusInternalServerError, "failed to load "+what)
}

// QueryLimit parses the "limit" query parameter. Missing means def; values
// above ceiling are capped.
func QueryLimit(r *http.Request, def, ceiling int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid 'limit' parameter %q", v)
	}
	if ceiling > 0 && n > ceiling {
		n = ceiling
	}
	return n, nil
}
