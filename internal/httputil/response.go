// Package httputil holds the JSON response helpers and middleware shared by
// the booth's HTTP handlers.
package httputil

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/banshee-data/photobooth/internal/monitoring"
)

// ErrorBody is the envelope for failed API calls. The browser client checks
// ok before reading any other field.
type ErrorBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Logf("failed to encode json response: %v", err)
	}
}

// WriteJSONOK writes a successful JSON response (200 OK).
func WriteJSONOK(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSONError writes {"ok":false,"error":code} with the given status.
// code is a short machine-readable token such as "no_file".
func WriteJSONError(w http.ResponseWriter, status int, code string) {
	WriteJSON(w, status, ErrorBody{OK: false, Error: code})
}

// MethodNotAllowed writes a 405 response.
func MethodNotAllowed(w http.ResponseWriter) {
	WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed")
}

// BadRequest writes a 400 response.
func BadRequest(w http.ResponseWriter, code string) {
	WriteJSONError(w, http.StatusBadRequest, code)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, code string) {
	WriteJSONError(w, http.StatusNotFound, code)
}

// InternalServerError writes a 500 response.
func InternalServerError(w http.ResponseWriter, code string) {
	WriteJSONError(w, http.StatusInternalServerError, code)
}

// CORS echoes the request Origin (or "*") and answers preflight requests
// with 204 before they reach next.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		} else {
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestOrigin returns scheme://host for building absolute URLs. Proxy
// headers win over the connection: the first X-Forwarded-Proto entry and
// X-Forwarded-Host.
func RequestOrigin(r *http.Request) string {
	proto := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-Proto"), ",")[0])
	if proto == "" {
		proto = "http"
		if r.TLS != nil {
			proto = "https"
		}
	}
	host := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-Host"), ",")[0])
	if host == "" {
		host = r.Host
	}
	return proto + "://" + host
}
