package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	errMissingParam = errors.New("required request parameter is not present")
	errBadParam     = errors.New("request parameter has the wrong type")
)

// paramError names the query parameter a request failed on.
type paramError struct {
	name string
	kind string
	err  error
}

func (e *paramError) Error() string {
	if errors.Is(e.err, errMissingParam) {
		return fmt.Sprintf("Required %s parameter '%s' is not present", e.kind, e.name)
	}
	return fmt.Sprintf("Failed to convert value of parameter '%s' to %s", e.name, e.kind)
}

func (e *paramError) Unwrap() error { return e.err }

// ErrorBody is the JSON envelope returned for every error status.
type ErrorBody struct {
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
}

// WriteError answers r with status and the error envelope.
func WriteError(w http.ResponseWriter, r *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorBody{
		Timestamp: time.Now().UTC(),
		Path:      r.URL.Path,
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
	})
}

// NotFound answers requests no route matched.
func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusNotFound, "No route matched "+r.URL.Path)
}

// MethodNotAllowed answers GET-only endpoints called with another method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodGet)
	WriteError(w, r, http.StatusMethodNotAllowed, "Request method '"+r.Method+"' is not supported")
}
