package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
)

type errorBody struct {
	Error string `json:"error"`
}

// JSON writes v as JSON with the given status code. Encoding errors are
// dropped once the header is written.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError writes a {"error": message} body.
func JSONError(w http.ResponseWriter, status int, message string) {
	JSON(w, status, errorBody{Error: message})
}

// Created writes v with 201 and points Location at the new resource.
func Created(w http.ResponseWriter, location string, v any) {
	w.Header().Set("Location", location)
	JSON(w, http.StatusCreated, v)
}

// Image writes a binary image body. Images derived from immutable data
// (batch codes) pass a long-lived cacheControl.
func Image(w http.ResponseWriter, contentType string, data []byte, cacheControl string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if cacheControl != "" {
		w.Header().Set("Cache-Control", cacheControl)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// SafeError returns the message clients see for err. Server-side failures
// are reduced to the status text so store and driver errors never leak.
func SafeError(err error, status int) string {
	if status >= http.StatusInternalServerError {
		return http.StatusText(status)
	}
	return err.Error()
}
