// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/insight-platform/insightd/internal/store"
)

// errorBody is the JSON error envelope returned by every endpoint.
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeBadRequest writes a 400 validation error
func writeBadRequest(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Detail: detail})
}

// writeNotFound writes a 404 Not Found response
func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found"})
}

// writeConflict writes a 409 Conflict response
func writeConflict(w http.ResponseWriter, code, detail string) {
	writeJSON(w, http.StatusConflict, errorBody{Error: code, Detail: detail})
}

// writeInternal writes a 500 response without leaking internals
func writeInternal(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error"})
}

// writeStoreError maps storage errors onto the API error envelope.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeNotFound(w)
	case errors.Is(err, store.ErrPollClosed):
		writeConflict(w, "poll_closed", "the poll no longer accepts votes")
	case errors.Is(err, store.ErrDuplicateVote):
		writeConflict(w, "duplicate_vote", "this student has already voted")
	default:
		writeInternal(w)
	}
}

// decodeJSON decodes a request body with a size cap, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeBadRequest(w, "malformed JSON body: "+err.Error())
		return false
	}
	return true
}
