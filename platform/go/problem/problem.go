// Package problem renders RFC 7807 problem details and plain JSON responses.
package problem

import (
	"encoding/json"
	"net/http"
)

const (
	TypeValidation   = "https://igreja.app/problems/validation-error"
	TypeNotFound     = "https://igreja.app/problems/not-found"
	TypeConflict     = "https://igreja.app/problems/conflict"
	TypeUnauthorized = "https://igreja.app/problems/unauthorized"
	TypeForbidden    = "https://igreja.app/problems/forbidden"
	TypeAuth         = "https://igreja.app/problems/auth-error"
	TypeInternal     = "https://igreja.app/problems/internal-error"
)

// Details is the application/problem+json body.
type Details struct {
	Type   string              `json:"type,omitempty"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail string              `json:"detail,omitempty"`
	Code   string              `json:"code,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// New builds a Details value, copying field errors so callers can reuse their maps.
func New(status int, title, detail, problemType string, fieldErrors map[string][]string) Details {
	p := Details{Type: problemType, Title: title, Status: status, Detail: detail}
	if len(fieldErrors) > 0 {
		copied := make(map[string][]string, len(fieldErrors))
		for field, messages := range fieldErrors {
			copied[field] = append([]string(nil), messages...)
		}
		p.Errors = copied
	}
	return p
}

// Write serialises the problem with the matching status code.
func Write(w http.ResponseWriter, p Details) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// WriteJSON serialises v as application/json.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

type bodyError string

func (e bodyError) Error() string { return string(e) }

const errEmptyBody bodyError = "request body is required"
