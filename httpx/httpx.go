package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxBodyBytes bounds request bodies read by this package.
const MaxBodyBytes = 1 << 20

// DecodeJSON decodes a single JSON value from r into dest enforcing strict
// JSON handling. Unknown fields and trailing data are rejected.
func DecodeJSON(r io.Reader, dest any) error {
	decoder := json.NewDecoder(io.LimitReader(r, MaxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dest); err != nil {
		return err
	}

	if decoder.More() {
		return errors.New("unexpected data after JSON payload")
	}

	return nil
}

// ReadBody returns the raw request body, failing when it exceeds MaxBodyBytes.
func ReadBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()

	data, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxBodyBytes {
		return nil, fmt.Errorf("request body exceeds %d bytes", MaxBodyBytes)
	}
	return data, nil
}

// WriteJSON serializes v as JSON with the provided status code. Values that
// fail to encode produce a 500 instead of a truncated body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]string{"error": "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// Error writes a structured error response.
func Error(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// QueryList collects every value of key, splitting comma separated entries
// and dropping blanks, so ?zone=a&zone=b and ?zone=a,b are equivalent.
func QueryList(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.URL.Query()[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
