package httputil

import (
	"encoding/json"
	"net/http"
)

// RespondWithError writes {"error": message}.
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]string{"error": message})
}

// RespondWithFieldErrors writes a 400 carrying per-field messages.
func RespondWithFieldErrors(w http.ResponseWriter, message string, fields map[string]string) {
	RespondWithJSON(w, http.StatusBadRequest, map[string]any{
		"error":  message,
		"fields": fields,
	})
}

func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Redirect sends a 303 for form posts and a 302 otherwise.
func Redirect(w http.ResponseWriter, r *http.Request, location string) {
	code := http.StatusFound
	if r.Method == http.MethodPost {
		code = http.StatusSeeOther
	}
	http.Redirect(w, r, location, code)
}
