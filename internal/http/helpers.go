package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"spesedonut/internal/core"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps domain errors to an HTTP status and a user-facing message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidName):
		return http.StatusUnprocessableEntity, "Nome non valido"
	case errors.Is(err, core.ErrInvalidCost):
		return http.StatusUnprocessableEntity, "Importo non valido"
	case errors.Is(err, core.ErrEmptyID):
		return http.StatusUnprocessableEntity, "Identificativo mancante"
	case errors.Is(err, core.ErrRecordNotFound):
		return http.StatusNotFound, "Spesa non trovata"
	case errors.Is(err, core.ErrRemoteOperationFailed):
		return http.StatusBadGateway, "Errore nel salvataggio, riprova"
	default:
		return http.StatusInternalServerError, "Errore interno"
	}
}

// wantsJSON reports whether the caller asked for JSON rather than an HTMX fragment.
func wantsJSON(r *http.Request) bool {
	if r.Header.Get("HX-Request") != "" {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
