package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/thirza258/ragreader/internal/apperr"
)

// response is the standard success envelope named in spec §6:
// {status, message, timestamp, data}.
type response struct {
	Status    int         `json:"status"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, response{Status: status, Message: message, Timestamp: time.Now().UTC(), Data: data})
}

// writeError projects err through apperr's taxonomy into the same
// envelope shape, with data omitted per spec §7.
func writeError(w http.ResponseWriter, err error) {
	env := apperr.ToEnvelope(err)
	writeJSON(w, env.Status, response{Status: env.Status, Message: env.Message, Timestamp: env.Timestamp})
}
