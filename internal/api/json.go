package api

import (
    "encoding/json"
    "errors"
    "net/http"

    "fleetroute/internal/model"
    "fleetroute/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
    Type     string `json:"type"`
    Title    string `json:"title"`
    Status   int    `json:"status"`
    Detail   string `json:"detail,omitempty"`
    Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
    w.Header().Set("Content-Type", "application/problem+json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(Problem{
        Type:     "about:blank",
        Title:    title,
        Status:   status,
        Detail:   detail,
        Instance: instance,
    })
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
    switch {
    case errors.Is(err, model.ErrInvalidConfiguration), errors.Is(err, model.ErrIndexOutOfRange):
        return http.StatusBadRequest
    case errors.Is(err, store.ErrNotFound):
        return http.StatusNotFound
    }
    return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, title string, err error) {
    writeProblem(w, statusFor(err), title, err.Error(), r.URL.Path)
}
