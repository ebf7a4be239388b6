package server

import (
	"encoding/json"
	"net/http"
)

type healthResponse struct {
	Status string `json:"status"`
	Queue  string `json:"queue"`
}

func healthHandler(queuePing func(r *http.Request) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", http.MethodGet+", "+http.MethodHead)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		resp := healthResponse{Status: "ok", Queue: "ok"}
		if queuePing != nil {
			if err := queuePing(r); err != nil {
				// The gateway keeps accepting webhooks through the inline
				// fallback, so a queue outage degrades rather than fails.
				resp.Queue = "unavailable"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
}
