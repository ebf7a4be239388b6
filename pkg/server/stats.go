package server

import (
	"encoding/json"
	"log"
	"net/http"

	"ledgerhooks/pkg/queue"
)

type statsResponse struct {
	Queue string      `json:"queue"`
	Jobs  queue.Stats `json:"jobs"`
}

// statsHandler exposes lane and sink sizes for operational visibility.
func statsHandler(q *queue.PriorityQueue, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		stats, err := q.Stats(r.Context())
		if err != nil {
			logger.Printf("queue stats failed: %v", err)
			http.Error(w, "queue backend unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statsResponse{Queue: q.Name(), Jobs: stats})
	})
}
