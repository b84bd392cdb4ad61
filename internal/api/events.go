package api

import (
	"encoding/json"
	"net/http"

	"focusd/internal/bus"
)

// events streams change notifications as server-sent events so UI
// surfaces can re-render without polling. Events a slow client cannot
// keep up with are dropped; the client re-reads the full state anyway.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := make(chan bus.Event, 16)
	unsubscribe := s.manager.Bus().Subscribe(func(e bus.Event) {
		select {
		case ch <- e:
		default:
		}
	})
	defer unsubscribe()

	flusher.Flush()
	for {
		select {
		case e := <-ch:
			payload, _ := json.Marshal(map[string]any{
				"kind": e.Kind,
				"at":   e.At.UnixMilli(),
			})
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
