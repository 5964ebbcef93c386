package stream

import (
	"encoding/json"
	"net/http"
)

// Serve streams hub frames to one HTTP client until it disconnects or the hub
// shuts down. Initial events are queued right after the acknowledgement.
func Serve(w http.ResponseWriter, r *http.Request, h *Hub, initial ...Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache, no-transform")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	c := h.Subscribe()
	defer h.Unsubscribe(c.ID)

	for _, ev := range initial {
		if b, err := json.Marshal(ev); err == nil {
			h.Offer(c.ID, DataFrame(b))
		}
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-c.Frames():
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
