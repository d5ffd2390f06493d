package http

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// cartEvents streams the cart as server-sent events: once on connect, then
// after every change. Bursts of changes collapse into one event.
func (h *Handler) cartEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	ctx := r.Context()
	store := h.session(r).Cart

	changed := make(chan struct{}, 1)
	unsubscribe := store.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func() error {
		data, err := json.Marshal(newCartView(store.Get(ctx)))
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: cart\ndata: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := send(); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			if err := send(); err != nil {
				h.log.Debug("cart stream closed", "err", err)
				return
			}
		}
	}
}
