package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
)

const streamHeartbeat = 25 * time.Second

// Stream sends the cart as server-sent events: the current state first, then
// one "cart" event per change. A slow client skips intermediate versions and
// always receives the latest one. The stream ends when the client goes away or
// the server starts shutting down.
func (h *CartHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	release := s.Hold()
	defer release()

	updates := make(chan cart.Snapshot, 1)
	unsubscribe := s.Cart.Subscribe(func(snap cart.Snapshot) {
		select {
		case updates <- snap:
			return
		default:
		}
		// Replace the pending snapshot; notifications are serialized by the
		// store, so this goroutine is the only sender.
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- snap:
		default:
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeCartEvent(w, s.Cart.Snapshot(), s.Promo()); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.streamsDone:
			return
		case snap := <-updates:
			if err := writeCartEvent(w, snap, s.Promo()); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeCartEvent(w http.ResponseWriter, snap cart.Snapshot, promo string) error {
	data, err := json.Marshal(newCartView(snap, promo))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: cart\nid: %d\ndata: %s\n\n", snap.Version, data)
	return err
}
