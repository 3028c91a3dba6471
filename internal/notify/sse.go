package notify

import (
	"fmt"
	"net/http"

	"github.com/plantops/breakdown-board/internal/pkg/ctxlog"
)

// SSEHandler streams broker events to the client as server-sent events.
// A "ready" event is sent immediately so clients can confirm the stream
// is up; the subscription is removed when the client disconnects.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		fmt.Fprint(w, "event: ready\ndata: {}\n\n")
		flusher.Flush()

		ch := broker.Subscribe()
		defer broker.Unsubscribe(ch)

		logger := ctxlog.FromContext(r.Context())
		logger.Debug("event stream opened", "remote_addr", r.RemoteAddr)

		for {
			select {
			case <-r.Context().Done():
				logger.Debug("event stream closed", "remote_addr", r.RemoteAddr)
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
				flusher.Flush()
			}
		}
	}
}
