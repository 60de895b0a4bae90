package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cachestats/internal/metrics"
	"cachestats/internal/middleware"
	"cachestats/internal/report"
)

const streamWriteWait = 5 * time.Second

var streamUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleStream pushes a full report right away and then once per stream
// interval until the client goes away.
func (a *API) HandleStream(w http.ResponseWriter, r *http.Request) {
	if !a.streamLimiter.TryAcquire() {
		writeError(w, http.StatusServiceUnavailable, "too many stream clients")
		return
	}
	defer a.streamLimiter.Release()

	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		middleware.LogWithTrace(r.Context()).Warn("Stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.StreamClients.Inc()
	defer metrics.StreamClients.Dec()

	// The reader only drains control frames and notices the close.
	done := make(chan struct{})
	var once sync.Once
	go func() {
		defer once.Do(func() { close(done) })
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func() bool {
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(report.Build(r.Context(), a.registry)) == nil
	}
	if !send() {
		return
	}

	ticker := time.NewTicker(a.streamInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}
