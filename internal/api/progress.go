package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"indexwatch/internal/progress"
)

const progressWriteTimeout = 5 * time.Second

var progressUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

// Progress streams batch progress events over a websocket until the client
// goes away.
func (h *Handlers) Progress(w http.ResponseWriter, r *http.Request) {
	conn, err := progressUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case e := <-events:
			if err := writeProgress(conn, e); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeProgress(conn *websocket.Conn, e progress.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(progressWriteTimeout))
	return conn.WriteJSON(e)
}
