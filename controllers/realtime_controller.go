package controllers

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"nutritrack/services"
)

type RealtimeController struct {
	RT       *services.RealtimeHub
	Upgrader websocket.Upgrader
}

// NewRealtimeController accepts upgrades from any origin when origins is
// empty or contains "*".
func NewRealtimeController(rt *services.RealtimeHub, origins []string) *RealtimeController {
	rc := &RealtimeController{RT: rt}
	rc.Upgrader.CheckOrigin = func(r *http.Request) bool {
		if len(origins) == 0 || slices.Contains(origins, "*") {
			return true
		}
		return slices.Contains(origins, r.Header.Get("Origin"))
	}
	return rc
}

// GET /ws streams capture.state and alert.created events for the caller.
func (rc *RealtimeController) Stream(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	conn, err := rc.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	cl := &services.WSClient{UserID: uid, Conn: conn}
	rc.RT.Register(cl)

	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(25 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if err := cl.Write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// The read loop ends when the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			rc.RT.Unregister(cl)
			return
		}
	}
}
