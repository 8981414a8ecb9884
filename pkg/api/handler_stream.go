package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// upgrader accepts any origin. Origin validation is deferred to a later
// security pass, consistent with the rest of the boundary's open posture.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// userStreamHandler handles WS /api/v1/stream/:user_id. Clients subscribe to
// events.UserChannel(user_id) to receive covenant.status lifecycle events
// for that user; the protocol is otherwise identical to the task stream.
func (s *Server) userStreamHandler(c *gin.Context) {
	s.serveStream(c)
}

// covenantStreamHandler handles WS /api/v1/stream/task/:covenant_id. Clients
// subscribe to events.CovenantChannel(covenant_id) to receive
// subagent.status and orchestration.progress events for one in-flight covenant.
func (s *Server) covenantStreamHandler(c *gin.Context) {
	s.serveStream(c)
}

// serveStream upgrades the connection and hands it to the ConnectionManager.
// Channel subscription is client-driven (subscribe/unsubscribe/catchup/ping
// messages over the socket) so both endpoints share identical handling; only
// the channel the client is expected to subscribe to differs.
func (s *Server) serveStream(c *gin.Context) {
	if s.connManager == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "streaming not available"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	s.connManager.HandleConnection(c.Request.Context(), conn)
}
