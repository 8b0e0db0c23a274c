package handler

import (
	"github.com/GoPolymarket/fundgate/internal/events"
	"github.com/gin-gonic/gin"
)

type StreamHandler struct {
	hub *events.Hub
}

func NewStreamHandler(hub *events.Hub) *StreamHandler {
	return &StreamHandler{hub: hub}
}

// Serve upgrades to a websocket of change events, optionally filtered by
// ?fund.
func (h *StreamHandler) Serve(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request, c.Query("fund"))
}
