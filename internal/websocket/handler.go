package websocket

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs handles websocket requests from the peer.
func ServeWs(hub *Hub, c *websocket.Conn, handle RequestHandler) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &Client{
		ID:     uuid.New(),
		Hub:    hub,
		Conn:   c,
		Send:   make(chan []byte, 256),
		handle: handle,
	}
	if !client.Hub.Register(client) {
		c.Close()
		return
	}

	go client.writePump(cancel)
	client.readPump(ctx) // Run readPump in current goroutine (handler)
}
