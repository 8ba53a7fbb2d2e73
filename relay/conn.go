package relay

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Conn wraps one websocket connection as a participant-facing transport:
// a connection plus a mutex guarding concurrent writes (gorilla/websocket
// connections are not safe for concurrent writers).
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// NewConn wraps an already-upgraded websocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Send implements session.Transport: writes one framed Envelope as a
// single binary websocket message.
func (c *Conn) Send(kind string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.BinaryMessage, payload)
}

// SendEnvelope frames and sends one relay message.
func (c *Conn) SendEnvelope(env Envelope) error {
	return c.Send("", EncodeEnvelope(env))
}

// Recv blocks for the next inbound binary message and decodes it as an
// Envelope.
func (c *Conn) Recv() (Envelope, error) {
	_, payload, err := c.ws.ReadMessage()
	if err != nil {
		return Envelope{}, err
	}
	return DecodeEnvelope(payload)
}

// Close implements session.Transport.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// Upgrader is a thin wrapper around websocket.Upgrader with a permissive
// CheckOrigin suited to local/dev deployments; production hosts should
// install a stricter CheckOrigin.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}
