// Package wslink manages the single WebSocket connection the firmware
// keeps open to the remote game server: dialing, reconnecting, pumping
// inbound binary frames, and forwarding outbound ones.
package wslink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State mirrors the three ready-states the firmware cares about; the
// wire-level CONNECTING state collapses into NONE since this package only
// ever hands back a handle once the dial has already succeeded.
type State int

const (
	StateNone State = iota
	StateOpen
	StateClosing
)

// DefaultURL is the target the original firmware hard-codes. SPEC_FULL.md
// makes it a configuration option; this is only the fallback default.
const DefaultURL = "ws://localhost:3000"

// Dialer is the minimal collaborator this package needs from a WebSocket
// client library, matching spec.md §6.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn is a single WebSocket connection.
type Conn interface {
	WriteBinary(data []byte) error
	// ReadBinary returns the next binary message without blocking past
	// timeout. ok is false if nothing arrived in time; err is non-nil only
	// on a fatal connection error.
	ReadBinary(timeout time.Duration) (data []byte, ok bool, err error)
	Close() error
}

// GorillaDialer dials real WebSocket servers using gorilla/websocket,
// grounded on internal/transport's WebSocketDialer in the teacher repo.
type GorillaDialer struct {
	Dialer websocket.Dialer
}

func NewGorillaDialer() *GorillaDialer {
	return &GorillaDialer{
		Dialer: websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
		},
	}
}

func (d *GorillaDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := d.Dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}
	return &gorillaConn{conn: conn}, nil
}

type gorillaConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *gorillaConn) WriteBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *gorillaConn) ReadBinary(timeout time.Duration) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	mt, data, err := c.conn.ReadMessage()
	if err != nil {
		if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
			return nil, false, nil
		}
		return nil, false, err
	}
	if mt != websocket.BinaryMessage {
		return nil, false, nil
	}
	return data, true, nil
}

func (c *gorillaConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// pollTick bounds how long a single inbound-pump tick may block, per
// spec.md §5's "a single WebSocket poll tick (bounded to a few
// milliseconds)".
const pollTick = 2 * time.Millisecond

// Link owns at most one Conn at a time and the reconnect/close lifecycle
// around it. It is not safe for concurrent use by itself: the caller (the
// protocol engine) serializes all access under its own lock, per spec.md §5.
type Link struct {
	dialer Dialer
	url    string

	conn  Conn
	state State

	closeWG sync.WaitGroup
}

func New(dialer Dialer, url string) *Link {
	if url == "" {
		url = DefaultURL
	}
	return &Link{dialer: dialer, url: url}
}

func (l *Link) State() State {
	return l.state
}

func (l *Link) IsOpen() bool {
	return l.state == StateOpen
}

// Connect always closes any existing link first, then attempts a fresh
// dial. A failed dial leaves the link in StateNone.
func (l *Link) Connect(ctx context.Context) {
	l.Disconnect()

	conn, err := l.dialer.Dial(ctx, l.url)
	if err != nil {
		l.state = StateNone
		return
	}
	l.conn = conn
	l.state = StateOpen
}

// Disconnect gently closes the current connection on a background
// goroutine that owns the handle for the duration of the close, mirroring
// the original firmware's detached close-waiter thread. The engine forgets
// the handle immediately; Disconnect never blocks.
func (l *Link) Disconnect() {
	if l.conn == nil {
		l.state = StateNone
		return
	}
	conn := l.conn
	l.conn = nil
	l.state = StateNone

	l.closeWG.Add(1)
	go func() {
		defer l.closeWG.Done()
		_ = conn.Close()
	}()
}

// Wait blocks until any in-flight close-waiter goroutines have finished.
// Called on engine shutdown, per spec.md §5.
func (l *Link) Wait() {
	l.closeWG.Wait()
}

// Send forwards payload to the server as a single binary frame if the link
// is open; it is dropped silently otherwise.
func (l *Link) Send(payload []byte) {
	if l.state != StateOpen || l.conn == nil {
		return
	}
	if err := l.conn.WriteBinary(payload); err != nil {
		l.Disconnect()
	}
}

// Poll gives the link one chance to deliver a complete inbound binary
// frame. It returns ok=false if nothing arrived within pollTick, and drops
// (returns ok=false) frames larger than 255 bytes since those cannot be
// represented on the CPU wire format.
func (l *Link) Poll() (data []byte, ok bool) {
	if l.state != StateOpen || l.conn == nil {
		return nil, false
	}
	data, ok, err := l.conn.ReadBinary(pollTick)
	if err != nil {
		l.Disconnect()
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if len(data) > 255 {
		return nil, false
	}
	return data, true
}
