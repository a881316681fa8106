package protocol

import (
	"context"
	"testing"
	"time"

	"rainbow-espd/internal/wslink"
)

// noDialer always fails to dial, leaving the link in wslink.StateNone -
// the engine must still function with no server connection.
type noDialer struct{}

func (noDialer) Dial(ctx context.Context, url string) (wslink.Conn, error) {
	return nil, errDial
}

type dialErr string

func (e dialErr) Error() string { return string(e) }

const errDial = dialErr("no server")

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(noDialer{}, "ws://unused")
}

func feed(e *Engine, bytes ...byte) {
	for _, b := range bytes {
		e.RX(b)
	}
}

func drain(e *Engine, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = e.TX()
	}
	return out
}

func TestGetEspStatus(t *testing.T) {
	e := newTestEngine(t)
	feed(e, 0x01, 0x00) // len=1, opcode GET_ESP_STATUS
	got := drain(e, 3)
	want := []byte{0x00, 0x01, 0x00}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tx stream=%x want %x", got, want)
		}
	}
}

func TestWriteThenRead(t *testing.T) {
	e := newTestEngine(t)
	feed(e, 0x03, 0x0D, 0x02, 0x0A)             // FILE_OPEN path=2 file=10
	feed(e, 0x06, 0x13, 0x04, 0xDE, 0xAD, 0xBE, 0xEF) // FILE_WRITE 4 bytes
	feed(e, 0x02, 0x11, 0x00)                   // FILE_SET_CUR offset=0
	feed(e, 0x02, 0x12, 0x04)                   // FILE_READ n=4

	got := drain(e, 7)
	want := []byte{0x00, 0x06, 0x03, 0x04, 0xDE, 0xAD, 0xBE}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tx stream=%x want prefix %x", got, want)
		}
	}
	if last := e.TX(); last != 0xEF {
		t.Fatalf("last byte=%x want 0xEF", last)
	}
}

func TestFileListing(t *testing.T) {
	e := newTestEngine(t)
	feed(e, 0x03, 0x0D, 0x02, 0x01) // FILE_OPEN(2,1)
	feed(e, 0x01, 0x0E)             // FILE_CLOSE
	feed(e, 0x03, 0x0D, 0x02, 0x05) // FILE_OPEN(2,5)
	feed(e, 0x01, 0x0E)             // FILE_CLOSE

	got := drain(e, 6) // the four FILE_OPEN/FILE_CLOSE frames queue no response bytes; these reads only return the latched 0x00
	_ = got

	e.mu.Lock()
	idx := e.fs.ListPath(2)
	e.mu.Unlock()
	if len(idx) != 2 || idx[0] != 1 || idx[1] != 5 {
		t.Fatalf("ListPath(2)=%v want [1 5]", idx)
	}

	feed(e, 0x02, 0x15, 0x02) // GET_FILE_LIST path=2
	got = drain(e, 6)
	want := []byte{0x00, 0x04, 0x02, 0x02, 0x01, 0x05}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tx stream=%x want %x", got, want)
		}
	}
}

func TestFileDeleteThenExists(t *testing.T) {
	e := newTestEngine(t)
	feed(e, 0x03, 0x0D, 0x02, 0x0A) // FILE_OPEN(2,10)
	feed(e, 0x03, 0x10, 0x02, 0x0A) // FILE_DELETE(2,10)
	feed(e, 0x03, 0x0F, 0x02, 0x0A) // FILE_EXISTS(2,10)

	got := drain(e, 3)
	want := []byte{0x00, 0x02, 0x01}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tx stream=%x want %x", got, want)
		}
	}
	if b := e.TX(); b != 0x00 {
		t.Fatalf("exists byte=%x want 0x00", b)
	}
}

func TestReadWithNoFileOpenReturnsEmptyFrame(t *testing.T) {
	e := newTestEngine(t)
	feed(e, 0x02, 0x12, 0x04) // FILE_READ n=4, nothing open
	got := drain(e, 3)
	want := []byte{0x00, 0x02, 0x03, 0x00}[:3]
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tx stream=%x want %x", got, want)
		}
	}
	if b := e.TX(); b != 0x00 {
		t.Fatalf("data length byte=%x want 0", b)
	}
}

func TestUnknownOpcodeDropped(t *testing.T) {
	e := newTestEngine(t)
	feed(e, 0x01, 0xFF) // not a known opcode
	if b := e.TX(); b != 0x00 {
		t.Fatalf("expected no response pushed, tx=%x", b)
	}
}

func TestClearBuffers(t *testing.T) {
	e := newTestEngine(t)
	feed(e, 0x01, 0x00) // GET_ESP_STATUS queues a response
	feed(e, 0x01, 0x02) // CLEAR_BUFFERS
	if b := e.TX(); b != 0x00 {
		t.Fatalf("expected queues cleared, tx=%x", b)
	}
}

// stubConn is a minimal wslink.Conn used to exercise the inbound message
// pump without a real network connection.
type stubConn struct {
	inbound chan []byte
}

func (c *stubConn) WriteBinary(data []byte) error { return nil }

func (c *stubConn) ReadBinary(timeout time.Duration) ([]byte, bool, error) {
	select {
	case data := <-c.inbound:
		return data, true, nil
	case <-time.After(timeout):
		return nil, false, nil
	}
}

func (c *stubConn) Close() error { return nil }

type stubDialer struct {
	conn *stubConn
}

func (d *stubDialer) Dial(ctx context.Context, url string) (wslink.Conn, error) {
	return d.conn, nil
}

func TestServerMessagePumpedIntoTx(t *testing.T) {
	conn := &stubConn{inbound: make(chan []byte, 1)}
	e := New(&stubDialer{conn: conn}, "ws://stub")

	conn.inbound <- []byte{0xAA, 0xBB, 0xCC}

	got := drain(e, 6)
	want := []byte{0x00, 0x04, 0x08, 0xAA, 0xBB, 0xCC}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tx stream=%x want %x", got, want)
		}
	}
}

func TestGetServerStatusReflectsLink(t *testing.T) {
	conn := &stubConn{inbound: make(chan []byte, 1)}
	e := New(&stubDialer{conn: conn}, "ws://stub")

	feed(e, 0x01, 0x08) // GET_SERVER_STATUS
	got := drain(e, 3)
	want := []byte{0x00, 0x02, 0x05}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tx stream=%x want %x", got, want)
		}
	}
	if b := e.TX(); b != 0x01 {
		t.Fatalf("server status byte=%x want 1 (open)", b)
	}
}
