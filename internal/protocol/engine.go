// Package protocol implements the firmware protocol engine: the framed
// byte-stream dispatcher that sits between the emulated CPU and the
// virtual filesystem / WebSocket link, per SPEC_FULL.md §4.4.
package protocol

import (
	"context"
	"log"
	"sync"

	"rainbow-espd/internal/vfs"
	"rainbow-espd/internal/wslink"
)

// Engine owns all mutable firmware state behind a single lock, per
// SPEC_FULL.md §5: the byte queues, the virtual filesystem, the working
// file cursor, and the WebSocket link handle.
type Engine struct {
	mu sync.Mutex

	rxBuf []byte
	txBuf []byte

	expectingLength bool
	declaredLength  int
	lastByteRead    byte

	fs          *vfs.FS
	workingPath int
	workingFile int
	fileOffset  uint32

	link *wslink.Link
}

// New constructs an engine and best-effort dials the configured WebSocket
// URL, so the link is created on construction.
func New(dialer wslink.Dialer, wsURL string) *Engine {
	e := &Engine{
		fs:              vfs.New(),
		expectingLength: true,
		workingFile:     vfs.NoFile,
		link:            wslink.New(dialer, wsURL),
	}
	e.link.Connect(context.Background())
	return e
}

// Shutdown closes the WebSocket link and waits for its close-waiter
// goroutine to finish, per SPEC_FULL.md §5.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	e.link.Disconnect()
	e.mu.Unlock()
	e.link.Wait()
}

// RX feeds one byte from the CPU into the engine, per spec.md §4.1.
func (e *Engine) RX(v byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.expectingLength {
		e.declaredLength = int(v) + 1
		e.expectingLength = false
	}
	e.rxBuf = append(e.rxBuf, v)

	if len(e.rxBuf) == e.declaredLength {
		frame := e.rxBuf
		e.dispatch(frame)
		e.rxBuf = nil
		e.expectingLength = true
	}
}

// TX pumps the WebSocket link once, pops the next outbound byte if any,
// and returns the latched last-byte-read value, per spec.md §4.1.
func (e *Engine) TX() byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pumpLinkLocked()
	if len(e.txBuf) > 0 {
		e.lastByteRead = e.txBuf[0]
		e.txBuf = e.txBuf[1:]
	}
	return e.lastByteRead
}

// SetGPIO15 is accepted and ignored, per spec.md §4.1.
func (e *Engine) SetGPIO15(bool) {}

// GetGPIO15 pumps the link once and reports whether data is waiting.
func (e *Engine) GetGPIO15() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pumpLinkLocked()
	return len(e.txBuf) > 0
}

func (e *Engine) pumpLinkLocked() {
	data, ok := e.link.Poll()
	if !ok {
		return
	}
	e.pushFrameLocked(eMessageFromServer, data...)
}

// pushFrameLocked appends one complete response frame (preamble, length,
// opcode, args) to txBuf in a single contiguous run, per spec.md §5's
// ordering guarantee. Must be called with mu held.
func (e *Engine) pushFrameLocked(opcode byte, args ...byte) {
	e.txBuf = append(e.txBuf, e.lastByteRead, byte(1+len(args)), opcode)
	e.txBuf = append(e.txBuf, args...)
}

// dispatch executes one completed inbound frame against the shared state.
// frame[0] is the declared payload length, frame[1] the opcode, the rest
// are arguments. Must be called with mu held.
func (e *Engine) dispatch(frame []byte) {
	if len(frame) < 2 {
		return
	}
	opcode := frame[1]
	args := frame[2:]

	switch opcode {
	case opGetEspStatus:
		e.pushFrameLocked(eReady)

	case opDebugLog:
		log.Printf("rainbow: debug/log % x", args)

	case opClearBuffers:
		e.txBuf = nil
		e.rxBuf = nil

	case opGetWifiStatus:
		e.pushFrameLocked(eWifiStatus, 3)

	case opGetServerStatus:
		var open byte
		if e.link.IsOpen() {
			open = 1
		}
		e.pushFrameLocked(eServerStatus, open)

	case opConnectToServer:
		e.link.Connect(context.Background())

	case opDisconnectFromServer:
		e.link.Disconnect()

	case opSendMessageToServer:
		e.link.Send(args)

	case opFileOpen:
		if len(args) == 2 {
			p, f := int(args[0]), int(args[1])
			if vfs.InRange(p, f) {
				e.workingPath, e.workingFile = p, f
				e.fileOffset = 0
				e.fs.Open(p, f)
			}
		}

	case opFileClose:
		e.workingFile = vfs.NoFile

	case opFileExists:
		if len(args) == 2 {
			p, f := int(args[0]), int(args[1])
			if vfs.InRange(p, f) {
				var exists byte
				if e.fs.Exists(p, f) {
					exists = 1
				}
				e.pushFrameLocked(eFileExists, exists)
			}
		}

	case opFileDelete:
		if len(args) == 2 {
			p, f := int(args[0]), int(args[1])
			if vfs.InRange(p, f) {
				e.fs.Delete(p, f)
			}
		}

	case opFileSetCur:
		if len(args) >= 1 && len(args) <= 4 {
			var off uint32
			for i, b := range args {
				off |= uint32(b) << (8 * uint(i))
			}
			e.fileOffset = off
		}

	case opFileRead:
		if len(args) == 1 {
			n := int(args[0])
			if e.workingFile != vfs.NoFile {
				data := e.fs.Read(e.workingPath, e.workingFile, e.fileOffset, n)
				e.fileOffset += uint32(n)
				if size := uint32(e.fs.Size(e.workingPath, e.workingFile)); e.fileOffset > size {
					e.fileOffset = size
				}
				e.pushFrameLocked(eFileData, append([]byte{byte(len(data))}, data...)...)
			} else {
				e.pushFrameLocked(eFileData, 0)
			}
		}

	case opFileWrite:
		if len(args) >= 1 && int(args[0]) == len(args)-1 && e.workingFile != vfs.NoFile {
			data := args[1:]
			e.fs.Write(e.workingPath, e.workingFile, e.fileOffset, data)
			e.fileOffset += uint32(len(data))
		}

	case opFileAppend:
		if len(args) >= 1 && int(args[0]) == len(args)-1 && e.workingFile != vfs.NoFile {
			data := args[1:]
			size := uint32(e.fs.Size(e.workingPath, e.workingFile))
			e.fs.Write(e.workingPath, e.workingFile, size, data)
		}

	case opGetFileList:
		if len(args) == 1 {
			p := int(args[0])
			if p >= 0 && p < vfs.NumPaths {
				idx := e.fs.ListPath(p)
				resp := make([]byte, 0, len(idx)+1)
				resp = append(resp, byte(len(idx)))
				for _, i := range idx {
					resp = append(resp, byte(i))
				}
				e.pushFrameLocked(eFileList, resp...)
			}
		}

	default:
		log.Printf("rainbow: unknown opcode %#x", opcode)
	}
}
