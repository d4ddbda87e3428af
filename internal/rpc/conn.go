package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/silkedit/silkedit-helper/internal/log"
)

// Handler receives inbound traffic. Both methods run on the read goroutine
// and must not block; long work belongs in a fiber.
type Handler interface {
	HandleNotify(method string, args Args)
	HandleRequest(method string, args Args, resp *Response)
}

// ReplyFunc writes a response. errVal is nil on success.
type ReplyFunc func(errVal, result any) error

// Response is the reply slot of one inbound request.
type Response struct {
	Method string
	send   ReplyFunc
	done   atomic.Bool
}

// NewResponse builds a reply slot around send.
func NewResponse(method string, send ReplyFunc) *Response {
	return &Response{Method: method, send: send}
}

// Result answers the request with v.
func (r *Response) Result(v any) error {
	if !r.done.CompareAndSwap(false, true) {
		return ErrAlreadyReplied
	}
	return r.send(nil, v)
}

// Error answers the request with an error message.
func (r *Response) Error(msg string) error {
	if !r.done.CompareAndSwap(false, true) {
		return ErrAlreadyReplied
	}
	return r.send(msg, nil)
}

// Replied reports whether the request has been answered.
func (r *Response) Replied() bool {
	return r.done.Load()
}

// Conn is a bidirectional msgpack-rpc style connection.
type Conn struct {
	rwc    io.ReadWriteCloser
	logger *slog.Logger

	wmu sync.Mutex

	mu      sync.Mutex
	nextID  uint32
	pending map[uint32]func(any, error)
	handler Handler
	closed  bool
}

// NewConn wraps an established stream.
func NewConn(rwc io.ReadWriteCloser) *Conn {
	return &Conn{
		rwc:     rwc,
		logger:  log.WithComponent("rpc"),
		pending: make(map[uint32]func(any, error)),
	}
}

// Dial connects to the editor's unix domain socket.
func Dial(ctx context.Context, socketPath string) (*Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", socketPath, err)
	}
	return NewConn(c), nil
}

// SetHandler installs the inbound handler.
func (c *Conn) SetHandler(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Notify sends a fire-and-forget message.
func (c *Conn) Notify(method string, params ...any) error {
	return c.write(encodeNotify(method, params))
}

// Invoke sends a request. done runs exactly once on the read goroutine when the
// matching response arrives. If Invoke returns an error, done is never called.
func (c *Conn) Invoke(method string, params []any, done func(any, error)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.nextID++
	id := c.nextID
	c.pending[id] = done
	c.mu.Unlock()

	if err := c.write(encodeRequest(id, method, params)); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return err
	}
	return nil
}

// Pending returns the number of invokes awaiting a response.
func (c *Conn) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Conn) write(v any) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	return writeFrame(c.rwc, v)
}

// Serve runs the read loop until the peer disconnects, ctx is cancelled or a
// framing error occurs. A clean shutdown returns nil.
func (c *Conn) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		payload, err := readFrame(c.rwc)
		if err != nil {
			if ctx.Err() != nil || c.isClosed() || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				_ = c.Close()
				return nil
			}
			_ = c.Close()
			return err
		}

		msg, err := decodeMessage(payload)
		if err != nil {
			if msg != nil && msg.kind == typeRequest {
				c.logger.Warn("rejecting malformed request", "msgid", msg.msgid, "error", err)
				if werr := c.write(encodeResponse(msg.msgid, "malformed request: "+err.Error(), nil)); werr != nil {
					c.logger.Warn("failed to reject malformed request", "msgid", msg.msgid, "error", werr)
				}
				continue
			}
			c.logger.Warn("dropping malformed message", "error", err)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Conn) dispatch(msg *message) {
	switch msg.kind {
	case typeResponse:
		c.mu.Lock()
		done, ok := c.pending[msg.msgid]
		delete(c.pending, msg.msgid)
		c.mu.Unlock()
		if !ok {
			c.logger.Warn("response for unknown request", "msgid", msg.msgid)
			return
		}
		if msg.err != nil {
			done(nil, &ResponseError{Value: msg.err})
			return
		}
		done(msg.result, nil)

	case typeNotify:
		h := c.currentHandler()
		if h == nil {
			c.logger.Debug("notification without handler", "method", msg.method)
			return
		}
		c.safely(msg.method, func() { h.HandleNotify(msg.method, msg.params) }, nil)

	case typeRequest:
		msgid := msg.msgid
		resp := NewResponse(msg.method, func(errVal, result any) error {
			return c.write(encodeResponse(msgid, errVal, result))
		})
		h := c.currentHandler()
		if h == nil {
			_ = resp.Error("no handler installed")
			return
		}
		c.safely(msg.method, func() { h.HandleRequest(msg.method, msg.params, resp) }, resp)
	}
}

// safely runs fn, turning a panic into a log line and, for requests, an error reply.
func (c *Conn) safely(method string, fn func(), resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panicked", "method", method, "panic", r)
			if resp != nil {
				_ = resp.Error(fmt.Sprintf("internal error: %v", r))
			}
		}
	}()
	fn()
}

func (c *Conn) currentHandler() Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close closes the underlying stream. Pending invokes stay pending.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.rwc.Close()
}
