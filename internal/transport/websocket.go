// Package transport connects a dispatcher to the suggestion backend over a
// WebSocket. Outgoing rpc effects and incoming replies are JSON text frames,
// one event per frame.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/abhisek/predtext/internal/event"
)

// ErrSendBufferFull is reported when rpc effects arrive faster than they can
// be written.
var ErrSendBufferFull = errors.New("transport send buffer full")

// ErrClosed is reported for sends after Close.
var ErrClosed = errors.New("transport closed")

// Options configures a WebSocket.
type Options struct {
	// OnEvent receives every incoming event except backlogs, typically
	// backendReply. Called from the read goroutine.
	OnEvent func(event.Event)

	// OnBacklog receives the events of an incoming backlog frame.
	OnBacklog func([]event.Event)

	Header     http.Header
	SendBuffer int
	Logger     *slog.Logger
}

// WebSocket is a client connection to the backend. It implements the
// dispatcher's Transport.
type WebSocket struct {
	conn   *websocket.Conn
	opts   Options
	send   chan event.Event
	errs   chan error
	done   chan struct{}
	logger *slog.Logger

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Dial connects to url and starts the read and write pumps.
func Dial(ctx context.Context, url string, opts Options) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return newWebSocket(conn, opts), nil
}

func newWebSocket(conn *websocket.Conn, opts Options) *WebSocket {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	w := &WebSocket{
		conn:   conn,
		opts:   opts,
		send:   make(chan event.Event, opts.SendBuffer),
		errs:   make(chan error, 16),
		done:   make(chan struct{}),
		logger: opts.Logger,
	}
	w.wg.Add(2)
	go w.writePump()
	go w.readPump()
	return w
}

// Send queues ev for writing. It never blocks; failures are reported on
// Errors.
func (w *WebSocket) Send(ev event.Event) {
	select {
	case <-w.done:
		w.pushErr(ErrClosed)
		return
	default:
	}
	select {
	case w.send <- ev:
	default:
		w.pushErr(ErrSendBufferFull)
	}
}

// Errors delivers send and read failures. Errors are dropped when nobody
// drains the channel.
func (w *WebSocket) Errors() <-chan error { return w.errs }

// Done closes when the connection is closed, locally or by the backend.
func (w *WebSocket) Done() <-chan struct{} { return w.done }

// Close sends a close frame and waits for the pumps to exit.
func (w *WebSocket) Close() error {
	err := w.shutdown()
	w.wg.Wait()
	return err
}

// shutdown closes done and the connection once. Both pumps exit after it.
func (w *WebSocket) shutdown() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = w.conn.Close()
	})
	return err
}

func (w *WebSocket) pushErr(err error) {
	select {
	case w.errs <- err:
	default:
		w.logger.Warn("transport error dropped", "error", err)
	}
}

func (w *WebSocket) writePump() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev := <-w.send:
			data, err := json.Marshal(ev)
			if err != nil {
				w.pushErr(fmt.Errorf("encode %s: %w", ev.Type, err))
				continue
			}
			if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				w.pushErr(fmt.Errorf("write %s: %w", ev.Type, err))
			}
		}
	}
}

func (w *WebSocket) readPump() {
	defer w.wg.Done()
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					w.pushErr(fmt.Errorf("read: %w", err))
				}
				w.logger.Info("backend closed connection", "error", err)
				_ = w.shutdown()
			}
			return
		}
		var ev event.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			w.pushErr(fmt.Errorf("decode frame: %w", err))
			continue
		}
		w.deliver(ev)
	}
}

func (w *WebSocket) deliver(ev event.Event) {
	if ev.Type == event.TypeBacklog {
		if w.opts.OnBacklog != nil {
			w.opts.OnBacklog(ev.Backlog)
		}
		return
	}
	if w.opts.OnEvent != nil {
		w.opts.OnEvent(ev)
	}
}
