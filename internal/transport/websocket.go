package transport

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

// WebSocket is a gorilla/websocket backed Transport. The dial and the read
// loop run on helper goroutines; their results are handed back to the
// executor as tasks, so conn and closed are only touched on the executor.
type WebSocket struct {
	id   string
	url  string
	cfg  Config
	exec Poster
	sink Sink

	conn   *websocket.Conn
	closed bool
}

// NewFactory returns a Factory producing WebSocket transports on exec.
func NewFactory(exec Poster, cfg Config) Factory {
	cfg = cfg.WithDefaults()
	return func(target string, sink Sink) Transport {
		return NewWebSocket(exec, cfg, target, sink)
	}
}

func NewWebSocket(exec Poster, cfg Config, target string, sink Sink) *WebSocket {
	return &WebSocket{
		id:   uuid.NewString(),
		url:  target,
		cfg:  cfg.WithDefaults(),
		exec: exec,
		sink: sink,
	}
}

// ID identifies this connection in logs.
func (w *WebSocket) ID() string {
	return w.id
}

func (w *WebSocket) Connect(onComplete func(err error)) {
	dialer, err := w.dialer()
	if err != nil {
		w.post(func(context.Context) { onComplete(err) })
		return
	}
	log.Debug().Str("conn", w.id).Str("url", w.url).Msg("websocket dialing")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.cfg.HandshakeTimeout)
		defer cancel()
		conn, resp, err := dialer.DialContext(ctx, w.url, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		posted := w.post(func(context.Context) { w.onDialed(conn, err, onComplete) })
		if !posted && conn != nil {
			_ = conn.Close()
		}
	}()
}

func (w *WebSocket) onDialed(conn *websocket.Conn, err error, onComplete func(error)) {
	if err != nil {
		log.Warn().Str("conn", w.id).Str("url", w.url).Err(err).Msg("websocket dial failed")
		onComplete(err)
		return
	}
	if w.closed {
		_ = conn.Close()
		onComplete(ErrClosed)
		return
	}
	conn.SetReadLimit(w.cfg.ReadLimit)
	w.conn = conn
	log.Info().Str("conn", w.id).Str("url", w.url).Msg("websocket connected")

	// Reader tasks queue behind this one, so the sink observes the
	// completion before any message.
	go w.readLoop(conn)
	onComplete(nil)
}

func (w *WebSocket) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Str("conn", w.id).Msg("websocket closed by peer")
			} else {
				log.Debug().Str("conn", w.id).Err(err).Msg("websocket read ended")
			}
			w.post(func(context.Context) { w.sink.OnClose() })
			return
		}
		w.post(func(context.Context) { w.sink.OnMessageReceived(data) })
	}
}

func (w *WebSocket) Send(payload []byte) bool {
	if w.conn == nil || w.closed {
		return false
	}
	messageType := websocket.TextMessage
	if w.cfg.BinaryMessages {
		messageType = websocket.BinaryMessage
	}
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout))
	if err := w.conn.WriteMessage(messageType, payload); err != nil {
		log.Warn().Str("conn", w.id).Err(err).Msg("websocket write failed")
		return false
	}
	return true
}

func (w *WebSocket) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.cfg.CloseGracePeriod))
	if errors.Is(err, websocket.ErrCloseSent) {
		err = nil
	}
	err = multierr.Append(err, w.conn.Close())
	log.Debug().Str("conn", w.id).Err(err).Msg("websocket closed")
	return err
}

func (w *WebSocket) dialer() (*websocket.Dialer, error) {
	if err := w.cfg.ValidateTarget(w.url); err != nil {
		return nil, err
	}
	d := &websocket.Dialer{
		HandshakeTimeout:  w.cfg.HandshakeTimeout,
		ReadBufferSize:    w.cfg.ReadBufferSize,
		WriteBufferSize:   w.cfg.WriteBufferSize,
		EnableCompression: w.cfg.EnableCompression,
	}
	u, err := url.Parse(w.url)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "wss" {
		tlsCfg, err := w.cfg.ClientTLSConfig(u.Hostname())
		if err != nil {
			return nil, err
		}
		d.TLSClientConfig = tlsCfg
	}
	return d, nil
}

func (w *WebSocket) post(task func(context.Context)) bool {
	if err := w.exec.Submit(task); err != nil {
		log.Debug().Str("conn", w.id).Err(err).Msg("websocket callback dropped")
		return false
	}
	return true
}
