package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"

	"github.com/gorilla/websocket"
)

const (
	// pongWait is how long a silent client is kept before its socket is considered dead.
	pongWait = 60 * time.Second
	// pingPeriod must stay below pongWait.
	pingPeriod = pongWait * 9 / 10
	// maxFrameSize bounds one inbound frame.
	maxFrameSize = 16 * 1024
	// disconnectTimeout bounds the final Disconnect dispatch once the socket is gone.
	disconnectTimeout = 5 * time.Second
)

// Handler upgrades GET /ws?nickname=... and bridges the socket to the engine.
// Each socket gets one reader goroutine, dispatching commands in arrival order,
// and one writer goroutine, draining the connection sink.
type Handler struct {
	ctx          context.Context
	dispatcher   contract.IDispatcher
	registry     contract.ISinkRegistry
	upgrader     websocket.Upgrader
	bufferSize   int
	writeTimeout time.Duration
	log          *slog.Logger
	sockets      sync.WaitGroup
}

// NewHandler binds sockets to ctx: once it is done every socket is closed.
func NewHandler(
	ctx context.Context,
	dispatcher contract.IDispatcher,
	registry contract.ISinkRegistry,
	bufferSize int,
	writeTimeout time.Duration,
	log *slog.Logger,
) *Handler {
	return &Handler{
		ctx:        ctx,
		dispatcher: dispatcher,
		registry:   registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		bufferSize:   bufferSize,
		writeTimeout: writeTimeout,
		log:          log,
	}
}

type client struct {
	id      domain.ConnectionID
	conn    *websocket.Conn
	sink    *Sink
	handler *Handler
	log     *slog.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	nickname := domain.NormalizeNickname(r.URL.Query().Get("nickname"))
	if nickname == "" {
		http.Error(w, "nickname is required", http.StatusBadRequest)
		return
	}
	if h.ctx.Err() != nil {
		http.Error(w, "relay is shutting down", http.StatusServiceUnavailable)
		return
	}
	h.sockets.Add(1)
	defer h.sockets.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "nickname", nickname, "error", err)
		return
	}

	id := domain.NewConnectionID()
	c := &client{
		id:      id,
		conn:    conn,
		sink:    NewSink(h.bufferSize),
		handler: h,
		log:     h.log.With("connection", id.String(), "nickname", nickname),
	}
	// The sink must exist before the engine emits anything for this connection
	h.registry.Subscribe(id, c.sink)
	c.log.Info("Connection opened")

	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	go c.writePump(ctx)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	if err = h.dispatcher.Dispatch(ctx, domain.Connect{Conn: id, Nickname: nickname}); err != nil {
		c.log.Warn("Connect not accepted", "error", err)
		c.close()
		return
	}
	c.readPump(ctx)
	c.close()
}

// Wait blocks until every socket is closed and its Disconnect dispatched, or ctx is done.
// http.Server.Shutdown does not track hijacked connections, this does.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.sockets.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readPump dispatches inbound frames until the socket fails or closes.
func (c *client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Unexpected websocket close", "error", err)
			}
			return
		}
		cmd, err := DecodeCommand(c.id, raw)
		if err != nil {
			c.reply(err)
			continue
		}
		if err = c.handler.dispatcher.Dispatch(ctx, cmd); err != nil {
			c.log.Warn("Command not accepted", "error", err)
			return
		}
	}
}

// writePump owns every write on the socket.
// A fatal error event is written then the socket is closed.
func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.sink.Closed():
			c.writeClose(websocket.CloseNormalClosure, "")
			return
		case e := <-c.sink.Events():
			frame, err := EncodeEvent(e)
			if err != nil {
				c.log.Error("Unable to encode event", "event", e.Name(), "error", err)
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.handler.writeTimeout))
			if err = c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Warn("Websocket write failed", "error", err)
				return
			}
			if evt, ok := e.(event.Error); ok && evt.Fatal {
				c.writeClose(websocket.ClosePolicyViolation, evt.Message)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.handler.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) writeClose(code int, text string) {
	message := websocket.FormatCloseMessage(code, text)
	_ = c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(c.handler.writeTimeout))
}

// reply sends a non fatal error straight to this connection, bypassing the engine.
func (c *client) reply(err error) {
	e := event.Error{Code: errors.Code(err), Message: err.Error()}
	if consumeErr := c.sink.Consume(context.Background(), e); consumeErr != nil {
		c.log.Debug("Error reply dropped", "error", consumeErr)
	}
}

// close tells the engine the connection is gone, then detaches the sink.
func (c *client) close() {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := c.handler.dispatcher.Dispatch(ctx, domain.Disconnect{Conn: c.id}); err != nil {
		c.log.Warn("Disconnect not accepted", "error", err)
	}
	c.handler.registry.Unsubscribe(c.id)
	c.sink.Close()
	c.log.Info("Connection closed")
}
