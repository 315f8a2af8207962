package echoapi

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/chat"
)

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	errSendBufferFull = errors.New("peer send buffer full")
)

// wsConn adapts a gorilla websocket connection to chat.Conn. Outbound
// payloads are queued on a buffered channel and drained by a single write
// pump; Send never blocks on a slow peer.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte

	writeWait time.Duration
	pongWait  time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

var _ chat.Conn = (*wsConn)(nil)

func newWSConn(conn *websocket.Conn, conf *core.Config) *wsConn {
	return &wsConn{
		conn:      conn,
		send:      make(chan []byte, conf.Chat.SendBuffer),
		writeWait: conf.Chat.WriteWait,
		pongWait:  conf.Chat.PongWait,
		done:      make(chan struct{}),
	}
}

func (c *wsConn) Send(p chat.Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "encoding payload")
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errors.New("connection closed")
	default:
		// a peer too slow to drain its buffer gets dropped; it may reconnect
		// and replay history
		_ = c.Close()
		return errSendBufferFull
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with periodic pings. It owns all writes to the underlying connection.
func (c *wsConn) writePump() {
	pingPeriod := (c.pongWait * 9) / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			// flush whatever is still queued, then say goodbye
			for {
				select {
				case data := <-c.send:
					_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
					if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
						return
					}
				default:
					_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
					_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}
		}
	}
}

// newChatSocketHandler returns the live chat entrypoint. The HTTP upgrade
// always succeeds; admission (authentication, group authorization, history
// replay) is the broker's call once the channel is up.
func newChatSocketHandler(deps ServerDeps) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		groupID := ctx.Param("id")
		credential := ctx.QueryParam("token")

		ws, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
		if err != nil {
			// Upgrade has already replied with an HTTP error
			return nil
		}

		conn := newWSConn(ws, deps.Conf)
		go conn.writePump()

		sub, err := deps.Broker.Connect(ctx.Request().Context(), credential, groupID, conn)
		if err != nil {
			// anonymous: silent close; known but unauthorized: the one
			// rejection notice is already queued
			_ = conn.Close()
			return nil
		}
		defer func() {
			deps.Broker.Disconnect(sub)
			_ = conn.Close()
		}()

		ws.SetReadLimit(deps.Conf.Chat.MaxMessageSize)
		_ = ws.SetReadDeadline(time.Now().Add(conn.pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(conn.pongWait))
		})

		for {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					deps.Logger.Debug("chat socket closed unexpectedly: " + err.Error())
				}
				return nil
			}

			var in chat.Inbound
			if err = json.Unmarshal(raw, &in); err != nil {
				// garbage frames are dropped, the connection stays open
				continue
			}
			if err = deps.Broker.Publish(ctx.Request().Context(), sub, in.Message); err != nil {
				deps.Logger.Error("publishing chat message", err, sub.User())
			}
		}
	}
}
