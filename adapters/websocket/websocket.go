// Package websocket implements D8, a from-scratch generic bidirectional
// transport built on gorilla/websocket, for hosts with no vendor SDK
// of their own. Grounded on the teacher's pkg/channels/onebot.go
// connection discipline (ping/pong keepalive over a read deadline, a
// dedicated write mutex since gorilla/websocket connections aren't
// safe for concurrent writers) inverted from onebot's outbound dialer
// into an inbound http.Server + Upgrader, since this adapter is the
// listening end rather than a client of an existing bot platform.
package websocket

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weavebot/weavebot/pkg/adapter"
	"github.com/weavebot/weavebot/pkg/config"
	"github.com/weavebot/weavebot/pkg/message"
)

// Name is the factory-registration name.
const Name = "websocket"

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
)

// wireMessage is the JSON frame exchanged over the socket in both
// directions.
type wireMessage struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
	RoomID   string `json:"roomId"`
	Text     string `json:"text"`
}

type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *conn) writeText(v wireMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

// Adapter serves inbound websocket connections and relays each frame
// to the thought process, and delivers outbound Envelopes back down
// the connection that owns the target room.
type Adapter struct {
	info   adapter.BotInfo
	cfg    config.WebSocketConfig
	server *http.Server

	mu    sync.Mutex
	conns map[string]*conn // roomID -> connection
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// New is the adapter.Factory registered under Name.
func New(info adapter.BotInfo) (adapter.Adapter, error) {
	cfg := info.Config.WebSocket
	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("websocket: listen_addr is required")
	}
	return &Adapter{info: info, cfg: cfg, conns: make(map[string]*conn)}, nil
}

// Name satisfies adapter.Adapter.
func (a *Adapter) Name() string { return Name }

// Start listens for websocket upgrade requests.
func (a *Adapter) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		a.handleConnection(ctx, w, r)
	})
	a.server = &http.Server{Addr: a.cfg.ListenAddr, Handler: mux}

	ln, err := listen(a.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("websocket: listen: %w", err)
	}

	go func() {
		if err := a.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			a.info.Log.ErrorCF("websocket", "server error", map[string]interface{}{"error": err.Error()})
		}
	}()

	a.info.Log.InfoCF("websocket", "listening", map[string]interface{}{"addr": a.cfg.ListenAddr})
	return nil
}

// Shutdown gracefully stops the http.Server.
func (a *Adapter) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

func (a *Adapter) handleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.info.Log.WarnCF("websocket", "upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	c := &conn{ws: ws}
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go a.pinger(ws)
	a.readLoop(ctx, c)
}

func (a *Adapter) pinger(ws *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for range ticker.C {
		if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
			return
		}
	}
}

func (a *Adapter) readLoop(ctx context.Context, c *conn) {
	defer c.ws.Close()
	for {
		var wm wireMessage
		if err := c.ws.ReadJSON(&wm); err != nil {
			a.forgetConn(c)
			return
		}
		if wm.RoomID == "" {
			wm.RoomID = wm.UserID
		}
		a.rememberConn(wm.RoomID, c)

		room := message.Room{ID: wm.RoomID}
		user := message.User{ID: wm.UserID, Name: wm.UserName}
		a.info.Receive(ctx, message.NewText(user, room, wm.Text))
	}
}

func (a *Adapter) rememberConn(roomID string, c *conn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conns[roomID] = c
}

func (a *Adapter) forgetConn(target *conn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for room, c := range a.conns {
		if c == target {
			delete(a.conns, room)
		}
	}
}

// Dispatch writes each envelope text as a JSON frame down the
// connection registered for the target room.
func (a *Adapter) Dispatch(ctx context.Context, env *message.Envelope) error {
	a.mu.Lock()
	c, ok := a.conns[env.Room.ID]
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("websocket: no connection for room %q", env.Room.ID)
	}
	for _, text := range env.Texts {
		if err := c.writeText(wireMessage{UserID: env.User.ID, RoomID: env.Room.ID, Text: text}); err != nil {
			return fmt.Errorf("websocket: write: %w", err)
		}
	}
	return nil
}

func listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}
