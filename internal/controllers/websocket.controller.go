package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"sysaura/internal/logger"
	"sysaura/internal/middleware"
	"sysaura/internal/models"
	"sysaura/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	refreshTimeout = 30 * time.Second
)

// inboundMessage is what clients send. Only these fields are read.
type inboundMessage struct {
	Type     string `json:"type"`
	Token    string `json:"token"`
	SystemID string `json:"systemId"`
}

// WebSocketController upgrades /ws connections and runs the per-connection
// message loop.
type WebSocketController struct {
	hub      *services.WebSocketHub
	registry *services.Registry
	dist     *services.Distributor
	auth     middleware.TokenValidator
	sl       *middleware.SecurityLogger
	log      logger.Logger
	upgrader websocket.Upgrader
}

// WebSocketDeps groups the collaborators of the controller.
type WebSocketDeps struct {
	Hub            *services.WebSocketHub
	Registry       *services.Registry
	Distributor    *services.Distributor
	Auth           middleware.TokenValidator
	Security       *middleware.SecurityLogger
	AllowedOrigins []string
	Log            logger.Logger
}

// NewWebSocketController creates the controller. Browser origins are checked
// against AllowedOrigins; clients that send no Origin header are accepted.
func NewWebSocketController(deps WebSocketDeps) *WebSocketController {
	if deps.Log == nil {
		deps.Log = logger.New("[WS]")
	}
	if deps.Security == nil {
		deps.Security = middleware.NewSecurityLogger(nil)
	}
	origins := deps.AllowedOrigins
	return &WebSocketController{
		hub:      deps.Hub,
		registry: deps.Registry,
		dist:     deps.Distributor,
		auth:     deps.Auth,
		sl:       deps.Security,
		log:      deps.Log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(origin, origins)
			},
		},
	}
}

// HandleWebSocket upgrades the connection. A token may be passed as ?token= to
// authenticate immediately; otherwise the client sends an auth message.
func (wc *WebSocketController) HandleWebSocket(c *gin.Context) {
	ip := c.ClientIP()
	ws, err := wc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wc.log.Warn("upgrade error from %s: %v", ip, err)
		return
	}

	client := services.NewClientConnection(uuid.New().String(), ws)
	wc.hub.Register(client)
	wc.log.Debug("new connection %s from %s", client.ID, ip)

	ctx, cancel := context.WithCancel(context.Background())
	if token := c.Query("token"); token != "" {
		wc.authenticate(client, ip, token)
	}

	go wc.writePump(client)
	go wc.readPump(ctx, cancel, client, ip)
}

// readPump reads messages from the WebSocket client until it disconnects.
func (wc *WebSocketController) readPump(ctx context.Context, cancel context.CancelFunc, client *services.ClientConnection, ip string) {
	defer func() {
		cancel()
		dropped := wc.registry.DropAll(client.ID)
		wc.hub.Unregister(client.ID)
		client.Conn.Close()
		wc.sl.LogWebSocketDisconnected(ip, client.ID)
		if len(dropped) > 0 {
			wc.log.Debug("dropped %d subscription(s) of %s", len(dropped), client.ID)
		}
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wc.log.Warn("read error for %s: %v", client.ID, err)
			}
			return
		}
		_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			wc.reply(client, services.WebSocketMessage{Type: services.MsgError, Message: services.ErrMalformedMessage.Error()})
			continue
		}
		wc.handle(ctx, client, ip, msg)
	}
}

func (wc *WebSocketController) handle(ctx context.Context, client *services.ClientConnection, ip string, msg inboundMessage) {
	switch msg.Type {
	case services.MsgAuth:
		wc.authenticate(client, ip, msg.Token)

	case services.MsgPing:
		wc.reply(client, services.WebSocketMessage{Type: services.MsgPong})

	case services.MsgSubscribe, services.MsgUnsubscribe, services.MsgRefresh:
		if _, ok := wc.registry.Session(client.ID); !ok {
			wc.reply(client, services.WebSocketMessage{
				Type:     services.MsgAuthError,
				SystemID: msg.SystemID,
				Message:  "not authenticated",
				Request:  msg.Type,
			})
			return
		}
		systemID := msg.SystemID
		if systemID == "" {
			systemID = models.LocalTargetID
		}
		switch msg.Type {
		case services.MsgSubscribe:
			wc.subscribe(ctx, client, ip, systemID)
		case services.MsgUnsubscribe:
			wc.registry.Unsubscribe(client.ID, systemID)
			wc.reply(client, services.WebSocketMessage{Type: services.MsgUnsubscribed, SystemID: systemID})
		case services.MsgRefresh:
			go wc.refresh(ctx, client, systemID)
		}

	default:
		wc.log.Debug("unknown message type %q from %s", msg.Type, client.ID)
		wc.reply(client, services.WebSocketMessage{
			Type:     services.MsgError,
			SystemID: msg.SystemID,
			Message:  "unknown message type: " + msg.Type,
			Request:  msg.Type,
		})
	}
}

func (wc *WebSocketController) authenticate(client *services.ClientConnection, ip, token string) {
	if token == "" {
		wc.sl.LogFailedAuth(ip, "websocket auth without token")
		wc.reply(client, services.WebSocketMessage{Type: services.MsgAuthError, Message: "token required"})
		return
	}
	if _, ok := wc.registry.Session(client.ID); ok {
		wc.reply(client, services.WebSocketMessage{Type: services.MsgAuthError, Message: "already authenticated"})
		return
	}

	identity, err := wc.auth.ValidateToken(token)
	if err != nil {
		wc.sl.LogFailedAuth(ip, "websocket: "+err.Error())
		wc.reply(client, services.WebSocketMessage{Type: services.MsgAuthError, Message: "invalid token"})
		return
	}
	session := models.Session{ID: client.ID, Identity: identity, AuthenticatedAt: time.Now()}
	if err := wc.registry.Attach(session); err != nil {
		wc.reply(client, services.WebSocketMessage{Type: services.MsgAuthError, Message: err.Error()})
		return
	}

	wc.sl.LogWebSocketConnected(ip, identity.UserID)
	wc.reply(client, services.WebSocketMessage{Type: services.MsgAuthSuccess, Data: identity})
}

// subscribe acks the subscription and then refreshes the target so the new
// subscriber starts with current data.
func (wc *WebSocketController) subscribe(ctx context.Context, client *services.ClientConnection, ip, systemID string) {
	err := wc.registry.Subscribe(ctx, client.ID, systemID)
	if err == nil {
		wc.reply(client, services.WebSocketMessage{Type: services.MsgSubscribed, SystemID: systemID})
		go wc.initialRefresh(ctx, client, systemID)
		return
	}

	if errors.Is(err, services.ErrAccessDenied) {
		wc.sl.LogAccessDenied(ip, "subscribe to "+systemID)
	}
	msgType := services.MsgError
	if errors.Is(err, services.ErrAuthFailure) {
		msgType = services.MsgAuthError
	}
	wc.reply(client, services.WebSocketMessage{
		Type:     msgType,
		SystemID: systemID,
		Message:  errorText(err),
		Request:  services.MsgSubscribe,
	})
}

// initialRefresh runs a distributor refresh for a fresh subscription. The
// snapshot reaches the subscriber through Publish.
func (wc *WebSocketController) initialRefresh(ctx context.Context, client *services.ClientConnection, systemID string) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	if _, err := wc.dist.Refresh(ctx, systemID); err != nil {
		if ctx.Err() != nil {
			return
		}
		wc.log.Warn("initial refresh of %s for %s failed: %v", systemID, client.ID, err)
		wc.reply(client, services.WebSocketMessage{
			Type:     services.MsgError,
			SystemID: systemID,
			Message:  errorText(err),
			Request:  services.MsgRefresh,
		})
	}
}

// refresh builds a snapshot for systemID. Subscribers get it through the
// distributor; a requester that is not subscribed gets a direct copy.
func (wc *WebSocketController) refresh(ctx context.Context, client *services.ClientConnection, systemID string) {
	session, ok := wc.registry.Session(client.ID)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	fail := func(err error) {
		wc.reply(client, services.WebSocketMessage{
			Type:     services.MsgError,
			SystemID: systemID,
			Message:  errorText(err),
			Request:  services.MsgRefresh,
		})
	}
	if err := services.Authorize(ctx, wc.registry.Access(), session.Identity, systemID); err != nil {
		fail(err)
		return
	}
	snap, err := wc.dist.Refresh(ctx, systemID)
	if err != nil {
		fail(err)
		return
	}
	for _, id := range wc.registry.SubscribersOf(systemID) {
		if id == client.ID {
			return
		}
	}
	wc.reply(client, services.WebSocketMessage{
		Type:      services.MsgMetrics,
		Timestamp: snap.Timestamp,
		SystemID:  systemID,
		Data:      snap,
	})
}

// writePump writes queued messages and keeps the connection alive with pings.
func (wc *WebSocketController) writePump(client *services.ClientConnection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed, close connection
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					wc.log.Warn("write error for %s: %v", client.ID, err)
				}
				return
			}

		case <-ticker.C:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply stamps and queues a message for one client.
func (wc *WebSocketController) reply(client *services.ClientConnection, msg services.WebSocketMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	wc.hub.SendMessage(client.ID, msg)
}

// errorText hides server-side failures from socket clients.
func errorText(err error) string {
	return publicMessage(StatusFor(err), err)
}
