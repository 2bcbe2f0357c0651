package realtime

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const (
	writeTimeout   = 5 * time.Second
	heartbeatEvery = 30 * time.Second
	sendBuffer     = 32
)

// Gateway upgrades /ws/calendar requests and streams hub frames. Clients
// only listen; anything they send is discarded.
type Gateway struct {
	hub            *Hub
	originPatterns []string
	logger         *zap.Logger
}

func NewGateway(hub *Hub, originPatterns []string, logger *zap.Logger) *Gateway {
	return &Gateway{hub: hub, originPatterns: originPatterns, logger: logger}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var advisorID int64
	if v := r.URL.Query().Get("advisor_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "invalid advisor_id", http.StatusBadRequest)
			return
		}
		advisorID = id
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		g.logger.Warn("WebSocket accept failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	frames, unsubscribe := g.hub.Subscribe(advisorID, sendBuffer)
	defer unsubscribe()

	// CloseRead discards client frames and cancels ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-frames:
			if err := write(ctx, conn, frame); err != nil {
				g.logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				g.logger.Debug("WebSocket ping failed", zap.Error(err))
				return
			}
		}
	}
}

func write(parent context.Context, conn *websocket.Conn, frame []byte) error {
	ctx, cancel := context.WithTimeout(parent, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, frame)
}
