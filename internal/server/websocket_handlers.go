package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/subtext/internal/pipeline"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The overlay client runs locally and connects from arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketConnWriter is the write side of a WebSocket connection.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// websocketHandler streams images over one connection. Every binary message
// is an image and gets one text reply: the entry array or an error object.
func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})
	go keepAlive(ctx, conn)

	conn.SetReadLimit(s.maxUploadMB * 1024 * 1024)
	clientID := getClientIP(r)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket read failed", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		s.handleWebSocketMessage(ctx, conn, clientID, messageType, data)
	}
}

// keepAlive pings the peer until ctx ends or a ping fails.
func keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}

// handleWebSocketMessage processes one message and writes the reply. Every
// image counts against clientID's limits like an HTTP upload does.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, clientID string, messageType int, data []byte) {
	if messageType != websocket.BinaryMessage {
		s.sendWebSocketJSON(conn, ErrorResponse{Error: "expected a binary image message"})
		return
	}
	if len(data) == 0 {
		s.sendWebSocketJSON(conn, ErrorResponse{Error: "empty image message"})
		return
	}
	if err := s.checkRateLimit(clientID, int64(len(data))); err != nil {
		s.sendWebSocketJSON(conn, ErrorResponse{Error: err.Error()})
		return
	}

	ctx = pipeline.WithRequestID(ctx, uuid.NewString())
	entries, err := s.process(ctx, "websocket", data)
	if err != nil {
		slog.Warn("WebSocket image processing failed",
			"request_id", pipeline.RequestID(ctx), "status", statusFor(err), "error", err)
		s.sendWebSocketJSON(conn, ErrorResponse{Error: err.Error()})
		return
	}

	s.sendWebSocketJSON(conn, entries)
}

func (s *Server) sendWebSocketJSON(conn WebSocketConnWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal WebSocket reply", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket reply", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
