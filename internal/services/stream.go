package services

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dpup/prefab/logging"
	"github.com/gorilla/websocket"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// PathStream upgrades to a websocket carrying poses in and updates out
const PathStream = "/api/v1/navigation/stream"

// Stream message types
const (
	MessageInit   = "init"
	MessageUpdate = "update"
	MessageError  = "error"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamMessage is one frame sent to a stream client
type streamMessage struct {
	Type string
	Data map[string]interface{}
}

// handleStream serves a position stream. The client sends position
// messages shaped like the position endpoint body and receives one update
// per message. The first frame is the current snapshot.
func (h *NavigationHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warnw(r.Context(), "WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxRequestBytes)

	ctx := r.Context()
	logging.Infow(ctx, "Position stream connected", "remote", r.RemoteAddr)

	if err := writeMessage(conn, streamMessage{Type: MessageInit, Data: h.snapshotResponse(h.service.Current())}); err != nil {
		logging.Warnw(ctx, "Failed to send stream init", "error", err)
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Warnw(ctx, "Position stream read failed", "error", err)
			}
			break
		}

		msg := h.streamUpdate(ctx, data)
		if err := writeMessage(conn, msg); err != nil {
			logging.Warnw(ctx, "Failed to send stream update", "error", err)
			break
		}
	}

	logging.Infow(ctx, "Position stream disconnected", "remote", r.RemoteAddr)
}

func (h *NavigationHandler) streamUpdate(ctx context.Context, data []byte) streamMessage {
	var req positionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return streamMessage{Type: MessageError, Data: errorBody(status.Errorf(codes.InvalidArgument, "invalid position message: %v", err))}
	}

	pt, err := req.point("position")
	if err != nil {
		return streamMessage{Type: MessageError, Data: errorBody(err)}
	}

	update := h.service.ReportPosition(ctx, req.pose(pt))
	return streamMessage{Type: MessageUpdate, Data: positionFields(update)}
}

func writeMessage(conn *websocket.Conn, msg streamMessage) error {
	body, err := marshalFields(map[string]interface{}{
		"type": msg.Type,
		"data": msg.Data,
	})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, body)
}
