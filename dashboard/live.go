package dashboard

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/krillmap/dashboard/httpx"
)

const liveWriteWait = 10 * time.Second

// liveReply is sent for every selection received on the socket.
type liveReply struct {
	Status int `json:"status"`
	figureResponse
}

// live recomposes the figure for each JSON selection message until the
// client goes away. Malformed messages are answered, not fatal.
func (h *Handler) live(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(httpx.MaxBodyBytes)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug().Err(err).Msg("live socket closed")
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		var reply liveReply
		var q Query
		if err := httpx.DecodeJSON(bytes.NewReader(data), &q); err != nil {
			reply = liveReply{Status: http.StatusBadRequest, figureResponse: figureResponse{Error: "invalid selection: " + err.Error()}}
		} else {
			ctx, cancel := context.WithTimeout(r.Context(), h.opts.RequestTimeout)
			resp, status := h.build(ctx, q)
			cancel()
			reply = liveReply{Status: status, figureResponse: resp}
		}

		_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			h.log.Debug().Err(err).Msg("live socket write failed")
			return
		}
	}
}
