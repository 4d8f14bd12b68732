package httpapi

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ember-chat/domain"
	"ember-chat/domain/event"
	"ember-chat/errors"
)

// createUpgrader creates a WebSocket upgrader with the given allowed origins.
func createUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowedMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedMap[origin] = true
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients send no Origin header.
				return true
			}
			return allowedMap[origin]
		},
	}
}

// inboundFrame is the union of client frames. encoding/json decodes the
// ciphertext and nonce from base64; a frame that does not parse is
// dropped without a reply.
type inboundFrame struct {
	Type       string `json:"type"`
	Code       string `json:"code"`
	Nickname   string `json:"nickname"`
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce"`
}

// wsSession is the per-connection state machine. Only the read loop
// touches it, so it needs no lock. The registry remains the source of
// truth for membership; this state is the connection's local view.
type wsSession struct {
	id       string
	code     string
	nickname string
	joined   bool
}

func (s *wsSession) reset() {
	s.code = ""
	s.nickname = ""
	s.joined = false
}

// HandleWebSocket handles GET /ws: one goroutine reads client frames and
// drives the session state machine, a second drains the session's sink
// onto the wire. The sink is the only writer path, which keeps event
// order equal to publish order.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := createUpgrader(h.options.AllowedOrigins)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sess := &wsSession{id: uuid.NewString()}
	sink := newWSSink(h.options.SessionBufferSize)
	done := make(chan struct{})
	defer close(done)

	go h.writeLoop(conn, sink, done)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			continue
		}

		switch frame.Type {
		case "join":
			h.handleJoin(r.Context(), sess, sink, frame)
		case "send":
			h.handleSend(r.Context(), sess, sink, frame)
		}
	}

	if sess.joined {
		// The request context is gone by now.
		h.chat.Leave(context.Background(), sess.id, sess.code, sess.nickname)
	}
}

// handleJoin validates locally and silently drops malformed requests:
// the HTTP pre-check is expected to have caught them client-side.
func (h *Handler) handleJoin(ctx context.Context, sess *wsSession, sink *wsSink, frame inboundFrame) {
	if sess.joined {
		if h.chat.IsJoined(sess.code, sess.id) {
			return
		}
		// The room was reclaimed while the connection sat idle; the
		// expiry notice is already in the sink and the socket is free
		// to join another room.
		sess.reset()
	}
	if !domain.ValidCode(frame.Code) || !domain.ValidNickname(frame.Nickname) {
		return
	}

	_, err := h.chat.Join(ctx, sess.id, frame.Code, frame.Nickname, sink)
	switch {
	case stderrors.Is(err, errors.ErrRoomNotFound):
		h.emit(ctx, sink, event.RoomNotFound{Code: frame.Code})
	case stderrors.Is(err, errors.ErrRoomExpired):
		h.emit(ctx, sink, event.RoomExpired{Code: frame.Code})
	case stderrors.Is(err, errors.ErrRoomFull):
		h.emit(ctx, sink, event.RoomFull{Code: frame.Code})
	case err != nil:
		h.log.Error("Join failed", "room", frame.Code, "error", err)
	default:
		// Joined and history frames were emitted by the service under
		// the room lock; only the local state remains to update.
		sess.code = frame.Code
		sess.nickname = frame.Nickname
		sess.joined = true
	}
}

func (h *Handler) handleSend(ctx context.Context, sess *wsSession, sink *wsSink, frame inboundFrame) {
	if !sess.joined {
		return
	}
	if len(frame.Ciphertext) == 0 || len(frame.Nonce) == 0 ||
		len(frame.Ciphertext) > h.options.MaxCiphertextBytes {
		return
	}

	_, err := h.chat.Send(ctx, sess.code, sess.nickname, frame.Ciphertext, frame.Nonce)
	switch {
	case stderrors.Is(err, errors.ErrRoomExpired):
		// The eviction inside Send already broadcast room-expired to
		// this session's sink; the room association is gone.
		sess.reset()
	case stderrors.Is(err, errors.ErrRoomNotFound):
		// The sweeper won the race and reclaimed the room between our
		// eviction notice and this send. Deregister without a notice in
		// case any membership survived.
		h.chat.Leave(ctx, sess.id, sess.code, "")
		h.emit(ctx, sink, event.RoomNotFound{Code: sess.code})
		sess.reset()
	case err != nil:
		h.log.Error("Message relay failed", "room", sess.code, "error", err)
	}
}

func (h *Handler) emit(ctx context.Context, sink *wsSink, e event.RoomEvent) {
	if err := sink.Consume(ctx, e); err != nil {
		h.log.Warn("Reply delivery failed", "event", e.EventName(), "error", err)
	}
}

func (h *Handler) writeLoop(conn *websocket.Conn, sink *wsSink, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case e := <-sink.Events:
			payload, err := encodeFrame(e)
			if err != nil {
				h.log.Error("Frame encoding failed", "event", e.EventName(), "error", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

// encodeFrame flattens an event into its wire frame, tagged with the
// event name: {"type":"message","id":...,...}.
func encodeFrame(e event.RoomEvent) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"] = e.EventName()
	return json.Marshal(fields)
}
