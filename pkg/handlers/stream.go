package handlers

import (
	"context"
	"net/http"
	"time"

	"blogclone/pkg/feed"
	"blogclone/pkg/posts"
	"blogclone/pkg/session"
	"blogclone/pkg/store"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type StreamHandler struct {
	Sm     session.SessionManager
	Store  store.Store
	Logger *zap.SugaredLogger

	Upgrader websocket.Upgrader
}

type streamMessage struct {
	Type  string        `json:"type"`
	Posts []*posts.Post `json:"posts"`
}

// Serve upgrades the connection and pushes post snapshots until the client
// disconnects. Browsers cannot set headers on a websocket handshake, so the
// token travels in the query string and is rewritten into the Authorization
// header before the usual session check.
func (h *StreamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	if token := r.URL.Query().Get("token"); token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	sess, err := h.Sm.Check(r.Context(), r)
	if err != nil || sess.User == nil {
		WriteResponse(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Errorf("upgrade: %v", err)
		return
	}

	user := &posts.Author{ID: sess.User.ID, Username: sess.User.Username, Avatar: sess.User.Avatar}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	syncer := feed.NewSyncer(h.Store, user, h.Logger)
	if err := syncer.Start(ctx); err != nil {
		h.Logger.Errorf("start syncer for %v: %v", user.ID, err)
		conn.Close()
		return
	}
	defer syncer.Stop()

	go h.readPump(conn, cancel)
	h.writePump(ctx, conn, syncer)
}

// readPump discards client frames; its job is noticing the close.
func (h *StreamHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHandler) writePump(ctx context.Context, conn *websocket.Conn, syncer *feed.Syncer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case snapshot := <-syncer.Public():
			if !h.send(conn, &streamMessage{Type: "public_posts", Posts: snapshot}) {
				return
			}
		case snapshot := <-syncer.Owned():
			if !h.send(conn, &streamMessage{Type: "my_posts", Posts: snapshot}) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (h *StreamHandler) send(conn *websocket.Conn, msg *streamMessage) bool {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.Logger.Warnf("stream write: %v", err)
		return false
	}

	return true
}
