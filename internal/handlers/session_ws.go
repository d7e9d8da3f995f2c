// internal/handlers/session_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/jason-s-yu/avalon/internal/auth"
	"github.com/jason-s-yu/avalon/internal/events"
	"github.com/jason-s-yu/avalon/internal/session"
)

// writeTimeout bounds each outbound websocket write so one stalled client
// cannot back up its write pump indefinitely.
const writeTimeout = 5 * time.Second

// SessionWSHandler upgrades the HTTP connection to a websocket for one
// session: /session/ws/{session_id}. It authenticates the user, seats them
// (or re-attaches their connection), starts the write pump, and runs the
// read loop until the connection drops.
func (srv *SessionServer) SessionWSHandler(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/session/ws/"), "/")
	sessionID, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid session_id in path (/session/ws/{session_id})", http.StatusBadRequest)
		return
	}
	sess, ok := srv.Store.Get(sessionID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"avalon"},
		OriginPatterns: []string{"*"}, // Adjust for production security.
	})
	if err != nil {
		srv.Logger.Warnf("websocket accept error for session %s: %v", sessionID, err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "internal server error during handler exit")

	if c.Subprotocol() != "avalon" {
		c.Close(websocket.StatusPolicyViolation, "client must use the 'avalon' subprotocol")
		return
	}

	username, err := authenticateRequest(r)
	if err != nil {
		srv.Logger.Warnf("authentication failed for session %s: %v", sessionID, err)
		c.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}
	avatar := r.URL.Query().Get("avatar")
	srv.Logger.Infof("user %s authenticated for session %s", username, sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := &session.Conn{
		Username: username,
		Out:      make(chan events.Packet, 32),
		Cancel:   cancel,
	}
	go srv.writePump(ctx, c, conn)

	var joinErr error
	joined := make(chan struct{})
	sess.Do(func() {
		joinErr = sess.AddPlayer(username, avatar, conn)
		close(joined)
	})
	select {
	case <-joined:
	case <-sess.Done():
		c.Close(websocket.StatusGoingAway, "session closed")
		return
	}
	if joinErr != nil {
		srv.Logger.Warnf("user %s rejected from session %s: %v", username, sessionID, joinErr)
		c.Close(websocket.StatusPolicyViolation, joinErr.Error())
		return
	}
	srv.Store.BindPlayer(username, sessionID)

	srv.readPackets(ctx, c, sess, username)
	srv.Logger.Infof("read loop for %s in session %s exited", username, sessionID)

	// Only tear down the seat if this connection is still the live one; a
	// reconnect may already have replaced it.
	wasCurrent := false
	detached := make(chan struct{})
	sess.Do(func() {
		wasCurrent = sess.DetachConn(username, conn)
		close(detached)
	})
	select {
	case <-detached:
	case <-sess.Done():
		wasCurrent = true
	}
	if wasCurrent {
		srv.Store.UnbindPlayer(username)
	}
}

// readPackets reads wire packets off the client connection, stamps their
// origin with the authenticated username and hands them to the broker on the
// session's queue. It returns on read error or context cancelation.
func (srv *SessionServer) readPackets(ctx context.Context, c *websocket.Conn, sess *session.Session, username string) {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				srv.Logger.Infof("websocket closed normally for %s", username)
			} else if ctx.Err() != nil {
				srv.Logger.Infof("websocket context canceled for %s", username)
			} else {
				srv.Logger.Warnf("websocket read error for %s: %v", username, err)
			}
			return
		}
		if msgType != websocket.MessageText {
			srv.Logger.Warnf("ignoring non-text message from %s", username)
			continue
		}

		var pkt events.Packet
		if err := json.Unmarshal(data, &pkt); err != nil {
			srv.Logger.Warnf("invalid packet JSON from %s: %v", username, err)
			continue
		}
		if pkt.Origin != "" && pkt.Origin != username {
			srv.Logger.Warnf("dropping packet from %s with forged origin %q", username, pkt.Origin)
			continue
		}
		// The transport identity is authoritative, never the client's claim.
		pkt.Origin = username

		sess.Do(func() {
			srv.Broker.Receive(pkt)
		})
	}
}

// writePump drains the connection's outbound queue onto the websocket. A
// write failure cancels the connection context, which unblocks the read loop
// and triggers seat teardown.
func (srv *SessionServer) writePump(ctx context.Context, c *websocket.Conn, conn *session.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt := <-conn.Out:
			data, err := json.Marshal(pkt)
			if err != nil {
				srv.Logger.Errorf("marshal outbound %s packet for %s: %v", pkt.Type, conn.Username, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				srv.Logger.Warnf("write to %s failed: %v", conn.Username, err)
				if conn.Cancel != nil {
					conn.Cancel()
				}
				return
			}
		}
	}
}

// authenticateRequest extracts the caller's JWT from the auth_token cookie,
// the Authorization header, or a token query parameter, and verifies it.
func authenticateRequest(r *http.Request) (string, error) {
	token := ""
	if cookie, err := r.Cookie("auth_token"); err == nil {
		token = cookie.Value
	}
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
	}
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	return auth.AuthenticateJWT(token)
}
