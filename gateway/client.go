package gateway

import (
	"time"

	"github.com/gorilla/websocket"

	"roomchat/contract"
	"roomchat/domain"
	"roomchat/sink"
)

const (
	readLimit    = 4096
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

// Known inbound event names.
const (
	inboundJoinRoom    = "join_room"
	inboundLeaveRoom   = "leave_room"
	inboundSendMessage = "send_message"
)

// inboundEvent is the wire shape of client-to-server frames. The
// sender identity always comes from the authenticated session, never
// from the frame itself.
type inboundEvent struct {
	Event string `json:"event"`
	Room  int64  `json:"room"`
	Text  string `json:"text,omitempty"`
}

// client binds one websocket connection to one live session handle.
type client struct {
	gateway *Gateway
	conn    *websocket.Conn
	session *contract.Session
	sink    *sink.SessionSink
}

func (g *Gateway) newClient(conn *websocket.Conn, username string) *client {
	s := sink.NewSessionSink(g.log, g.bufferSize, g.sinkTimeout)
	return &client{
		gateway: g,
		conn:    conn,
		session: contract.NewSession(username, s),
		sink:    s,
	}
}

// readPump consumes inbound frames until the connection dies. On exit
// the session is dropped from every room it joined; there is no resume
// and the client must re-join after reconnecting.
func (c *client) readPump() {
	defer func() {
		left := c.gateway.registry.LeaveAll(c.session)
		c.gateway.log.Info("session closed",
			"session_id", c.session.ID,
			"username", c.session.Username,
			"rooms_left", len(left))
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var evt inboundEvent
		if err := c.conn.ReadJSON(&evt); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.gateway.log.Warn("websocket read failed",
					"username", c.session.Username, "error", err)
			}
			return
		}
		c.handle(evt)
	}
}

func (c *client) handle(evt inboundEvent) {
	roomID := domain.RoomID(evt.Room)
	username := c.session.Username
	log := c.gateway.log

	switch evt.Event {
	case inboundJoinRoom:
		member, err := c.gateway.membership.IsMember(roomID, username)
		if err != nil {
			log.Error("membership check failed", "room_id", roomID, "username", username, "error", err)
			return
		}
		if !member {
			log.Warn("join rejected, not a member", "room_id", roomID, "username", username)
			return
		}
		// Join before announcing so the joiner receives its own announcement.
		c.gateway.registry.Join(roomID, c.session)
		c.announce(domain.EventJoinAnnouncement, roomID)
		log.Info("session joined room", "room_id", roomID, "username", username)

	case inboundLeaveRoom:
		// Leave before announcing, mirroring join: the leaver is excluded.
		c.gateway.registry.Leave(roomID, c.session)
		c.announce(domain.EventLeaveAnnouncement, roomID)
		log.Info("session left room", "room_id", roomID, "username", username)

	case inboundSendMessage:
		member, err := c.gateway.membership.IsMember(roomID, username)
		if err != nil || !member {
			log.Warn("send rejected, not a member", "room_id", roomID, "username", username)
			return
		}
		// The service broadcasts after persisting; no second broadcast here.
		if !c.gateway.messages.Send(roomID, username, evt.Text) {
			log.Warn("message rejected", "room_id", roomID, "username", username)
		}

	default:
		log.Warn("unknown inbound event", "event", evt.Event, "username", username)
	}
}

func (c *client) announce(name domain.EventName, roomID domain.RoomID) {
	event, err := domain.NewEvent(name, domain.PresencePayload{
		Room:     int64(roomID),
		Username: c.session.Username,
	})
	if err != nil {
		c.gateway.log.Error("announcement encoding failed", "event", name, "error", err)
		return
	}
	c.gateway.registry.Broadcast(roomID, event)
}

// writePump pushes buffered events onto the wire and keeps the
// connection alive with periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event := <-c.sink.Events:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				c.gateway.log.Warn("websocket write failed",
					"username", c.session.Username, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
