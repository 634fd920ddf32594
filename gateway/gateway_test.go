package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"roomchat/domain"
	"roomchat/registry"
	"roomchat/repositories"
	"roomchat/services"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	users, err := repositories.NewUserRepository(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = users.Close() })
	rooms, err := repositories.NewRoomRepository(db, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rooms.Close() })
	messages, err := repositories.NewMessageRepository(db, log, 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = messages.Close() })

	liveRegistry := registry.NewRegistry(log)
	membership := services.NewMembershipService(users, rooms, liveRegistry, log)
	messageService := services.NewMessageService(messages, liveRegistry, log)
	authProvider := services.NewAuthService(users)

	gw := NewGateway(log, membership, messageService, authProvider,
		liveRegistry, 64, 100*time.Millisecond, time.Hour)

	server := httptest.NewServer(gw.Handler())
	t.Cleanup(server.Close)
	return server
}

func registerUser(t *testing.T, server *httptest.Server, username, email string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"username": username,
		"email":    email,
		"password": "ComplexPass123",
	})
	resp, err := http.Post(server.URL+"/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var tr tokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tr))
	require.NotEmpty(t, tr.Token)
	return tr.Token
}

func doJSON(t *testing.T, method, url, token string, payload any) *http.Response {
	t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func dialWS(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event domain.Event
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func Test_Gateway_LiveRoomFlow(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	aliceToken := registerUser(t, server, "alice", "alice@example.com")
	bobToken := registerUser(t, server, "bob", "bob@example.com")

	// alice creates the room and invites bob.
	resp := doJSON(t, http.MethodPost, server.URL+"/rooms", aliceToken, map[string]any{
		"name":    "Team",
		"members": []string{"bob"},
	})
	req.Equal(http.StatusCreated, resp.StatusCode)
	var created struct {
		ID    int64    `json:"id"`
		Added []string `json:"added"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	req.Equal([]string{"bob"}, created.Added)

	aliceConn := dialWS(t, server, aliceToken)
	bobConn := dialWS(t, server, bobToken)

	join := func(conn *websocket.Conn) {
		req.NoError(conn.WriteJSON(map[string]any{"event": "join_room", "room": created.ID}))
	}

	// alice joins and receives her own announcement.
	join(aliceConn)
	event := readEvent(t, aliceConn)
	req.Equal(domain.EventJoinAnnouncement, event.Name)
	var presence domain.PresencePayload
	req.NoError(json.Unmarshal(event.Data, &presence))
	req.Equal("alice", presence.Username)

	// bob joins; both sessions see the announcement.
	join(bobConn)
	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		event := readEvent(t, conn)
		req.Equal(domain.EventJoinAnnouncement, event.Name)
		req.NoError(json.Unmarshal(event.Data, &presence))
		req.Equal("bob", presence.Username)
	}

	// bob sends a message; both live sessions receive exactly one copy.
	req.NoError(bobConn.WriteJSON(map[string]any{"event": "send_message", "room": created.ID, "text": "hi"}))
	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		event := readEvent(t, conn)
		req.Equal(domain.EventReceiveMessage, event.Name)
		var payload domain.MessagePayload
		req.NoError(json.Unmarshal(event.Data, &payload))
		req.Equal("bob", payload.Sender)
		req.Equal("hi", payload.Text)
		req.NotEmpty(payload.CreatedAt)
	}

	// bob leaves; only alice sees the announcement.
	req.NoError(bobConn.WriteJSON(map[string]any{"event": "leave_room", "room": created.ID}))
	event = readEvent(t, aliceConn)
	req.Equal(domain.EventLeaveAnnouncement, event.Name)

	// The message is durable and readable through the history surface.
	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/rooms/%d/messages?page=0", server.URL, created.ID), aliceToken, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	var history []historyItem
	req.NoError(json.NewDecoder(resp.Body).Decode(&history))
	resp.Body.Close()
	req.Len(history, 1)
	req.Equal("bob", history[0].Sender)
	req.Equal("hi", history[0].Text)
}

func Test_Gateway_JoinRequiresMembership(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	aliceToken := registerUser(t, server, "alice", "alice@example.com")
	mallToken := registerUser(t, server, "mallory", "mallory@example.com")

	resp := doJSON(t, http.MethodPost, server.URL+"/rooms", aliceToken, map[string]any{"name": "Private"})
	req.Equal(http.StatusCreated, resp.StatusCode)
	var created struct {
		ID int64 `json:"id"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	aliceConn := dialWS(t, server, aliceToken)
	malloryConn := dialWS(t, server, mallToken)

	// mallory's join is rejected silently: no announcement reaches alice.
	req.NoError(aliceConn.WriteJSON(map[string]any{"event": "join_room", "room": created.ID}))
	readEvent(t, aliceConn) // alice's own announcement

	req.NoError(malloryConn.WriteJSON(map[string]any{"event": "join_room", "room": created.ID}))
	req.NoError(malloryConn.WriteJSON(map[string]any{"event": "send_message", "room": created.ID, "text": "let me in"}))

	// alice must not receive anything from mallory.
	aliceConn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var event domain.Event
	err := aliceConn.ReadJSON(&event)
	req.Error(err)

	// And mallory cannot read history either.
	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/rooms/%d/messages", server.URL, created.ID), mallToken, nil)
	req.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func Test_Gateway_RejectsBadToken(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	req.Error(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	httpResp, err := http.Get(server.URL + "/rooms")
	req.NoError(err)
	defer httpResp.Body.Close()
	req.Equal(http.StatusUnauthorized, httpResp.StatusCode)
}
