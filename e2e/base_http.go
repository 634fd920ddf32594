package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"roomchat/domain"
	"roomchat/gateway"
	"roomchat/registry"
	"roomchat/repositories"
	"roomchat/services"
)

type BaseHTTPSuite struct {
	suite.Suite
	Config        Config
	BaseURL       string
	wsReadTimeout time.Duration

	server *httptest.Server
	// suiteT is the suite-level *testing.T captured in SetupSuite; s.T()
	// inside s.Run points at the subtest and would tear down too early.
	suiteT *testing.T
}

// SetupSuite loads the environment configuration and, absent a BASE_URL,
// boots a full in-process server backed by a throwaway store.
func (s *BaseHTTPSuite) SetupSuite() {
	s.suiteT = s.T()

	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	s.wsReadTimeout, err = time.ParseDuration(s.Config.WSReadTimeout)
	s.Require().NoError(err)

	if s.Config.BaseURL != "" {
		s.BaseURL = s.Config.BaseURL
		return
	}

	db, err := badger.Open(badger.DefaultOptions(s.T().TempDir()).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)

	log := slog.Default()
	users, err := repositories.NewUserRepository(db)
	s.Require().NoError(err)
	rooms, err := repositories.NewRoomRepository(db, log)
	s.Require().NoError(err)
	messages, err := repositories.NewMessageRepository(db, log, s.Config.PageSize)
	s.Require().NoError(err)

	liveRegistry := registry.NewRegistry(log)
	membership := services.NewMembershipService(users, rooms, liveRegistry, log)
	messageService := services.NewMessageService(messages, liveRegistry, log)
	authProvider := services.NewAuthService(users)

	gw := gateway.NewGateway(log, membership, messageService, authProvider,
		liveRegistry, 64, time.Second, time.Hour)

	s.server = httptest.NewServer(gw.Handler())
	s.BaseURL = s.server.URL

	s.T().Cleanup(func() {
		s.server.Close()
		_ = users.Close()
		_ = rooms.Close()
		_ = messages.Close()
		_ = db.Close()
	})
}

// DoJSON runs one authenticated JSON round trip and decodes the response
// into out when provided. Bodies are logged when E2E_DEBUG_JSON is set.
func (s *BaseHTTPSuite) DoJSON(method, path, token string, payload, out any) int {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		s.Require().NoError(err)
	}

	req, err := http.NewRequest(method, s.BaseURL+path, bytes.NewReader(body))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	if s.Config.DebugJSON {
		s.T().Logf("HTTP %s %s [%d] in %v\nREQUEST:\n%s\nRESPONSE:\n%s",
			method, path, resp.StatusCode, time.Since(start), body, raw)
	}

	if out != nil && len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, out))
	}
	return resp.StatusCode
}

// RegisterUser creates an account and returns its session token.
func (s *BaseHTTPSuite) RegisterUser(username, email string) string {
	var res struct {
		Token string `json:"token"`
	}
	status := s.DoJSON(http.MethodPost, "/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "ComplexPass123",
	}, &res)
	s.Require().Equal(http.StatusCreated, status)
	s.Require().NotEmpty(res.Token)
	return res.Token
}

// Login exchanges credentials for a fresh token.
func (s *BaseHTTPSuite) Login(username, password string) (string, int) {
	var res struct {
		Token string `json:"token"`
	}
	status := s.DoJSON(http.MethodPost, "/login", "", map[string]string{
		"username": username,
		"password": password,
	}, &res)
	return res.Token, status
}

// DialWS opens an authenticated websocket session.
func (s *BaseHTTPSuite) DialWS(token string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.BaseURL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.suiteT.Cleanup(func() { _ = conn.Close() })
	return conn
}

// ReadEvent blocks for the next server event on conn, bounded by the
// configured websocket read timeout.
func (s *BaseHTTPSuite) ReadEvent(conn *websocket.Conn) domain.Event {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(s.wsReadTimeout)))
	var event domain.Event
	s.Require().NoError(conn.ReadJSON(&event))
	return event
}

// ExpectSilence asserts that no event arrives on conn within the grace window.
func (s *BaseHTTPSuite) ExpectSilence(conn *websocket.Conn, grace time.Duration) {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(grace)))
	var event domain.Event
	err := conn.ReadJSON(&event)
	s.Require().Error(err, fmt.Sprintf("unexpected event %q", event.Name))
}
