package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

// BaseSuite targets a running deployment over its public surfaces:
// the REST API for accounts and chat administration, the websocket
// endpoint for the live session.
type BaseSuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("SERVER_ADDR not set, skipping end to end suite")
	}
	s.client = &http.Client{Timeout: 30 * time.Second}
}

func (s *BaseSuite) header(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// PostJSON posts a body to the REST API and decodes the response into
// out. Non-2xx statuses are returned to the caller, not asserted, so
// scenarios can exercise error paths too.
func (s *BaseSuite) PostJSON(name, path string, body, out any, bearer string) int {
	s.header(name)

	payload, err := json.Marshal(body)
	s.Require().NoError(err)

	req, err := http.NewRequest(http.MethodPost, s.Config.ServerAddr+path, bytes.NewReader(payload))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.T().Logf("POST %s [%d] in %v", path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		s.T().Logf("REQUEST:\n%s\nRESPONSE:\n%s", payload, raw)
	}

	if out != nil && resp.StatusCode < 300 {
		s.Require().NoError(json.Unmarshal(raw, out))
	}
	return resp.StatusCode
}

// Authenticate registers the configured account if needed and logs in,
// returning a bearer token for both surfaces.
func (s *BaseSuite) Authenticate(email, name, password string) string {
	var token struct {
		Token string `json:"token"`
	}
	status := s.PostJSON("register "+email, "/auth/register", map[string]string{
		"email": email, "name": name, "password": password,
	}, &token, "")
	if status == http.StatusCreated {
		return token.Token
	}
	// Already registered on a previous run, log in instead.
	status = s.PostJSON("login "+email, "/auth/login", map[string]string{
		"email": email, "password": password,
	}, &token, "")
	s.Require().Equal(http.StatusOK, status)
	return token.Token
}

// DialWS opens an authenticated websocket session.
func (s *BaseSuite) DialWS(name, token string) *websocket.Conn {
	s.header(name)
	wsURL := strings.Replace(s.Config.ServerAddr, "http", "ws", 1) + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	s.Require().NoError(err, "Failed to open websocket session at "+wsURL)
	return conn
}

// ReadUntil reads frames until one carries the wanted event name,
// returning its raw data payload. Presence and typing traffic is
// skipped on the way.
func (s *BaseSuite) ReadUntil(conn *websocket.Conn, eventName string, timeout time.Duration) json.RawMessage {
	deadline := time.Now().Add(timeout)
	s.Require().NoError(conn.SetReadDeadline(deadline))
	for {
		_, frame, err := conn.ReadMessage()
		s.Require().NoError(err, "connection closed while waiting for "+eventName)
		var env struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		s.Require().NoError(json.Unmarshal(frame, &env))
		if s.Config.DebugJSON {
			s.T().Logf("WS <- %s %s", env.Event, env.Data)
		}
		if env.Event == eventName {
			return env.Data
		}
	}
}

// Send frames an event on the socket.
func (s *BaseSuite) Send(conn *websocket.Conn, eventName string, payload any) {
	data, err := json.Marshal(payload)
	s.Require().NoError(err)
	frame, err := json.Marshal(map[string]any{"event": eventName, "data": json.RawMessage(data)})
	s.Require().NoError(err)
	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, frame))
}
