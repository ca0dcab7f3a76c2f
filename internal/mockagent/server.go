package mockagent

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Config configures the mock server.
type Config struct {
	// Subprotocol must be the first entry of the client's subprotocol list.
	Subprotocol string
	// InitAction is the handshake action the server acknowledges.
	InitAction string
	// SessionToken, when set, is accepted in addition to tokens the server
	// issued itself. Any other token gets a 401 server error.
	SessionToken string
	Logger       *slog.Logger
}

// Server serves the agent session websocket.
type Server struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*client]bool
	issued  map[string]bool
}

// NewServer creates a server with no clients.
func NewServer(cfg Config) *Server {
	if cfg.Subprotocol == "" {
		cfg.Subprotocol = "openhands"
	}
	if cfg.InitAction == "" {
		cfg.InitAction = "initialize"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		cfg:     cfg,
		logger:  cfg.Logger,
		clients: make(map[*client]bool),
		issued:  make(map[string]bool),
	}
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/health", s.handleHealth)
}

// Handler returns a mux with all routes installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"clients": s.ClientCount()})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	protocols := websocket.Subprotocols(r)
	if len(protocols) != 3 || protocols[0] != s.cfg.Subprotocol {
		http.Error(w, "missing session subprotocol", http.StatusBadRequest)
		return
	}

	upgrader := websocket.Upgrader{
		Subprotocols: []string{s.cfg.Subprotocol},
		CheckOrigin:  checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade error", "error", err)
		return
	}

	token := protocols[1]
	s.logger.Info("client connected", "remote", r.RemoteAddr)
	c := s.addClient(conn, token)

	switch {
	case token == noSessionToken:
		token = uuid.NewString()
		s.mu.Lock()
		s.issued[token] = true
		s.mu.Unlock()
		c.token = token
		c.enqueue(TokenIssued{Token: token})
	case !s.validToken(token):
		c.enqueue(ServerError{Error: true, Message: "session expired", ErrorCode: http.StatusUnauthorized})
	}

	go func() {
		defer func() {
			s.removeClient(c)
			s.logger.Info("client disconnected", "remote", r.RemoteAddr)
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.handleFrame(c, data)
		}
	}()
}

func (s *Server) validToken(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.issued[token] {
		return true
	}
	return s.cfg.SessionToken != "" && token == s.cfg.SessionToken
}

func (s *Server) handleFrame(c *client, data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil || f == nil {
		c.enqueue(ServerError{Error: true, Message: "malformed frame", ErrorCode: http.StatusBadRequest})
		return
	}

	action, _ := f["action"].(string)
	switch action {
	case "":
		c.enqueue(ServerError{Error: true, Message: "missing action", ErrorCode: http.StatusBadRequest})
	case s.cfg.InitAction:
		s.logger.Info("session initialized", "token", c.token)
		c.enqueue(stateChange(StateInit))
	case ActionMessage:
		content := ""
		if args, ok := f["args"].(map[string]any); ok {
			content, _ = args["content"].(string)
		}
		c.enqueue(AgentMessage{
			Source: "agent",
			Action: ActionMessage,
			Args:   map[string]any{"content": "echo: " + content},
		})
		c.enqueue(stateChange(StateAwaitingUserInput))
	default:
		c.enqueue(observationError(ErrorIDUnsupportedAction, fmt.Sprintf("unsupported action %q", action)))
	}
}

func (s *Server) addClient(conn *websocket.Conn, token string) *client {
	c := newClient(conn, s, token)
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()
	return c
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		c.close()
	}
	s.mu.Unlock()
}

// Broadcast sends v to every connected client. Clients that cannot keep up
// are disconnected.
func (s *Server) Broadcast(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("broadcast marshal: %w", err)
	}

	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if !c.enqueueRaw(data) {
			s.logger.Warn("ws client too slow, disconnecting")
			s.removeClient(c)
		}
	}
	return nil
}

// DisconnectAll closes every client connection, as a backend restart would.
func (s *Server) DisconnectAll() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[*client]bool)
	s.mu.Unlock()
	for c := range clients {
		c.close()
	}
}

func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// checkOrigin accepts same-host and loopback origins.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	if parsed.Host == r.Host {
		return true
	}
	host := parsed.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1" || strings.HasSuffix(host, ".localhost")
}

// ListenAndServe serves the mock backend on host:port.
func ListenAndServe(host string, port int, handler http.Handler, logger *slog.Logger) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	logger.Info("mock agent listening", "addr", addr)
	return http.ListenAndServe(addr, handler)
}
