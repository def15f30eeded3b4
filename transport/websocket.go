package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/petparlor/triage/logging"
)

// ServerOptions configure the websocket server.
type ServerOptions struct {
	Addr   string
	Logger logging.Logger
}

// Server serves the chat protocol over websocket plus a JSON agent listing.
type Server struct {
	engine   ChatEngine
	logger   logging.Logger
	addr     string
	upgrader websocket.Upgrader

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates the websocket transport for the engine.
func NewServer(eng ChatEngine, optFns ...func(o *ServerOptions)) *Server {
	opts := ServerOptions{Addr: ":8080", Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Server{
		engine: eng,
		logger: opts.Logger,
		addr:   opts.Addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler so callers can mount it themselves.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/agents", s.handleAgents)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Start begins serving and blocks until the listener fails or Stop is called.
func (s *Server) Start() error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.Info("transport listening", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.engine.Agents()); err != nil {
		s.logger.Error("agent listing failed", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Track the sessions seen on this connection so navigating away still
	// releases their threads.
	seen := map[string]bool{}
	defer func() {
		for id := range seen {
			s.engine.EndSession(context.Background(), id)
		}
	}()

	for {
		var in Inbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		switch in.Type {
		case TypeAuth:
			for k, v := range in.Auth {
				if err := s.engine.SetAuth(ctx, in.SessionID, k, v); err != nil {
					s.writeJSON(conn, Outbound{Type: TypeError, Error: "session unavailable"})
					break
				}
			}
			seen[in.SessionID] = true

		case TypeMessage:
			seen[in.SessionID] = true
			for el := range s.engine.HandleTurn(ctx, in.SessionID, in.Text) {
				if !s.writeJSON(conn, outboundFor(el)) {
					return
				}
			}
			if !s.writeJSON(conn, Outbound{Type: TypeDone}) {
				return
			}

		case TypeEnd:
			s.engine.EndSession(ctx, in.SessionID)
			delete(seen, in.SessionID)

		default:
			s.writeJSON(conn, Outbound{Type: TypeError, Error: "unknown message type"})
		}
	}
}

func (s *Server) writeJSON(conn *websocket.Conn, out Outbound) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(out); err != nil {
		s.logger.Warn("websocket write failed", "error", err)
		return false
	}
	return true
}
