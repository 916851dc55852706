package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/presence"
	"chat-relay/repositories"
	"chat-relay/session"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Server owns the websocket endpoint. The handshake authenticates the
// client from token and sessionId query credentials before any frame is
// read; unauthenticated sockets never reach the router.
type Server struct {
	log      *slog.Logger
	verifier *auth.Verifier
	sessions session.IService
	users    repositories.IUserRepository
	presence presence.IRegistry
	hub      *Hub
	router   *Router
	handlers *Handlers

	httpServer *http.Server
}

func NewServer(log *slog.Logger, verifier *auth.Verifier, sessions session.IService,
	users repositories.IUserRepository, registry presence.IRegistry,
	hub *Hub, router *Router, handlers *Handlers, addr string) *Server {
	s := &Server{
		log:      log,
		verifier: verifier,
		sessions: sessions,
		users:    users,
		presence: registry,
		hub:      hub,
		router:   router,
		handlers: handlers,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        mux,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	return s
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Websocket server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "healthy"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	sessionID := r.URL.Query().Get("sessionId")
	if token == "" || sessionID == "" {
		http.Error(w, "Missing credentials", http.StatusUnauthorized)
		return
	}

	claims, err := s.verifier.ValidateToken(token)
	if err != nil {
		s.log.Warn("Rejected connection with invalid token", "remote", r.RemoteAddr, "err", err)
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	validation := s.sessions.ValidateSession(claims.UserID, sessionID)
	if !validation.Valid {
		s.log.Warn("Rejected connection with invalid session",
			"user", claims.UserID, "code", validation.Code)
		http.Error(w, "Invalid session", http.StatusUnauthorized)
		return
	}

	user, err := s.users.GetUser(claims.UserID)
	if err != nil {
		http.Error(w, "Unknown user", http.StatusUnauthorized)
		return
	}

	sock, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.log.Error("Websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	conn := newConn(sock, s.log)
	identity := domain.ConnectedIdentity{
		UserID:        user.ID,
		Name:          user.Name,
		AuthSessionID: sessionID,
		ConnectionID:  conn.ID,
	}
	conn.BindIdentity(identity)

	// Single active device: the newest socket wins.
	if previous := s.hub.Register(user.ID, conn); previous != nil {
		previous.Emit(domain.EventSessionEnded, map[string]any{
			"reason":  "duplicate_connection",
			"message": "Connected from another device",
		})
		// Give the frame a chance to flush before the close.
		time.AfterFunc(100*time.Millisecond, previous.Close)
	}
	if err = s.presence.SetConnected(identity); err != nil {
		s.log.Error("Failed to record connected identity", "user", user.ID, "err", err)
	}

	s.log.Info("Client connected", "user", user.ID, "conn", conn.ID)
	go conn.writePump()
	go s.readLoop(conn)
}

// readLoop reads frames until the socket dies, then runs full
// disconnect cleanup. Malformed frames are logged and skipped.
func (s *Server) readLoop(conn *Conn) {
	defer func() {
		conn.Close()
		s.handlers.Disconnect(conn)
		identity, _ := conn.Identity()
		s.log.Info("Client disconnected", "user", identity.UserID, "conn", conn.ID)
	}()

	ctx := context.Background()
	for {
		_ = conn.sock.SetReadDeadline(time.Now().Add(pongWait))
		data, op, err := wsutil.ReadClientData(conn.sock)
		if err != nil {
			s.log.Debug("Read failed, closing connection", "conn", conn.ID, "err", err)
			return
		}

		switch op {
		case ws.OpText:
			var frame Frame
			if err = json.Unmarshal(data, &frame); err != nil {
				s.log.Warn("Dropping malformed frame", "conn", conn.ID, "err", err)
				continue
			}
			s.router.Dispatch(ctx, conn, frame)
		case ws.OpClose:
			return
		default:
			// Pings and pongs are handled by the library.
		}
	}
}

// Addr reports the configured listen address, for logs and banners.
func (s *Server) Addr() string {
	return fmt.Sprintf("ws://%s/ws", s.httpServer.Addr)
}
