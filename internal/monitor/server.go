// ABOUTME: WebSocket server streaming render session events to monitors
// ABOUTME: Implements render.Observer and replays session state to late joiners
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Sendspin/offline-render/internal/discovery"
	"github.com/Sendspin/offline-render/internal/protocol"
	"github.com/Sendspin/offline-render/internal/version"
	"github.com/Sendspin/offline-render/pkg/render"
)

const (
	sendBuffer    = 64
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
)

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool
	Logger     *slog.Logger
}

// Server broadcasts session events to connected monitor clients
type Server struct {
	config   Config
	serverID string
	logger   *slog.Logger

	upgrader   websocket.Upgrader
	mux        *http.ServeMux
	httpServer *http.Server
	listener   net.Listener

	// stateMu orders broadcasts against client registration
	stateMu sync.Mutex
	start   *protocol.Message
	last    *protocol.Message

	clients    map[*client]struct{}
	clientsMu  sync.RWMutex
	isShutdown bool

	mdnsManager *discovery.Manager
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

type client struct {
	conn     *websocket.Conn
	addr     string
	sendChan chan protocol.Message
}

// New creates a new server instance
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		logger:   logger.With(slog.String("component", "monitor")),
		mux:      http.NewServeMux(),
		clients:  make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			// Monitors are read-only and run on trusted local networks
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.mux.HandleFunc(protocol.Path, s.handleWebSocket)
	return s
}

// ServerID returns the identifier sent in server/hello
func (s *Server) ServerID() string { return s.serverID }

// Handler returns the HTTP handler serving the monitor websocket
func (s *Server) Handler() http.Handler { return s.mux }

// Start listens on the configured port and, if enabled, advertises over mDNS
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.mux}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("monitor server failed", slog.Any("error", err))
		}
	}()

	s.logger.Info("monitor listening",
		slog.String("addr", ln.Addr().String()),
		slog.String("server_id", s.serverID))

	if s.config.EnableMDNS {
		port := ln.Addr().(*net.TCPAddr).Port
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        port,
			Logger:      s.logger,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			s.logger.Warn("failed to start mDNS advertisement", slog.Any("error", err))
		}
	}
	return nil
}

// Addr returns the listening address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Attach announces a session to current and future clients
func (s *Server) Attach(session *render.Session) {
	f := session.Format()
	msg := protocol.Message{
		Type: protocol.TypeSessionStart,
		Payload: protocol.SessionStart{
			SessionID:   session.ID().String(),
			Source:      session.Source(),
			Destination: session.Destination(),
			SampleRate:  f.SampleRate,
			Channels:    f.Channels,
			TotalFrames: session.TotalFrames(),
		},
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.start = &msg
	s.last = nil
	s.broadcast(msg)
}

// OnEvent forwards a session event to every client
func (s *Server) OnEvent(session *render.Session, e render.Event) {
	msg := eventMessage(session.ID().String(), e)

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.last = &msg
	s.broadcast(msg)
}

func eventMessage(sessionID string, e render.Event) protocol.Message {
	switch e.Kind {
	case render.EventCompleted:
		return protocol.Message{
			Type:    protocol.TypeSessionCompleted,
			Payload: protocol.SessionEnd{SessionID: sessionID, Progress: e.Progress, Frames: e.Frames},
		}
	case render.EventFailed:
		end := protocol.SessionEnd{SessionID: sessionID, Progress: e.Progress, Frames: e.Frames}
		if e.Err != nil {
			end.Error = e.Err.Error()
		}
		var ge *render.GraphError
		if errors.As(e.Err, &ge) {
			end.Code = ge.Code
		}
		return protocol.Message{Type: protocol.TypeSessionFailed, Payload: end}
	default:
		return protocol.Message{
			Type:    protocol.TypeSessionProgress,
			Payload: protocol.SessionProgress{SessionID: sessionID, Progress: e.Progress, Frames: e.Frames},
		}
	}
}

// broadcast queues msg for every client. Slow clients miss messages rather
// than stall the session's event dispatch. Callers hold stateMu.
func (s *Server) broadcast(msg protocol.Message) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for c := range s.clients {
		select {
		case c.sendChan <- msg:
		default:
			s.logger.Warn("monitor client send buffer full, dropping message",
				slog.String("client", c.addr),
				slog.String("type", msg.Type))
		}
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	c := &client{
		conn:     conn,
		addr:     r.RemoteAddr,
		sendChan: make(chan protocol.Message, sendBuffer),
	}

	c.sendChan <- protocol.Message{
		Type: protocol.TypeServerHello,
		Payload: protocol.ServerHello{
			ServerID: s.serverID,
			Name:     s.config.Name,
			Version:  protocol.Version,
			Device: protocol.DeviceInfo{
				ProductName:     version.Product,
				Manufacturer:    version.Manufacturer,
				SoftwareVersion: version.Version,
			},
		},
	}

	if !s.register(c) {
		s.logger.Debug("rejecting monitor connection during shutdown")
		return
	}
	s.logger.Info("monitor client connected", slog.String("client", c.addr))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.clientWriter(c)
	}()

	// Monitors send nothing meaningful; reading services pings and closes
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("monitor client read error", slog.Any("error", err))
			}
			break
		}
	}

	s.unregister(c)
	<-writerDone
	s.logger.Info("monitor client disconnected", slog.String("client", c.addr))
}

// register adds c and queues the current session state for it
func (s *Server) register(c *client) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if s.isShutdown {
		return false
	}

	if s.start != nil {
		c.sendChan <- *s.start
	}
	if s.last != nil {
		c.sendChan <- *s.last
	}
	s.clients[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) unregister(c *client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.sendChan)
	s.wg.Done()
}

// clientWriter sends queued messages and keepalive pings
func (s *Server) clientWriter(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.sendChan:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Error("failed to marshal message", slog.Any("error", err))
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("monitor write failed", slog.Any("error", err))
				c.conn.Close()
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

// Stop disconnects clients, stops advertising and shuts the listener down
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.clientsMu.Lock()
		s.isShutdown = true
		for c := range s.clients {
			delete(s.clients, c)
			close(c.sendChan)
			s.wg.Done()
		}
		s.clientsMu.Unlock()

		if s.mdnsManager != nil {
			s.mdnsManager.Stop()
		}
		if s.httpServer != nil {
			err = s.httpServer.Shutdown(ctx)
		}
		s.wg.Wait()
		s.logger.Info("monitor stopped")
	})
	return err
}
