package ipcserver

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/trinity-ai/gateway/internal/domain/ipc"
	"github.com/trinity-ai/gateway/internal/infrastructure/auth"
	"github.com/trinity-ai/gateway/pkg/safego"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // ALLOWED_ORIGINS enforcement happens in the gin middleware layer
	},
}

// EventContext is handed to the configured event/command-result callbacks.
type EventContext struct {
	ConnectionID string
	UserID       string
	Message      *ipc.Message
}

// ServerVersion is advertised in hello_ack when non-empty.
var ServerVersion = ""

// wsSender adapts a raw *websocket.Conn to ipc.Sender, funneling every
// write through a single buffered channel the way the teacher's Client
// does, so concurrent Send calls never race on the same connection.
type wsSender struct {
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (s *wsSender) Send(msg *ipc.Message) error {
	data, err := ipc.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return &ipc.ParseError{Reason: "connection closed"}
	}
}

func (s *wsSender) Close(code int, reason string) error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// Server runs the accept loop, receive loop, reaper, and shutdown sequence
// for the daemon WebSocket bridge (spec C12).
type Server struct {
	Config     Config
	AuthConfig auth.Config
	Registry   *ipc.Registry
	Logger     *zap.Logger

	// OnEvent is invoked for every inbound event frame; its error is
	// warn-logged but never closes the connection (spec §4.9).
	OnEvent func(EventContext) error
	// OnCommandResult is invoked for every inbound command_result frame.
	OnCommandResult func(EventContext)

	reaperStop chan struct{}
	reaperDone chan struct{}
}

// NewServer wires a Server with its registry and callbacks. Registry may be
// shared with the command dispatcher (C13).
func NewServer(cfg Config, authCfg auth.Config, registry *ipc.Registry, logger *zap.Logger) *Server {
	return &Server{
		Config:     cfg,
		AuthConfig: authCfg,
		Registry:   registry,
		Logger:     logger,
	}
}

// ServeWS upgrades the HTTP request, authenticates, registers the
// connection, and starts its read/write pumps. It matches net/http's
// http.HandlerFunc signature so it can be mounted directly on gin's
// underlying router via (*gin.Context).Writer/Request.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	daemonGptID := strings.TrimSpace(r.Header.Get("X-Daemon-GPT-Id"))

	userID, err := s.authenticate(r)
	if err != nil {
		conn, upErr := upgrader.Upgrade(w, r, nil)
		if upErr != nil {
			return
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(1008, "Unauthorized"), time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Error("failed to upgrade IPC connection", zap.Error(err))
		return
	}

	connectionID := uuid.NewString()
	sender := &wsSender{send: make(chan []byte, 256), done: make(chan struct{})}

	record := &ipc.Connection{
		ID:          connectionID,
		UserID:      userID,
		Sender:      sender,
		ConnectedAt: time.Now(),
		LastSeenMs:  time.Now().UnixMilli(),
		IPAddress:   r.RemoteAddr,
		UserAgent:   r.UserAgent(),
		DaemonGptID: daemonGptID,
	}
	s.Registry.Register(record)

	ack := ipc.BuildHelloAck(connectionID, time.Now().UTC().Format(time.RFC3339Nano), ServerVersion)
	_ = sender.Send(ack)

	safego.Go(s.Logger, "ipc-write-pump", func() { s.writePump(conn, sender) })
	safego.Go(s.Logger, "ipc-read-pump", func() { s.readPump(conn, sender, connectionID, userID) })
}

func (s *Server) authenticate(r *http.Request) (string, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("Authorization")
	}
	key := r.Header.Get(headerOrDefault(s.AuthConfig.APIKeyHeader))
	return auth.Authenticate(s.AuthConfig, token, key)
}

func headerOrDefault(h string) string {
	if h == "" {
		return "X-API-Key"
	}
	return h
}

func (s *Server) readPump(conn *websocket.Conn, sender *wsSender, connectionID, userID string) {
	defer func() {
		_ = conn.Close()
		s.Registry.Remove(connectionID)
	}()

	conn.SetReadLimit(s.Config.MaxMessageSizeBytes)
	conn.SetReadDeadline(time.Now().Add(s.Config.ClientTimeout))
	conn.SetPongHandler(func(string) error {
		s.Registry.Touch(connectionID, time.Now().UnixMilli())
		conn.SetReadDeadline(time.Now().Add(s.Config.ClientTimeout))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		msg, perr, wasJSON := ipc.ParseRaw(raw)
		now := time.Now()
		if !wasJSON {
			_ = sender.Send(ipc.BuildError("invalid JSON frame", now.Format(time.RFC3339Nano), "invalid_json"))
			continue
		}
		if perr != nil {
			_ = sender.Send(ipc.BuildError(perr.Error(), now.Format(time.RFC3339Nano), "invalid_message"))
			continue
		}

		s.Registry.Touch(connectionID, now.UnixMilli())

		switch msg.Type {
		case ipc.TypeHello:
			s.Registry.UpdateMetadata(connectionID, ipc.MetadataPatch{ClientID: msg.ClientID})
		case ipc.TypeHeartbeat:
			// touch already advanced above; nothing else to do.
		case ipc.TypeEvent:
			if s.OnEvent != nil {
				if err := s.OnEvent(EventContext{ConnectionID: connectionID, UserID: userID, Message: msg}); err != nil {
					s.Logger.Warn("event callback failed", zap.String("connectionId", connectionID), zap.Error(err))
				}
			}
		case ipc.TypeCommandResult:
			if s.OnCommandResult != nil {
				s.OnCommandResult(EventContext{ConnectionID: connectionID, UserID: userID, Message: msg})
			}
		default:
			_ = sender.Send(ipc.BuildError("Unsupported IPC message type: "+string(msg.Type), now.Format(time.RFC3339Nano), "unsupported_type"))
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, sender *wsSender) {
	ticker := time.NewTicker(s.Config.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case data, ok := <-sender.send:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-sender.done:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(1001, "Server shutting down"))
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// StartReaper launches the single shared reaper timer (spec §4.9). Call
// StopReaper during shutdown.
func (s *Server) StartReaper() {
	s.reaperStop = make(chan struct{})
	s.reaperDone = make(chan struct{})
	safego.Go(s.Logger, "ipc-reaper", func() {
		defer close(s.reaperDone)
		ticker := time.NewTicker(s.Config.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.reaperStop:
				return
			case <-ticker.C:
				reaped := s.Registry.Reap(time.Now().UnixMilli(), s.Config.ClientTimeout.Milliseconds())
				for _, id := range reaped {
					s.Logger.Info("reaped stale IPC connection", zap.String("connectionId", id))
				}
			}
		}
	})
}

// Shutdown stops the reaper and force-closes every tracked connection with
// close code 1001, per spec §4.9.
func (s *Server) Shutdown() {
	if s.reaperStop != nil {
		close(s.reaperStop)
		<-s.reaperDone
	}
	s.Registry.CloseAll(1001, "Server shutting down")
}
