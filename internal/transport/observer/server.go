package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"futdrill.ai/internal/observerproto"
)

type Config struct {
	Logger    *log.Logger
	Bootstrap observerproto.BootstrapResponse
	// Optional. Nil rejects control claims and drops INPUT messages.
	Inputs *RemoteInput
	// Optional. Runs on the connection goroutine; it must hand the command to
	// the simulation loop and report false when it could not.
	OnCommand func(observerproto.CommandMsg) bool
}

type Server struct {
	cfg Config
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu   sync.Mutex
	subs map[string]chan []byte

	dropped atomic.Uint64
}

func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		cfg: cfg,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only
		},
		subs: map[string]chan []byte{},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := s.cfg.Bootstrap
		resp.ProtocolVersion = observerproto.Version
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// Subscribers is the number of connected observers.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Dropped counts messages skipped for slow observers.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

// Broadcast marshals msg once and queues it for every observer. A full
// queue drops the message for that observer only.
func (s *Server) Broadcast(msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.log.Printf("observer: marshal: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- b:
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *Server) addSub(sid string) chan []byte {
	ch := make(chan []byte, 16)
	s.mu.Lock()
	s.subs[sid] = ch
	s.mu.Unlock()
	return ch
}

func (s *Server) removeSub(sid string) {
	s.mu.Lock()
	delete(s.subs, sid)
	s.mu.Unlock()
}

type envelope struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, "bad subscribe")
			return
		}
		if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		if sub.ControlID != "" {
			if s.cfg.Inputs == nil || !s.cfg.Inputs.Claim(sub.ControlID, sid) {
				closeWith(conn, websocket.ClosePolicyViolation, "player not available")
				return
			}
			defer s.cfg.Inputs.Release(sid)
			s.log.Printf("observer %s controls %s", sid, sub.ControlID)
		}

		out := s.addSub(sid)
		defer s.removeSub(sid)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.handleClientMsg(sid, msg)
		}

		cancel()
		closeWith(conn, websocket.CloseNormalClosure, "bye")

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) handleClientMsg(sid string, msg []byte) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil || env.ProtocolVersion != observerproto.Version {
		return
	}
	switch env.Type {
	case observerproto.TypeInput:
		var in observerproto.InputMsg
		if err := json.Unmarshal(msg, &in); err != nil || s.cfg.Inputs == nil {
			return
		}
		s.cfg.Inputs.Set(sid, in.Input)
	case observerproto.TypeCommand:
		var cmd observerproto.CommandMsg
		if err := json.Unmarshal(msg, &cmd); err != nil || s.cfg.OnCommand == nil {
			return
		}
		if !s.cfg.OnCommand(cmd) {
			s.log.Printf("observer %s: command %q dropped", sid, cmd.Command)
		}
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
