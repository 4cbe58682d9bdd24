package ws

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/world"
)

const (
	handshakeTimeout = 5 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
)

type Server struct {
	world *world.World
	log   *zap.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

type session struct {
	id      string
	actorID string
	out     chan []byte
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.log.Debug("upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sess := s.handshake(ctx, conn, isLoopback(r.RemoteAddr))
		if sess == nil {
			return
		}
		log := s.log.With(zap.String("session", sess.id), zap.String("actor", sess.actorID))
		log.Info("session started")

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.writeLoop(ctx, cancel, conn, sess.out)
		}()

		s.readLoop(ctx, conn, sess, log)
		cancel()
		wg.Wait()

		select {
		case s.world.Leave() <- sess.actorID:
		case <-time.After(writeTimeout):
			log.Warn("leave dropped, world not draining")
		}
		log.Info("session ended")
	}
}

func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				cancel()
				// Unblock the reader.
				_ = conn.Close()
				return
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, sess *session, log *zap.Logger) {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("read ended", zap.Error(err))
			}
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			s.reject(sess, "", protocol.ErrProtoBadRequest, "bad json")
			continue
		}
		if base.Type != protocol.TypeAct {
			continue
		}
		var act protocol.ActMsg
		if err := json.Unmarshal(msg, &act); err != nil {
			s.reject(sess, "", protocol.ErrProtoBadRequest, "bad ACT")
			continue
		}
		if act.ProtocolVersion != protocol.Version {
			for _, c := range act.Commands {
				s.reject(sess, c.ID, protocol.ErrProtoVersion, "unsupported protocol_version")
			}
			continue
		}
		select {
		case s.world.Inbox() <- world.CommandEnvelope{ActorID: sess.actorID, Act: act}:
		case <-ctx.Done():
			return
		default:
			for _, c := range act.Commands {
				s.reject(sess, c.ID, protocol.ErrWorldBusy, "inbox full")
			}
		}
	}
}

// reject answers a command the world never saw. Like world output it is
// dropped if the client queue is full.
func (s *Server) reject(sess *session, cmdID, code, msg string) {
	b, err := json.Marshal(protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          cmdID,
		Accepted:        false,
		Code:            code,
		Message:         msg,
	})
	if err != nil {
		return
	}
	select {
	case sess.out <- b:
	default:
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn, loopback bool) *session {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, "bad HELLO")
		return nil
	}
	selected, ok := negotiate(hello)
	if !ok {
		closeWith(conn, websocket.ClosePolicyViolation, protocol.ErrProtoVersion)
		return nil
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 64
	}
	if maxQ > 1024 {
		maxQ = 1024
	}
	out := make(chan []byte, maxQ)

	req := world.JoinRequest{
		Name:              hello.ActorName,
		LocallyControlled: hello.Capabilities.LocallyControlled && loopback,
		Out:               out,
		Resp:              make(chan world.JoinResponse, 1),
	}
	if hello.Auth != nil {
		req.ResumeToken = strings.TrimSpace(hello.Auth.ResumeToken)
	}
	select {
	case s.world.Join() <- req:
	case <-ctx.Done():
		return nil
	case <-time.After(handshakeTimeout):
		closeWith(conn, websocket.CloseTryAgainLater, protocol.ErrWorldBusy)
		return nil
	}
	var resp world.JoinResponse
	select {
	case resp = <-req.Resp:
	case <-ctx.Done():
		return nil
	}
	if resp.Err != "" || resp.Welcome.ActorID == "" {
		closeWith(conn, websocket.CloseInternalServerErr, resp.Err)
		return nil
	}

	sess := &session{id: uuid.NewString(), actorID: resp.Welcome.ActorID, out: out}
	resp.Welcome.SessionID = sess.id
	resp.Welcome.SelectedVersion = selected

	if err := writeJSON(conn, resp.Welcome); err != nil {
		return s.abandon(sess)
	}
	for _, c := range resp.Catalogs {
		if err := writeJSON(conn, c); err != nil {
			return s.abandon(sess)
		}
	}
	return sess
}

// abandon leaves the world for a session that failed mid-handshake.
func (s *Server) abandon(sess *session) *session {
	select {
	case s.world.Leave() <- sess.actorID:
	case <-time.After(writeTimeout):
	}
	return nil
}

// negotiate picks the protocol version for a HELLO. Only one version exists
// so far; SupportedVersions lets newer clients offer it alongside others.
func negotiate(h protocol.HelloMsg) (string, bool) {
	if h.ProtocolVersion == protocol.Version {
		return protocol.Version, true
	}
	for _, v := range h.SupportedVersions {
		if v == protocol.Version {
			return protocol.Version, true
		}
	}
	return "", false
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
