package server

import (
	"errors"
	"io"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"spaceminer/protocol"
)

// connState 连接处理状态：connecting -> active -> closed
type connState int

const (
	stateConnecting connState = iota
	stateActive
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateActive:
		return "active"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// handle 单个连接的完整生命周期，阻塞直到连接关闭
func (s *Server) handle(t Transport) {
	s.metrics.IncAccepted()
	defer s.metrics.DecActive()

	c := NewClient(t, s.cfg.Net.SendQueueSize)
	log := s.log.With("conn", c.session, "remote", t.RemoteAddr())
	log.Debugw("connection state", "state", stateConnecting)

	id, err := s.hub.Join(c)
	if err != nil {
		log.Infow("rejecting connection", "error", err)
		_ = c.Close()
		return
	}
	log = log.With("player", id)
	log.Infow("player joined", "players", s.world.NumPlayers())

	// 处理协程本身已被登记，此时 Add 不会与 Shutdown 的 Wait 竞争
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		c.writePump(func(err error) {
			s.metrics.IncSendFailures()
			if c.ctx.Err() == nil {
				log.Infow("write failed", "error", err)
			}
		})
	}()

	defer func() {
		s.hub.Leave(id)
		_ = c.Close()
		log.Infow("player left", "state", stateClosed, "players", s.world.NumPlayers())
	}()

	log.Debugw("connection state", "state", stateActive)
	s.readLoop(c, log)
}

// readLoop 逐帧读取动作并应用，每个动作之后触发一次广播
// 同一连接的动作按接收顺序串行应用
func (s *Server) readLoop(c *Client, log *zap.SugaredLogger) {
	var limiter *rate.Limiter
	if s.cfg.Net.ActionRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.Net.ActionRate), s.cfg.Net.ActionBurst)
	}

	for {
		b, err := c.t.ReadFrame()
		if err != nil {
			switch {
			case c.ctx.Err() != nil:
				log.Debugw("read stopped, connection closed locally")
			case errors.Is(err, io.EOF):
				log.Debugw("peer closed connection")
			case isProtocolError(err):
				s.metrics.IncProtocolErrors()
				log.Warnw("protocol error, closing connection", "error", err)
			default:
				log.Infow("read failed", "error", err)
			}
			return
		}

		a, err := decodeAction(b)
		if err != nil {
			s.metrics.IncProtocolErrors()
			log.Warnw("protocol error, closing connection", "error", err)
			return
		}

		if limiter != nil {
			// 限速只会延后，不会丢弃或重排动作
			if err := limiter.Wait(c.ctx); err != nil {
				return
			}
		}

		if err := s.world.ApplyAction(c.id, a); err != nil {
			s.metrics.IncOrphaned()
			log.Warnw("action for removed player", "action", a.Kind(), "error", err)
			continue
		}
		s.metrics.IncApplied()
		s.hub.Broadcast()
	}
}

func isProtocolError(err error) bool {
	return errors.Is(err, protocol.ErrFrameTooLarge) ||
		errors.Is(err, protocol.ErrEmptyFrame) ||
		errors.Is(err, websocket.ErrReadLimit) ||
		errors.Is(err, errTextMessage)
}
