package server

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"spaceminer/protocol"
)

var ErrHubClosed = errors.New("hub closed")

// Hub 在线客户端注册表与广播器
// 锁顺序固定为 Hub.mu -> World.mu；持锁期间只做非阻塞入队，不做网络 IO
type Hub struct {
	mu      sync.Mutex
	world   *World
	clients map[PlayerID]*Client
	seq     uint64
	closed  bool

	log     *zap.SugaredLogger
	metrics *Metrics

	encodeWelcome func(id uint64) ([]byte, error)
}

func NewHub(world *World, log *zap.SugaredLogger, metrics *Metrics) *Hub {
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &Hub{
		world:   world,
		clients: make(map[PlayerID]*Client),
		log:     log,
		metrics: metrics,

		encodeWelcome: protocol.EncodeWelcome,
	}
}

// Join 注册新玩家：先入队欢迎消息，再广播包含该玩家的初始状态
// 两者都在同一把锁内完成，因此该客户端收到的第一份状态一定已包含自己
func (h *Hub) Join(c *Client) (PlayerID, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0, ErrHubClosed
	}
	id := h.world.RegisterPlayer()
	c.id = id
	h.clients[id] = c

	welcome, err := h.encodeWelcome(uint64(id))
	if err != nil {
		// 尚未向任何人广播过该玩家，直接撤销注册
		delete(h.clients, id)
		h.world.RemovePlayer(id)
		h.mu.Unlock()
		_ = c.Close()
		return 0, fmt.Errorf("encode welcome for player %d: %w", id, err)
	}
	var failed []*Client
	if c.Enqueue(welcome) {
		h.metrics.AddFramesQueued(1)
	} else {
		h.metrics.IncSendFailures()
		failed = append(failed, c)
	}
	failed = append(failed, h.broadcastLocked()...)
	h.mu.Unlock()

	h.dropFailed(failed)
	return id, nil
}

// Leave 注销客户端并移除玩家，随后把离开广播给其余玩家
func (h *Hub) Leave(id PlayerID) {
	h.mu.Lock()
	_, registered := h.clients[id]
	delete(h.clients, id)
	removed := h.world.RemovePlayer(id)
	var failed []*Client
	if (registered || removed) && !h.closed && len(h.clients) > 0 {
		failed = h.broadcastLocked()
	}
	h.mu.Unlock()

	h.dropFailed(failed)
}

// Broadcast 对当前世界取快照、编码一次、投递给全部在线客户端
func (h *Hub) Broadcast() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	failed := h.broadcastLocked()
	h.mu.Unlock()

	h.dropFailed(failed)
}

// broadcastLocked 调用方持有 h.mu；返回投递失败的客户端
func (h *Hub) broadcastLocked() []*Client {
	h.seq++
	payload, err := protocol.EncodeState(stateMessage(h.seq, h.world.Snapshot()))
	if err != nil {
		h.log.Errorf("encode state seq=%d: %v", h.seq, err)
		return nil
	}
	h.metrics.IncBroadcasts()

	var failed []*Client
	queued := 0
	for _, c := range h.clients {
		if c.Enqueue(payload) {
			queued++
			continue
		}
		h.metrics.IncSendFailures()
		failed = append(failed, c)
	}
	h.metrics.AddFramesQueued(queued)
	return failed
}

// dropFailed 关闭投递失败的连接；注册表的清理由各自的处理协程在读失败后完成
func (h *Hub) dropFailed(failed []*Client) {
	for _, c := range failed {
		select {
		case <-c.Done():
			continue
		default:
		}
		h.log.Infow("dropping client after failed send", "player", c.id, "conn", c.session)
		_ = c.Close()
	}
}

// CloseAll 标记关闭并关闭全部连接；之后的 Join 返回 ErrHubClosed
func (h *Hub) CloseAll() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.Close()
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// stateMessage 快照 -> 线上消息
func stateMessage(seq uint64, s Snapshot) *protocol.State {
	st := &protocol.State{
		Seq:       seq,
		Players:   make(map[uint64]protocol.PlayerState, len(s.Players)),
		Obstacles: make([]protocol.ObstacleState, 0, len(s.Obstacles)),
	}
	for id, p := range s.Players {
		st.Players[uint64(id)] = protocol.PlayerState{
			Pos:   [2]float64{p.Pos.X, p.Pos.Y},
			Score: p.Score,
		}
	}
	for _, o := range s.Obstacles {
		st.Obstacles = append(st.Obstacles, protocol.ObstacleState{
			Pos:   [2]float64{o.Pos.X, o.Pos.Y},
			Angle: o.Angle,
		})
	}
	return st
}
