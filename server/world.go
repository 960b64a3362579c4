package server

import (
	"errors"
	"sync"
)

var ErrUnknownPlayer = errors.New("unknown player")

// World 整个会话唯一的权威状态：玩家与障碍物
// 所有读写都经过 mu；障碍物在构造后不再变化
type World struct {
	mu sync.RWMutex

	width  float64
	height float64

	players   map[PlayerID]*PlayerRecord
	obstacles []ObstacleRecord
	nextID    PlayerID
}

// Snapshot 某一时刻的一致性深拷贝
type Snapshot struct {
	Players   map[PlayerID]PlayerRecord `json:"players"`
	Obstacles []ObstacleRecord          `json:"obstacles"`
}

// NewWorld 创建空玩家表的世界，obstacles 由调用方预先生成
func NewWorld(width, height float64, obstacles []ObstacleRecord) *World {
	obs := make([]ObstacleRecord, len(obstacles))
	copy(obs, obstacles)
	return &World{
		width:     width,
		height:    height,
		players:   make(map[PlayerID]*PlayerRecord),
		obstacles: obs,
	}
}

// RegisterPlayer 分配新 ID 并在地图中心出生
func (w *World) RegisterPlayer() PlayerID {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	id := w.nextID
	w.players[id] = &PlayerRecord{Pos: Vec2{X: w.width / 2, Y: w.height / 2}}
	return id
}

// ApplyAction 对玩家执行动作；玩家已断开时返回 ErrUnknownPlayer
func (w *World) ApplyAction(id PlayerID, a Action) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	if !ok {
		return ErrUnknownPlayer
	}
	a.apply(p)
	return nil
}

func (w *World) RemovePlayer(id PlayerID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.players[id]; !ok {
		return false
	}
	delete(w.players, id)
	return true
}

func (w *World) Player(id PlayerID) (PlayerRecord, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.players[id]
	if !ok {
		return PlayerRecord{}, false
	}
	return *p, true
}

func (w *World) NumPlayers() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.players)
}

func (w *World) Obstacles() []ObstacleRecord {
	out := make([]ObstacleRecord, len(w.obstacles))
	copy(out, w.obstacles)
	return out
}

func (w *World) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s := Snapshot{
		Players:   make(map[PlayerID]PlayerRecord, len(w.players)),
		Obstacles: make([]ObstacleRecord, len(w.obstacles)),
	}
	for id, p := range w.players {
		s.Players[id] = *p
	}
	copy(s.Obstacles, w.obstacles)
	return s
}
