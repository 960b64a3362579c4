package server

import (
	"errors"
	"fmt"
	"math"

	"spaceminer/protocol"
)

var ErrNegativeScore = errors.New("negative score delta")

// Action 客户端提交的状态变更请求（Move 或 Score）
type Action interface {
	Kind() string
	apply(p *PlayerRecord)
}

// Move 无条件覆盖位置（不做边界与速度校验）
type Move struct {
	Pos Vec2
}

func (Move) Kind() string { return protocol.MsgMove }

func (m Move) apply(p *PlayerRecord) { p.Pos = m.Pos }

// Score 累加分数，溢出时饱和
type Score struct {
	Delta uint32
}

func (Score) Kind() string { return protocol.MsgScore }

func (s Score) apply(p *PlayerRecord) {
	if s.Delta > math.MaxUint32-p.Score {
		p.Score = math.MaxUint32
		return
	}
	p.Score += s.Delta
}

// actionFromMessage 将已校验的上行消息转换为 Action
func actionFromMessage(m protocol.ClientMessage) (Action, error) {
	switch m.Type {
	case protocol.MsgMove:
		if len(m.Pos) != 2 {
			return nil, fmt.Errorf("%w: move.pos", protocol.ErrMissingField)
		}
		return Move{Pos: Vec2{X: m.Pos[0], Y: m.Pos[1]}}, nil
	case protocol.MsgScore:
		if m.Score == nil {
			return nil, protocol.ErrMissingField
		}
		if *m.Score < 0 {
			return nil, fmt.Errorf("%w: %d", ErrNegativeScore, *m.Score)
		}
		if *m.Score > math.MaxInt32 {
			return nil, fmt.Errorf("%w: %d", protocol.ErrOutOfRange, *m.Score)
		}
		return Score{Delta: uint32(*m.Score)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", protocol.ErrUnknownType, m.Type)
	}
}

// decodeAction 帧负载 -> Action；任何错误都视为协议错误
func decodeAction(b []byte) (Action, error) {
	m, err := protocol.DecodeClientMessage(b)
	if err != nil {
		return nil, err
	}
	return actionFromMessage(m)
}
