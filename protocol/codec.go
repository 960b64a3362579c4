package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrEmptyFrame    = errors.New("protocol: empty frame")
	ErrFrameTooLarge = errors.New("protocol: frame too large")
	ErrUnknownType   = errors.New("protocol: unknown message type")
	ErrMissingField  = errors.New("protocol: missing field")
	ErrOutOfRange    = errors.New("protocol: value out of range")
)

// WriteFrame 写出一帧：长度头 + 负载，一次 writev 完成
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyFrame
	}
	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	bufs := net.Buffers{hdr[:], payload}
	_, err := bufs.WriteTo(w)
	return err
}

// ReadFrame 读取一帧负载。对端在帧头之前关闭时返回 io.EOF
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n == 0 {
		return nil, ErrEmptyFrame
	}
	if maxSize > 0 && n > uint32(maxSize) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, maxSize)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

func EncodeWelcome(id uint64) ([]byte, error) {
	return msgpack.Marshal(&Welcome{Type: MsgWelcome, PlayerID: id})
}

func EncodeState(s *State) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("trying to encode nil state")
	}
	s.Type = MsgState
	return msgpack.Marshal(s)
}

// PeekType 只解析 type 字段，用于客户端分派
func PeekType(b []byte) (string, error) {
	if len(b) == 0 {
		return "", ErrEmptyFrame
	}
	var env struct {
		Type string `msgpack:"type"`
	}
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return "", err
	}
	return env.Type, nil
}

func DecodeWelcome(b []byte) (Welcome, error) {
	var w Welcome
	if err := msgpack.Unmarshal(b, &w); err != nil {
		return w, err
	}
	if w.Type != MsgWelcome {
		return w, fmt.Errorf("%w: %q", ErrUnknownType, w.Type)
	}
	return w, nil
}

func DecodeState(b []byte) (State, error) {
	var s State
	if err := msgpack.Unmarshal(b, &s); err != nil {
		return s, err
	}
	if s.Type != MsgState {
		return s, fmt.Errorf("%w: %q", ErrUnknownType, s.Type)
	}
	return s, nil
}

func EncodeMove(x, y float64) ([]byte, error) {
	return msgpack.Marshal(&ClientMessage{Type: MsgMove, Pos: []float64{x, y}})
}

func EncodeScore(delta int32) ([]byte, error) {
	d := int64(delta)
	return msgpack.Marshal(&ClientMessage{Type: MsgScore, Score: &d})
}

// DecodeClientMessage 解析上行消息；未知 type 或缺字段一律拒绝
func DecodeClientMessage(b []byte) (ClientMessage, error) {
	var m ClientMessage
	if len(b) == 0 {
		return m, ErrEmptyFrame
	}
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("protocol: decode: %w", err)
	}
	switch m.Type {
	case MsgMove:
		if m.Pos == nil {
			return m, fmt.Errorf("%w: move.pos", ErrMissingField)
		}
		if len(m.Pos) != 2 {
			return m, fmt.Errorf("%w: move.pos has %d coordinates", ErrOutOfRange, len(m.Pos))
		}
	case MsgScore:
		if m.Score == nil {
			return m, fmt.Errorf("%w: score.score", ErrMissingField)
		}
		// 线上类型为 i32，超出范围的整数不截断
		if *m.Score < math.MinInt32 || *m.Score > math.MaxInt32 {
			return m, fmt.Errorf("%w: score.score %d", ErrOutOfRange, *m.Score)
		}
	default:
		return m, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
	return m, nil
}
