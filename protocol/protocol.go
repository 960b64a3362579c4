package protocol

// 消息类型（type 字段）
const (
	MsgWelcome = "welcome"
	MsgState   = "state"
	MsgMove    = "move"
	MsgScore   = "score"
)

const (
	// HeaderSize 帧头：4 字节大端长度
	HeaderSize = 4
	// DefaultMaxFrameSize 单帧负载上限
	DefaultMaxFrameSize = 64 << 10
)

// Welcome 连接建立后首先下发，告知客户端自己的玩家 ID
type Welcome struct {
	Type     string `msgpack:"type"`
	PlayerID uint64 `msgpack:"id"`
}

// State 世界快照（初始状态与每次广播共用）
type State struct {
	Type      string                 `msgpack:"type"`
	Seq       uint64                 `msgpack:"seq"`
	Players   map[uint64]PlayerState `msgpack:"players"`
	Obstacles []ObstacleState        `msgpack:"obstacles"`
}

type PlayerState struct {
	Pos   [2]float64 `msgpack:"pos"`
	Score uint32     `msgpack:"score"`
}

type ObstacleState struct {
	Pos   [2]float64 `msgpack:"pos"`
	Angle uint16     `msgpack:"angle"`
}

// ClientMessage 客户端上行消息：move 携带 pos，score 携带 score
// pos 解码为切片、score 解码为 int64，长度与取值范围由 DecodeClientMessage 校验
type ClientMessage struct {
	Type  string    `msgpack:"type"`
	Pos   []float64 `msgpack:"pos,omitempty"`
	Score *int64    `msgpack:"score,omitempty"`
}
