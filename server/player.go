package server

// PlayerID 玩家唯一标识，由单调递增计数器分配，进程内不复用
type PlayerID uint64

// Vec2 游戏空间中的坐标
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PlayerRecord 服务端权威的玩家状态
type PlayerRecord struct {
	Pos   Vec2   `json:"pos"`
	Score uint32 `json:"score"`
}

// ObstacleRecord 可收集的静态障碍物（小行星）
type ObstacleRecord struct {
	Pos   Vec2   `json:"pos"`
	Angle uint16 `json:"angle"` // 0/90/180/270
}
