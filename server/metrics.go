package server

import (
	"sync/atomic"
)

// Metrics 记录服务运行期的关键指标（用于监控与调试）
type Metrics struct {
	ConnectionsAccepted int64 // 累计接入连接数
	ConnectionsActive   int64 // 当前在线连接数
	ActionsApplied      int64 // 已应用的动作数
	ActionsOrphaned     int64 // 玩家已移除时到达的动作数
	ProtocolErrors      int64 // 因解码失败而关闭的连接数
	Broadcasts          int64 // 广播次数
	FramesQueued        int64 // 成功入队的下行帧数
	SendFailures        int64 // 入队或写出失败次数
	TickCount           int64 // 定时广播次数
	TotalTickNs         int64 // 定时广播累计耗时（纳秒）
}

func (m *Metrics) IncAccepted() {
	atomic.AddInt64(&m.ConnectionsAccepted, 1)
	atomic.AddInt64(&m.ConnectionsActive, 1)
}
func (m *Metrics) DecActive() { atomic.AddInt64(&m.ConnectionsActive, -1) }
func (m *Metrics) IncApplied() { atomic.AddInt64(&m.ActionsApplied, 1) }
func (m *Metrics) IncOrphaned() { atomic.AddInt64(&m.ActionsOrphaned, 1) }
func (m *Metrics) IncProtocolErrors() { atomic.AddInt64(&m.ProtocolErrors, 1) }
func (m *Metrics) IncBroadcasts() { atomic.AddInt64(&m.Broadcasts, 1) }
func (m *Metrics) AddFramesQueued(n int) { atomic.AddInt64(&m.FramesQueued, int64(n)) }
func (m *Metrics) IncSendFailures() { atomic.AddInt64(&m.SendFailures, 1) }
func (m *Metrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"connections_accepted": atomic.LoadInt64(&m.ConnectionsAccepted),
		"connections_active":   atomic.LoadInt64(&m.ConnectionsActive),
		"actions_applied":      atomic.LoadInt64(&m.ActionsApplied),
		"actions_orphaned":     atomic.LoadInt64(&m.ActionsOrphaned),
		"protocol_errors":      atomic.LoadInt64(&m.ProtocolErrors),
		"broadcasts":           atomic.LoadInt64(&m.Broadcasts),
		"frames_queued":        atomic.LoadInt64(&m.FramesQueued),
		"send_failures":        atomic.LoadInt64(&m.SendFailures),
		"tick_count":           tick,
		"avg_tick_ms":          avgMs,
	}
}
