package server

import "time"

// startTicker 按固定间隔广播世界状态，quit 关闭后退出
// interval 为 0 时不启动，广播完全由动作驱动
func (s *Server) startTicker(interval time.Duration, quit <-chan struct{}) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				start := time.Now()
				s.hub.Broadcast()
				s.metrics.AddTick(time.Since(start).Nanoseconds())
			}
		}
	}()
}
