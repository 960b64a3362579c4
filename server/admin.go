package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// Routes 管理与监控接口，以及 WebSocket 网关
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.HandleMetrics).Methods(http.MethodGet)
	r.HandleFunc("/admin/state", s.HandleAdminState).Methods(http.MethodGet)
	r.HandleFunc("/admin/config", s.HandleAdminConfig).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.HandleWS).Methods(http.MethodGet)
	return r
}

// HandleMetrics 输出运行指标
// GET /metrics
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"players": s.world.NumPlayers(),
		"clients": s.hub.Len(),
		"metrics": s.metrics.Snapshot(),
	}
	writeJSON(w, payload)
}

// HandleAdminState 输出当前世界快照
// GET /admin/state
func (s *Server) HandleAdminState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.world.Snapshot())
}

// HandleAdminConfig 输出生效中的配置（只读）
// GET /admin/config
func (s *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.cfg)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
