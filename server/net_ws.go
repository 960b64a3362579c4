package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var errTextMessage = errors.New("websocket: text messages are not accepted")

// wsTransport WebSocket 网关：每条二进制消息即一帧 msgpack 负载
type wsTransport struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	idleTimeout  time.Duration
}

func newWSTransport(ws *websocket.Conn, maxFrame int, writeTimeout, idleTimeout time.Duration) *wsTransport {
	ws.SetReadLimit(int64(maxFrame))
	return &wsTransport{ws: ws, writeTimeout: writeTimeout, idleTimeout: idleTimeout}
}

func (t *wsTransport) ReadFrame() ([]byte, error) {
	if t.idleTimeout > 0 {
		_ = t.ws.SetReadDeadline(time.Now().Add(t.idleTimeout))
	}
	mt, payload, err := t.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	if mt != websocket.BinaryMessage {
		return nil, errTextMessage
	}
	return payload, nil
}

func (t *wsTransport) WriteFrame(b []byte) error {
	if t.writeTimeout > 0 {
		_ = t.ws.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	return t.ws.WriteMessage(websocket.BinaryMessage, b)
}

func (t *wsTransport) Close() error { return t.ws.Close() }

func (t *wsTransport) RemoteAddr() string { return t.ws.RemoteAddr().String() }

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 无鉴权设计：允许所有来源
		return true
	},
}

// HandleWS WebSocket 接入，连接随后与 TCP 客户端走同一套处理流程
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	if !s.track() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.wg.Done()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("upgrade error: %v", err)
		return
	}
	s.handle(newWSTransport(ws, s.cfg.Net.MaxFrameSize, s.cfg.Net.WriteTimeout, s.cfg.Net.IdleTimeout))
}
