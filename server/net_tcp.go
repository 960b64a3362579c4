package server

import (
	"bufio"
	"net"
	"time"

	"spaceminer/protocol"
)

// tcpTransport 长度前缀帧的 TCP 连接
type tcpTransport struct {
	conn         net.Conn
	r            *bufio.Reader
	maxFrame     int
	writeTimeout time.Duration
	idleTimeout  time.Duration
}

func newTCPTransport(conn net.Conn, maxFrame int, writeTimeout, idleTimeout time.Duration) *tcpTransport {
	return &tcpTransport{
		conn:         conn,
		r:            bufio.NewReader(conn),
		maxFrame:     maxFrame,
		writeTimeout: writeTimeout,
		idleTimeout:  idleTimeout,
	}
}

func (t *tcpTransport) ReadFrame() ([]byte, error) {
	if t.idleTimeout > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(t.idleTimeout))
	}
	return protocol.ReadFrame(t.r, t.maxFrame)
}

func (t *tcpTransport) WriteFrame(b []byte) error {
	if t.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	return protocol.WriteFrame(t.conn, b)
}

func (t *tcpTransport) Close() error { return t.conn.Close() }

func (t *tcpTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }
