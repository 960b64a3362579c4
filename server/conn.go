package server

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Transport 一条客户端连接的帧级读写（TCP 或 WebSocket）
// ReadFrame 只由连接处理协程调用，WriteFrame 只由 writePump 调用
type Transport interface {
	ReadFrame() ([]byte, error)
	WriteFrame([]byte) error
	Close() error
	RemoteAddr() string
}

// Client 已注册到 Hub 的连接：有界发送队列 + 独立写协程
type Client struct {
	id      PlayerID
	session string
	t       Transport
	send    chan []byte

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

func NewClient(t Transport, queueSize int) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		session: uuid.NewString(),
		t:       t,
		send:    make(chan []byte, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (c *Client) ID() PlayerID { return c.id }

// Done 连接关闭后返回的通道被关闭
func (c *Client) Done() <-chan struct{} { return c.ctx.Done() }

// Enqueue 非阻塞入队；队列已满或连接已关闭时返回 false
func (c *Client) Enqueue(b []byte) bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// Close 幂等：取消上下文并关闭底层连接，阻塞中的读随之失败
// send 通道不关闭，Enqueue 与 Close 并发是安全的
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.closeErr = c.t.Close()
	})
	return c.closeErr
}

// writePump 独立协程，负责从 send 队列写出；写失败即关闭连接
func (c *Client) writePump(onError func(error)) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.send:
			if err := c.t.WriteFrame(msg); err != nil {
				if onError != nil {
					onError(err)
				}
				_ = c.Close()
				return
			}
		}
	}
}
