package server

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"spaceminer/protocol"
)

// fakeTransport 基于通道的连接，可注入写失败
type fakeTransport struct {
	in         chan []byte
	out        chan []byte
	failWrites atomic.Bool
	closed     chan struct{}
	once       sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) ReadFrame() ([]byte, error) {
	select {
	case b := <-f.in:
		return b, nil
	case <-f.closed:
		return nil, net.ErrClosed
	}
}

func (f *fakeTransport) WriteFrame(b []byte) error {
	if f.failWrites.Load() {
		return errors.New("broken pipe")
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	select {
	case f.out <- cp:
		return nil
	case <-f.closed:
		return net.ErrClosed
	}
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) RemoteAddr() string { return "fake" }

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func newTestHub(t *testing.T) (*Hub, *World) {
	t.Helper()
	w := NewWorld(1000, 1000, GenerateObstacles(20, 1000, 1000, nil))
	return NewHub(w, zaptest.NewLogger(t).Sugar(), &Metrics{}), w
}

// queued 取出客户端发送队列中已有的全部消息
func queued(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case b := <-c.send:
			out = append(out, b)
		default:
			return out
		}
	}
}

func TestHubJoinQueuesWelcomeThenState(t *testing.T) {
	h, w := newTestHub(t)
	c := NewClient(newFakeTransport(), 8)

	id, err := h.Join(c)
	require.NoError(t, err)
	assert.Equal(t, id, c.ID())

	msgs := queued(c)
	require.Len(t, msgs, 2)

	welcome, err := protocol.DecodeWelcome(msgs[0])
	require.NoError(t, err)
	assert.EqualValues(t, id, welcome.PlayerID)

	state, err := protocol.DecodeState(msgs[1])
	require.NoError(t, err)
	assert.Contains(t, state.Players, uint64(id))
	assert.Len(t, state.Obstacles, 20)
	assert.Equal(t, 1, w.NumPlayers())
	assert.Equal(t, 1, h.Len())
}

func TestHubJoinBroadcastsToExistingClients(t *testing.T) {
	h, _ := newTestHub(t)
	a := NewClient(newFakeTransport(), 8)
	b := NewClient(newFakeTransport(), 8)

	idA, err := h.Join(a)
	require.NoError(t, err)
	queued(a)

	idB, err := h.Join(b)
	require.NoError(t, err)

	msgs := queued(a)
	require.Len(t, msgs, 1)
	state, err := protocol.DecodeState(msgs[0])
	require.NoError(t, err)
	assert.Contains(t, state.Players, uint64(idA))
	assert.Contains(t, state.Players, uint64(idB))
}

func TestHubBroadcastToleratesPartialFailure(t *testing.T) {
	h, w := newTestHub(t)

	// 队列容量 2：自己的欢迎 + 初始状态后即满
	slowT := newFakeTransport()
	slow := NewClient(slowT, 2)
	slowID, err := h.Join(slow)
	require.NoError(t, err)

	fast := NewClient(newFakeTransport(), 8)
	fastID, err := h.Join(fast)
	require.NoError(t, err)

	// 失败的客户端被关闭，但注册表由它自己的处理协程清理
	assert.True(t, slowT.isClosed())
	assert.Equal(t, 2, h.Len())
	assert.GreaterOrEqual(t, h.metrics.SendFailures, int64(1))

	msgs := queued(fast)
	require.Len(t, msgs, 2)

	h.Broadcast()
	msgs = queued(fast)
	require.Len(t, msgs, 1)

	h.Leave(slowID)
	assert.Equal(t, 1, h.Len())
	_, ok := w.Player(slowID)
	assert.False(t, ok)

	msgs = queued(fast)
	require.Len(t, msgs, 1)
	state, err := protocol.DecodeState(msgs[0])
	require.NoError(t, err)
	assert.NotContains(t, state.Players, uint64(slowID))
	assert.Contains(t, state.Players, uint64(fastID))
}

func TestHubBroadcastSeqIsMonotonicPerClient(t *testing.T) {
	h, _ := newTestHub(t)
	c := NewClient(newFakeTransport(), 1024)
	_, err := h.Join(c)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				h.Broadcast()
			}
		}()
	}
	wg.Wait()

	msgs := queued(c)
	require.Len(t, msgs, 1+1+500)
	var last uint64
	for _, m := range msgs[1:] {
		s, err := protocol.DecodeState(m)
		require.NoError(t, err)
		assert.Greater(t, s.Seq, last)
		last = s.Seq
	}
}

func TestHubJoinFailsWhenWelcomeCannotBeEncoded(t *testing.T) {
	h, w := newTestHub(t)
	other := NewClient(newFakeTransport(), 8)
	_, err := h.Join(other)
	require.NoError(t, err)
	queued(other)

	encErr := errors.New("encoder broken")
	h.encodeWelcome = func(uint64) ([]byte, error) { return nil, encErr }

	ft := newFakeTransport()
	id, err := h.Join(NewClient(ft, 8))
	assert.ErrorIs(t, err, encErr)
	assert.Zero(t, id)
	assert.True(t, ft.isClosed())

	// 注册被撤销，其他客户端也没有收到任何广播
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, 1, w.NumPlayers())
	assert.Empty(t, queued(other))
}

func TestHubCloseAll(t *testing.T) {
	h, _ := newTestHub(t)
	ta, tb := newFakeTransport(), newFakeTransport()
	_, err := h.Join(NewClient(ta, 8))
	require.NoError(t, err)
	_, err = h.Join(NewClient(tb, 8))
	require.NoError(t, err)

	h.CloseAll()
	assert.True(t, ta.isClosed())
	assert.True(t, tb.isClosed())

	late := newFakeTransport()
	_, err = h.Join(NewClient(late, 8))
	assert.ErrorIs(t, err, ErrHubClosed)

	// 关闭后广播是空操作
	h.Broadcast()
}

func TestClientWritePumpClosesOnWriteError(t *testing.T) {
	ft := newFakeTransport()
	ft.failWrites.Store(true)
	c := NewClient(ft, 4)
	require.True(t, c.Enqueue([]byte("x")))

	var gotErr atomic.Bool
	done := make(chan struct{})
	go func() {
		c.writePump(func(error) { gotErr.Store(true) })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writePump did not exit")
	}
	assert.True(t, gotErr.Load())
	assert.True(t, ft.isClosed())
	assert.False(t, c.Enqueue([]byte("y")), "enqueue after close must fail")
}

func TestClientEnqueueFullQueue(t *testing.T) {
	c := NewClient(newFakeTransport(), 2)
	assert.True(t, c.Enqueue([]byte("a")))
	assert.True(t, c.Enqueue([]byte("b")))
	assert.False(t, c.Enqueue([]byte("c")))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
