package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"spaceminer/config"
)

// Server 持有世界状态与客户端注册表，负责监听、接入与优雅关闭
type Server struct {
	cfg     *config.Config
	log     *zap.SugaredLogger
	world   *World
	hub     *Hub
	metrics *Metrics

	running atomic.Bool
	mu      sync.Mutex // 保护 ln、admin 与 wg.Add
	ln      net.Listener
	admin   *http.Server
	adminLn net.Listener
	wg      sync.WaitGroup
	quit    chan struct{}
	stop    sync.Once
}

// New 创建服务并一次性生成障碍物
func New(cfg *config.Config, log *zap.SugaredLogger) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	metrics := &Metrics{}
	obstacles := GenerateObstacles(cfg.World.ObstacleCount, cfg.World.Width, cfg.World.Height, nil)
	world := NewWorld(cfg.World.Width, cfg.World.Height, obstacles)
	return &Server{
		cfg:     cfg,
		log:     log,
		world:   world,
		hub:     NewHub(world, log, metrics),
		metrics: metrics,
		quit:    make(chan struct{}),
	}, nil
}

func (s *Server) World() *World { return s.world }

func (s *Server) Metrics() *Metrics { return s.metrics }

// Listen 绑定游戏端口与管理端口；失败即终止启动
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return errors.New("server already listening")
	}
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr(), err)
	}
	if s.cfg.AdminAddr != "" {
		adminLn, err := net.Listen("tcp", s.cfg.AdminAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen admin %s: %w", s.cfg.AdminAddr, err)
		}
		s.adminLn = adminLn
		s.admin = &http.Server{Handler: s.Routes(), ReadHeaderTimeout: 5 * time.Second}
	}
	s.ln = ln
	s.running.Store(true)
	return nil
}

// Addr 游戏端口的实际监听地址（端口为 0 时有用）
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// AdminAddr 管理端口的实际监听地址；未启用时为 nil
func (s *Server) AdminAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adminLn == nil {
		return nil
	}
	return s.adminLn.Addr()
}

func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve 接入循环：每个连接一个协程；关闭后返回 nil
func (s *Server) Serve() error {
	s.mu.Lock()
	ln, admin, adminLn := s.ln, s.admin, s.adminLn
	s.mu.Unlock()
	if ln == nil {
		return errors.New("server not listening")
	}

	if admin != nil {
		go func() {
			s.log.Infof("admin listening on %s", adminLn.Addr())
			if err := admin.Serve(adminLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Errorf("admin serve: %v", err)
			}
		}()
	}
	s.startTicker(s.cfg.BroadcastInterval, s.quit)

	s.log.Infof("game server listening on %s (%d obstacles, %vx%v)",
		ln.Addr(), s.cfg.World.ObstacleCount, s.cfg.World.Width, s.cfg.World.Height)

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			// 与 net/http 相同的退避策略：5ms 起步，上限 1s
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff *= 2
			}
			if backoff > time.Second {
				backoff = time.Second
			}
			s.log.Warnf("accept error: %v; retrying in %v", err, backoff)
			select {
			case <-time.After(backoff):
			case <-s.quit:
				return nil
			}
			continue
		}
		backoff = 0

		if !s.track() {
			_ = conn.Close()
			return nil
		}
		go func() {
			defer s.wg.Done()
			s.handle(newTCPTransport(conn, s.cfg.Net.MaxFrameSize, s.cfg.Net.WriteTimeout, s.cfg.Net.IdleTimeout))
		}()
	}
}

// track 运行中则登记一个连接处理协程
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return false
	}
	s.wg.Add(1)
	return true
}

// Shutdown 停止接入并关闭所有客户端连接，等待处理协程退出或 ctx 到期
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.stop.Do(func() {
		s.mu.Lock()
		s.running.Store(false)
		ln, admin := s.ln, s.admin
		s.mu.Unlock()
		close(s.quit)

		if ln != nil {
			err = multierr.Append(err, suppressClosed(ln.Close()))
		}
		if admin != nil {
			err = multierr.Append(err, suppressClosed(admin.Shutdown(ctx)))
		}
		// 关闭每个客户端套接字，阻塞中的读随之失败
		s.hub.CloseAll()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			s.log.Info("all connections closed")
		case <-ctx.Done():
			err = multierr.Append(err, fmt.Errorf("waiting for connections: %w", ctx.Err()))
		}
	})
	return err
}

func suppressClosed(err error) error {
	if err == nil || errors.Is(err, net.ErrClosed) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
