package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀，例如 SPACEMINER_PORT=6000
const EnvPrefix = "SPACEMINER_"

// Config 服务进程的全部配置
type Config struct {
	Host              string        `yaml:"host" json:"host"`
	Port              int           `yaml:"port" json:"port"`
	AdminAddr         string        `yaml:"admin_addr" json:"adminAddr"`
	BroadcastInterval time.Duration `yaml:"broadcast_interval" json:"broadcastInterval"`

	World struct {
		Width         float64 `yaml:"width" json:"width"`
		Height        float64 `yaml:"height" json:"height"`
		ObstacleCount int     `yaml:"obstacle_count" json:"obstacleCount"`
	} `yaml:"world" json:"world"`

	Net struct {
		MaxFrameSize  int           `yaml:"max_frame_size" json:"maxFrameSize"`
		SendQueueSize int           `yaml:"send_queue_size" json:"sendQueueSize"`
		WriteTimeout  time.Duration `yaml:"write_timeout" json:"writeTimeout"`
		IdleTimeout   time.Duration `yaml:"idle_timeout" json:"idleTimeout"`
		ActionRate    float64       `yaml:"action_rate" json:"actionRate"` // 每秒动作数，0 表示不限
		ActionBurst   int           `yaml:"action_burst" json:"actionBurst"`
	} `yaml:"net" json:"net"`

	Log LogConfig `yaml:"log" json:"log"`
}

type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"maxSizeMB"`
	MaxBackups int    `yaml:"max_backups" json:"maxBackups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"maxAgeDays"`
}

// Default 默认值：世界尺寸 600*4，障碍物密度 1e-5
func Default() *Config {
	c := &Config{
		Host:      "localhost",
		Port:      5555,
		AdminAddr: "localhost:8080",
	}
	c.World.Width = 2400
	c.World.Height = 2400
	c.World.ObstacleCount = int(c.World.Width * c.World.Height * 0.00001)
	c.Net.MaxFrameSize = 64 << 10
	c.Net.SendQueueSize = 64
	c.Net.WriteTimeout = 5 * time.Second
	c.Net.ActionBurst = 1
	c.Log = LogConfig{
		Level:      "info",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 7,
	}
	return c
}

// Load 默认值 -> YAML 文件（path 为空则跳过）-> 环境变量
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadDotEnv 把 .env 文件载入进程环境；文件不存在不算错误
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ApplyEnv 用 SPACEMINER_* 环境变量覆盖配置
func (c *Config) ApplyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}
	flt := func(key string, dst *float64) error {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
		}
		*dst = f
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
		return nil
	}

	str("HOST", &c.Host)
	str("ADMIN_ADDR", &c.AdminAddr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)
	return multierr.Combine(
		num("PORT", &c.Port),
		flt("WIDTH", &c.World.Width),
		flt("HEIGHT", &c.World.Height),
		num("OBSTACLES", &c.World.ObstacleCount),
		num("MAX_FRAME_SIZE", &c.Net.MaxFrameSize),
		num("SEND_QUEUE", &c.Net.SendQueueSize),
		dur("WRITE_TIMEOUT", &c.Net.WriteTimeout),
		dur("IDLE_TIMEOUT", &c.Net.IdleTimeout),
		flt("ACTION_RATE", &c.Net.ActionRate),
		num("ACTION_BURST", &c.Net.ActionBurst),
		dur("BROADCAST_INTERVAL", &c.BroadcastInterval),
		num("LOG_MAX_SIZE_MB", &c.Log.MaxSizeMB),
		num("LOG_MAX_BACKUPS", &c.Log.MaxBackups),
		num("LOG_MAX_AGE_DAYS", &c.Log.MaxAgeDays),
	)
}

// Validate 校验取值范围
func (c *Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("port out of range: %d", c.Port)
	case c.World.Width <= 0 || c.World.Height <= 0:
		return fmt.Errorf("world size must be positive: %vx%v", c.World.Width, c.World.Height)
	case c.World.ObstacleCount < 0:
		return fmt.Errorf("obstacle_count must be >= 0: %d", c.World.ObstacleCount)
	case c.Net.MaxFrameSize <= 0:
		return fmt.Errorf("max_frame_size must be positive: %d", c.Net.MaxFrameSize)
	case c.Net.SendQueueSize < 2:
		// 欢迎消息 + 初始状态至少需要两个槽位
		return fmt.Errorf("send_queue_size must be >= 2: %d", c.Net.SendQueueSize)
	case c.Net.WriteTimeout < 0 || c.Net.IdleTimeout < 0 || c.BroadcastInterval < 0:
		return errors.New("timeouts must not be negative")
	case c.Net.ActionRate < 0:
		return fmt.Errorf("action_rate must be >= 0: %v", c.Net.ActionRate)
	case c.Net.ActionRate > 0 && c.Net.ActionBurst < 1:
		return fmt.Errorf("action_burst must be >= 1 when action_rate is set: %d", c.Net.ActionBurst)
	}
	return nil
}

// Addr 游戏 TCP 监听地址
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
