package config

import (
	"time"

	"github.com/kavka/kavka/pkg/logger"
)

// 快照完成判定模式
const (
	// CompletionPartition 每个有数据的分区都消费到各自的高水位-1才算完成
	CompletionPartition = "partition"
	// CompletionGlobal 任意消息的offset等于全局最大高水位-1即完成
	CompletionGlobal = "global"
)

// SASL机制
const (
	SASLPlain       = "PLAIN"
	SASLScramSHA256 = "SCRAM-SHA-256"
	SASLScramSHA512 = "SCRAM-SHA-512"
)

// Config 全局配置
type Config struct {
	Connections []ConnectionConfig `yaml:"connections"`
	Kafka       KafkaConfig        `yaml:"kafka"`
	Snapshot    SnapshotConfig     `yaml:"snapshot"`
	Server      ServerConfig       `yaml:"server"`
	Log         logger.Config      `yaml:"log"`
	Metrics     MetricsConfig      `yaml:"metrics"`
	Pprof       PprofConfig        `yaml:"pprof"`
}

// ConnectionConfig 单个Kafka集群连接配置
type ConnectionConfig struct {
	ID      string      `yaml:"id" json:"id"`
	Name    string      `yaml:"name" json:"name"`
	Servers []string    `yaml:"servers" json:"servers"`
	TLS     *TLSConfig  `yaml:"ssl,omitempty" json:"ssl,omitempty"`
	SASL    *SASLConfig `yaml:"sasl,omitempty" json:"sasl,omitempty"`
}

// TLSConfig TLS配置，证书内容为PEM文本
type TLSConfig struct {
	CA                 string `yaml:"ca" json:"-"`
	Cert               string `yaml:"cert" json:"-"`
	Key                string `yaml:"key" json:"-"`
	RejectUnauthorized *bool  `yaml:"reject_unauthorized" json:"rejectUnauthorized,omitempty"`
}

// SASLConfig SASL认证配置
type SASLConfig struct {
	Mechanism string `yaml:"mechanism" json:"mechanism"`
	User      string `yaml:"user" json:"user"`
	Password  string `yaml:"password" json:"-"`
}

// KafkaConfig Kafka客户端公共配置
type KafkaConfig struct {
	ClientID              string `yaml:"client_id"`
	DialTimeoutMs         int    `yaml:"dial_timeout_ms"`
	RequestTimeoutMs      int    `yaml:"request_timeout_ms"`
	DeleteTopicsTimeoutMs int    `yaml:"delete_topics_timeout_ms"`
}

// SnapshotConfig 有界快照消费配置
type SnapshotConfig struct {
	IdleTimeoutMs int    `yaml:"idle_timeout_ms"`
	Completion    string `yaml:"completion"` // partition, global
	FetchMaxBytes int    `yaml:"fetch_max_bytes"`
}

// ServerConfig API服务配置
type ServerConfig struct {
	Port int `yaml:"port"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// PprofConfig pprof配置
type PprofConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// IdleTimeout 返回快照空闲超时
func (c SnapshotConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMs) * time.Millisecond
}

// DialTimeout 返回建连超时
func (c KafkaConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMs) * time.Millisecond
}

// RequestTimeout 返回单次admin请求超时
func (c KafkaConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Kafka: KafkaConfig{
			ClientID:              "kavka",
			DialTimeoutMs:         10000,
			RequestTimeoutMs:      30000,
			DeleteTopicsTimeoutMs: 10000,
		},
		Snapshot: SnapshotConfig{
			IdleTimeoutMs: 5000,
			Completion:    CompletionPartition,
			FetchMaxBytes: 52428800, // 50MB
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Log: logger.Config{
			Level:          "info",
			Output:         "stdout",
			Format:         "json",
			EnableSampling: false,
			MaxSize:        100,
			MaxAge:         7,
			MaxBackups:     10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Pprof: PprofConfig{
			Enabled: false,
			Port:    6060,
		},
	}
}
