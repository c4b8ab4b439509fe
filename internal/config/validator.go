package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/kavka/kavka/pkg/errors"
)

// Validate 验证配置
func Validate(cfg *Config) error {
	// 验证连接配置
	seen := make(map[string]struct{}, len(cfg.Connections))
	for i, conn := range cfg.Connections {
		if conn.ID == "" {
			return errors.Newf(errors.ErrCodeConfigValidate, "connections[%d].id is required", i)
		}
		if _, ok := seen[conn.ID]; ok {
			return errors.Newf(errors.ErrCodeConfigValidate, "connections[%d].id %q is duplicated", i, conn.ID)
		}
		seen[conn.ID] = struct{}{}

		if len(conn.Servers) == 0 {
			return errors.Newf(errors.ErrCodeConfigValidate, "connections[%d].servers is required", i)
		}
		if conn.TLS != nil && (conn.TLS.Cert == "") != (conn.TLS.Key == "") {
			return errors.Newf(errors.ErrCodeConfigValidate, "connections[%d].ssl cert and key must be set together", i)
		}
		if conn.SASL != nil {
			switch strings.ToUpper(conn.SASL.Mechanism) {
			case SASLPlain, SASLScramSHA256, SASLScramSHA512:
			default:
				return errors.Newf(errors.ErrCodeConfigValidate, "connections[%d].sasl.mechanism %q is not supported", i, conn.SASL.Mechanism)
			}
			if conn.SASL.User == "" {
				return errors.Newf(errors.ErrCodeConfigValidate, "connections[%d].sasl.user is required", i)
			}
		}
	}

	// 验证Kafka配置
	if cfg.Kafka.ClientID == "" {
		return errors.New(errors.ErrCodeConfigValidate, "kafka.client_id is required")
	}
	if cfg.Kafka.DialTimeoutMs <= 0 {
		return errors.New(errors.ErrCodeConfigValidate, "kafka.dial_timeout_ms must be positive")
	}
	if cfg.Kafka.RequestTimeoutMs <= 0 {
		return errors.New(errors.ErrCodeConfigValidate, "kafka.request_timeout_ms must be positive")
	}
	if cfg.Kafka.DeleteTopicsTimeoutMs <= 0 {
		return errors.New(errors.ErrCodeConfigValidate, "kafka.delete_topics_timeout_ms must be positive")
	}

	// 验证快照配置
	if cfg.Snapshot.IdleTimeoutMs <= 0 {
		return errors.New(errors.ErrCodeConfigValidate, "snapshot.idle_timeout_ms must be positive")
	}
	if cfg.Snapshot.Completion != CompletionPartition && cfg.Snapshot.Completion != CompletionGlobal {
		return errors.New(errors.ErrCodeConfigValidate, "snapshot.completion must be 'partition' or 'global'")
	}
	if cfg.Snapshot.FetchMaxBytes <= 0 || cfg.Snapshot.FetchMaxBytes > math.MaxInt32 {
		return errors.Newf(errors.ErrCodeConfigValidate, "snapshot.fetch_max_bytes must be between 1 and %d", math.MaxInt32)
	}

	if cfg.Server.Port <= 0 {
		return errors.New(errors.ErrCodeConfigValidate, "server.port must be positive")
	}

	// 验证监控配置
	if cfg.Metrics.Enabled && cfg.Metrics.Port <= 0 {
		return errors.New(errors.ErrCodeConfigValidate, "metrics.port must be positive when enabled")
	}

	// 验证pprof配置
	if cfg.Pprof.Enabled && cfg.Pprof.Port <= 0 {
		return errors.New(errors.ErrCodeConfigValidate, "pprof.port must be positive when enabled")
	}

	// 验证端口冲突
	ports := map[string]int{"server.port": cfg.Server.Port}
	if cfg.Metrics.Enabled {
		ports["metrics.port"] = cfg.Metrics.Port
	}
	if cfg.Pprof.Enabled {
		ports["pprof.port"] = cfg.Pprof.Port
	}
	byPort := make(map[int]string, len(ports))
	for _, name := range []string{"server.port", "metrics.port", "pprof.port"} {
		port, ok := ports[name]
		if !ok {
			continue
		}
		if other, clash := byPort[port]; clash {
			return errors.Newf(errors.ErrCodeConfigValidate, "%s and %s cannot be the same", other, name)
		}
		byPort[port] = name
	}

	return nil
}

// Connection 按ID查找连接配置
func (c *Config) Connection(id string) (ConnectionConfig, error) {
	for _, conn := range c.Connections {
		if conn.ID == id {
			return conn, nil
		}
	}
	return ConnectionConfig{}, errors.Newf(errors.ErrCodeConnectionNotFound, "connection '%s' not found", id)
}

// String 返回配置的字符串表示（隐藏敏感信息）
func (c *Config) String() string {
	ids := make([]string, 0, len(c.Connections))
	for _, conn := range c.Connections {
		ids = append(ids, conn.ID)
	}
	return fmt.Sprintf("Config{Connections: %v, Snapshot: {idle=%dms completion=%s}, Server: %d}",
		ids,
		c.Snapshot.IdleTimeoutMs,
		c.Snapshot.Completion,
		c.Server.Port,
	)
}
