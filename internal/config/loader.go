package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/kavka/kavka/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath 指定配置文件路径的环境变量
const EnvConfigPath = "KAVKA_CONFIG"

// envSASLPasswordPrefix SASL密码环境变量前缀，后接大写的连接ID
const envSASLPasswordPrefix = "KAVKA_SASL_PASSWORD_"

// DefaultPath 返回默认配置文件路径 ~/.kavka/config.yml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".kavka", "config.yml")
	}
	return filepath.Join(home, ".kavka", "config.yml")
}

// ResolvePath 按 参数 > 环境变量 > 默认路径 的顺序确定配置文件
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return DefaultPath()
}

// Load 从文件加载配置
func Load(path string) (*Config, error) {
	path = ResolvePath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigLoad, "failed to read config file", err)
	}

	return Parse(data)
}

// Parse 解析YAML配置并校验
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigLoad, "failed to parse config file", err)
	}

	// 从环境变量覆盖敏感信息
	for i := range cfg.Connections {
		conn := &cfg.Connections[i]
		if conn.SASL == nil {
			continue
		}
		if password := os.Getenv(passwordEnvName(conn.ID)); password != "" {
			conn.SASL.Password = password
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func passwordEnvName(id string) string {
	name := strings.ToUpper(id)
	name = strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(name)
	return envSASLPasswordPrefix + name
}
