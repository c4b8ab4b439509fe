package broker

import (
	"crypto/tls"
	"crypto/x509"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"

	"github.com/kavka/kavka/internal/config"
	"github.com/kavka/kavka/pkg/errors"
)

// ClientOptions 根据连接配置生成franz-go客户端公共选项
// 请求失败不重试，由调用方决定是否重新发起
func ClientOptions(conn config.ConnectionConfig, kcfg config.KafkaConfig) ([]kgo.Opt, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(conn.Servers...),
		kgo.ClientID(kcfg.ClientID),
		kgo.DialTimeout(kcfg.DialTimeout()),
		kgo.RequestRetries(0),
	}

	if conn.TLS != nil {
		tlsCfg, err := buildTLSConfig(conn.TLS)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeKafkaTransport, "invalid ssl config for connection "+conn.ID, err)
		}
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}

	if conn.SASL != nil {
		mechanism, err := buildSASLMechanism(conn.SASL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kgo.SASL(mechanism))
	}

	return opts, nil
}

// buildTLSConfig 构建TLS配置
func buildTLSConfig(cfg *config.TLSConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if cfg.RejectUnauthorized != nil && !*cfg.RejectUnauthorized {
		tlsCfg.InsecureSkipVerify = true
	}

	if cfg.CA != "" {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM([]byte(cfg.CA)) {
			return nil, errors.New(errors.ErrCodeKafkaTransport, "no certificates found in ssl.ca")
		}
		tlsCfg.RootCAs = pool
	}

	if cfg.Cert != "" {
		cert, err := tls.X509KeyPair([]byte(cfg.Cert), []byte(cfg.Key))
		if err != nil {
			return nil, err
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}

// buildSASLMechanism 构建SASL认证机制
func buildSASLMechanism(cfg *config.SASLConfig) (sasl.Mechanism, error) {
	switch strings.ToUpper(cfg.Mechanism) {
	case config.SASLPlain:
		return plain.Auth{User: cfg.User, Pass: cfg.Password}.AsMechanism(), nil
	case config.SASLScramSHA256:
		return scram.Auth{User: cfg.User, Pass: cfg.Password}.AsSha256Mechanism(), nil
	case config.SASLScramSHA512:
		return scram.Auth{User: cfg.User, Pass: cfg.Password}.AsSha512Mechanism(), nil
	default:
		return nil, errors.Newf(errors.ErrCodeKafkaTransport, "unsupported sasl mechanism %q", cfg.Mechanism)
	}
}
