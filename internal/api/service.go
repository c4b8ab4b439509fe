package api

import (
	"context"

	"go.uber.org/zap"

	"github.com/kavka/kavka/internal/broker"
	"github.com/kavka/kavka/internal/config"
	"github.com/kavka/kavka/internal/consumer"
	"github.com/kavka/kavka/internal/snapshot"
	"github.com/kavka/kavka/pkg/errors"
	"github.com/kavka/kavka/pkg/logger"
)

// AdminClient 集群管理能力
type AdminClient interface {
	snapshot.OffsetLister
	ListTopics(ctx context.Context) ([]string, error)
	FetchInstanceInfo(ctx context.Context) (*broker.InstanceInfo, error)
	CreateTopic(ctx context.Context, spec broker.TopicSpec) error
	DeleteTopics(ctx context.Context, topics []string) error
	ListGroups(ctx context.Context, topic string) ([]broker.GroupDescription, error)
	Close()
}

// Dialer 为连接创建Kafka客户端
type Dialer interface {
	Admin(conn config.ConnectionConfig) (AdminClient, error)
	Subscriber(conn config.ConnectionConfig) snapshot.Subscriber
}

// kafkaDialer 基于franz-go的Dialer
type kafkaDialer struct {
	kafka    config.KafkaConfig
	snapshot config.SnapshotConfig
}

func (d kafkaDialer) Admin(conn config.ConnectionConfig) (AdminClient, error) {
	admin, err := broker.NewAdmin(conn, d.kafka)
	if err != nil {
		return nil, err
	}
	return admin, nil
}

func (d kafkaDialer) Subscriber(conn config.ConnectionConfig) snapshot.Subscriber {
	return consumer.NewFactory(conn, d.kafka, d.snapshot)
}

// Service 面向展示层的操作集合，每次调用独立建立并释放连接
type Service struct {
	cfg    *config.Config
	dialer Dialer
}

// NewService 创建使用franz-go的服务
func NewService(cfg *config.Config) *Service {
	return NewServiceWithDialer(cfg, kafkaDialer{kafka: cfg.Kafka, snapshot: cfg.Snapshot})
}

// NewServiceWithDialer 使用自定义Dialer创建服务
func NewServiceWithDialer(cfg *config.Config, dialer Dialer) *Service {
	return &Service{cfg: cfg, dialer: dialer}
}

// GetConfiguration 返回连接配置
func (s *Service) GetConfiguration() ConfigurationResponse {
	connections := s.cfg.Connections
	if connections == nil {
		connections = []config.ConnectionConfig{}
	}
	return ConfigurationResponse{Connections: connections}
}

// FetchInstanceInfo 获取全部topic详情与集群信息
func (s *Service) FetchInstanceInfo(ctx context.Context, connectionID string) (*InstanceInfoResponse, error) {
	logger.Info("fetching instance information", zap.String("connection", connectionID))

	admin, err := s.admin(connectionID)
	if err != nil {
		return nil, err
	}
	defer admin.Close()

	info, err := admin.FetchInstanceInfo(ctx)
	if err != nil {
		return nil, err
	}
	return &InstanceInfoResponse{Result: ResultSuccess, Topics: info.Topics, ClusterInfo: info.ClusterInfo}, nil
}

// ListTopics 列出topic
func (s *Service) ListTopics(ctx context.Context, connectionID string) (*ListTopicsResponse, error) {
	logger.Info("listing topics", zap.String("connection", connectionID))

	admin, err := s.admin(connectionID)
	if err != nil {
		return nil, err
	}
	defer admin.Close()

	topics, err := admin.ListTopics(ctx)
	if err != nil {
		return nil, err
	}
	return &ListTopicsResponse{Result: ResultSuccess, Topics: topics}, nil
}

// StartConsumption 对topic做一次有界快照消费
func (s *Service) StartConsumption(ctx context.Context, connectionID, topic string) (*StartConsumptionResponse, error) {
	logger.Info("starting consumption",
		zap.String("connection", connectionID),
		zap.String("topic", topic),
	)

	if topic == "" {
		return nil, errors.New(errors.ErrCodeBadRequest, "topic is required")
	}

	conn, err := s.cfg.Connection(connectionID)
	if err != nil {
		return nil, err
	}
	admin, err := s.dialer.Admin(conn)
	if err != nil {
		return nil, err
	}

	snapshotter := snapshot.NewSnapshotter(&releasingLister{admin: admin}, s.dialer.Subscriber(conn), s.cfg.Snapshot)
	snap, err := snapshotter.ConsumeSnapshot(ctx, topic)
	if err != nil {
		return nil, err
	}

	return &StartConsumptionResponse{
		Result:   ResultSuccess,
		Outcome:  string(snap.Outcome),
		Messages: toMessageViews(snap.Messages),
	}, nil
}

// CreateTopic 创建topic
func (s *Service) CreateTopic(ctx context.Context, connectionID string, spec broker.TopicSpec) (*SuccessResponse, error) {
	logger.Warn("creating new topic",
		zap.String("connection", connectionID),
		zap.String("topic", spec.Name),
	)

	admin, err := s.admin(connectionID)
	if err != nil {
		return nil, err
	}
	defer admin.Close()

	if err := admin.CreateTopic(ctx, spec); err != nil {
		return nil, err
	}
	return &SuccessResponse{Result: ResultSuccess}, nil
}

// RemoveTopics 删除topic
func (s *Service) RemoveTopics(ctx context.Context, connectionID string, topics []string) (*SuccessResponse, error) {
	logger.Warn("removing topics",
		zap.String("connection", connectionID),
		zap.Strings("topics", topics),
	)

	admin, err := s.admin(connectionID)
	if err != nil {
		return nil, err
	}
	defer admin.Close()

	if err := admin.DeleteTopics(ctx, topics); err != nil {
		return nil, err
	}
	return &SuccessResponse{Result: ResultSuccess}, nil
}

// ListGroups 列出订阅了topic的消费组
func (s *Service) ListGroups(ctx context.Context, connectionID, topic string) (*ListGroupsResponse, error) {
	logger.Info("listing consumer groups",
		zap.String("connection", connectionID),
		zap.String("topic", topic),
	)

	admin, err := s.admin(connectionID)
	if err != nil {
		return nil, err
	}
	defer admin.Close()

	groups, err := admin.ListGroups(ctx, topic)
	if err != nil {
		return nil, err
	}
	return &ListGroupsResponse{Result: ResultSuccess, Groups: groups}, nil
}

func (s *Service) admin(connectionID string) (AdminClient, error) {
	conn, err := s.cfg.Connection(connectionID)
	if err != nil {
		return nil, err
	}
	return s.dialer.Admin(conn)
}

// releasingLister 查询完offset后立即释放admin连接
type releasingLister struct {
	admin AdminClient
}

func (r *releasingLister) ListPartitionOffsets(ctx context.Context, topic string) ([]broker.PartitionOffsets, error) {
	defer r.admin.Close()
	return r.admin.ListPartitionOffsets(ctx, topic)
}
