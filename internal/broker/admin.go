package broker

import (
	"context"
	"sort"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
	"go.uber.org/zap"

	"github.com/kavka/kavka/internal/config"
	"github.com/kavka/kavka/internal/metrics"
	"github.com/kavka/kavka/pkg/errors"
	"github.com/kavka/kavka/pkg/logger"
	"github.com/kavka/kavka/pkg/utils"
)

const (
	offsetLatest   = -1
	offsetEarliest = -2

	isolationReadCommitted = 1

	consumerProtocolType = "consumer"
)

// Admin 基于kmsg原始请求的集群管理客户端
type Admin struct {
	client kmsg.Requestor
	close  func()
	cfg    config.KafkaConfig
}

// NewAdmin 为指定连接创建管理客户端，调用方负责Close
func NewAdmin(conn config.ConnectionConfig, kcfg config.KafkaConfig) (*Admin, error) {
	opts, err := ClientOptions(conn, kcfg)
	if err != nil {
		return nil, err
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeKafkaTransport, "failed to create kafka client", err)
	}

	logger.Debug("kafka admin client created",
		zap.String("connection", conn.ID),
		zap.Strings("servers", conn.Servers),
	)

	return &Admin{client: client, close: client.Close, cfg: kcfg}, nil
}

// NewAdminWithRequestor 使用已有的Requestor创建管理客户端
func NewAdminWithRequestor(client kmsg.Requestor, kcfg config.KafkaConfig) *Admin {
	return &Admin{client: client, cfg: kcfg}
}

// Close 关闭底层连接
func (a *Admin) Close() {
	if a.close != nil {
		a.close()
	}
}

// ListTopics 列出集群全部topic
func (a *Admin) ListTopics(ctx context.Context) (topics []string, err error) {
	defer observe("list_topics", &err)

	resp, err := a.metadata(ctx, nil)
	if err != nil {
		return nil, err
	}

	topics = make([]string, 0, len(resp.Topics))
	for _, t := range resp.Topics {
		if t.Topic == nil {
			continue
		}
		topics = append(topics, *t.Topic)
	}
	sort.Strings(topics)
	return topics, nil
}

// FetchInstanceInfo 获取全部topic的分区详情与集群信息
func (a *Admin) FetchInstanceInfo(ctx context.Context) (info *InstanceInfo, err error) {
	defer observe("instance_info", &err)

	resp, err := a.metadata(ctx, nil)
	if err != nil {
		return nil, err
	}

	info = &InstanceInfo{
		Topics: make(map[string]TopicDetails, len(resp.Topics)),
		ClusterInfo: ClusterInfo{
			Brokers:    make([]BrokerInfo, 0, len(resp.Brokers)),
			Controller: resp.ControllerID,
			ClusterID:  utils.StringOr(resp.ClusterID, ""),
		},
	}

	for _, b := range resp.Brokers {
		info.ClusterInfo.Brokers = append(info.ClusterInfo.Brokers, BrokerInfo{
			NodeID: b.NodeID,
			Host:   b.Host,
			Port:   b.Port,
		})
	}
	sort.Slice(info.ClusterInfo.Brokers, func(i, j int) bool {
		return info.ClusterInfo.Brokers[i].NodeID < info.ClusterInfo.Brokers[j].NodeID
	})

	for _, t := range resp.Topics {
		if t.Topic == nil {
			continue
		}
		details := TopicDetails{Partitions: make([]PartitionDetails, 0, len(t.Partitions))}
		for _, p := range t.Partitions {
			details.Partitions = append(details.Partitions, PartitionDetails{
				PartitionErrorCode: p.ErrorCode,
				PartitionID:        p.Partition,
				Leader:             p.Leader,
				Replicas:           p.Replicas,
				ISR:                p.ISR,
				OfflineReplicas:    p.OfflineReplicas,
			})
		}
		sort.Slice(details.Partitions, func(i, j int) bool {
			return details.Partitions[i].PartitionID < details.Partitions[j].PartitionID
		})
		info.Topics[*t.Topic] = details
	}

	return info, nil
}

// ListPartitionOffsets 获取topic每个分区的起始offset与高水位
func (a *Admin) ListPartitionOffsets(ctx context.Context, topic string) (offsets []PartitionOffsets, err error) {
	defer observe("list_offsets", &err)

	resp, err := a.metadata(ctx, []string{topic})
	if err != nil {
		return nil, err
	}

	var partitions []int32
	for _, t := range resp.Topics {
		if t.Topic == nil || *t.Topic != topic {
			continue
		}
		if err := kerr.ErrorForCode(t.ErrorCode); err != nil {
			return nil, errors.Wrap(errors.ErrCodeKafkaTransport, "failed to describe topic "+topic, err)
		}
		for _, p := range t.Partitions {
			partitions = append(partitions, p.Partition)
		}
	}
	if len(partitions) == 0 {
		return nil, nil
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	end, err := a.listOffsets(ctx, topic, partitions, offsetLatest)
	if err != nil {
		return nil, err
	}
	start, err := a.listOffsets(ctx, topic, partitions, offsetEarliest)
	if err != nil {
		return nil, err
	}

	offsets = make([]PartitionOffsets, 0, len(partitions))
	for _, p := range partitions {
		offsets = append(offsets, PartitionOffsets{
			Partition: p,
			Start:     start[p],
			End:       end[p],
		})
	}
	return offsets, nil
}

// CreateTopic 创建topic
func (a *Admin) CreateTopic(ctx context.Context, spec TopicSpec) (err error) {
	defer observe("create_topic", &err)

	if spec.Name == "" {
		return errors.New(errors.ErrCodeBadRequest, "topic name is required")
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout())
	defer cancel()

	req := kmsg.NewPtrCreateTopicsRequest()
	req.TimeoutMillis = int32(a.cfg.RequestTimeoutMs)
	rt := kmsg.NewCreateTopicsRequestTopic()
	rt.Topic = spec.Name
	rt.NumPartitions = utils.Int32Or(spec.Partitions, -1)
	rt.ReplicationFactor = -1
	if spec.ReplicationFactor != nil {
		rt.ReplicationFactor = *spec.ReplicationFactor
	}
	req.Topics = append(req.Topics, rt)

	resp, err := req.RequestWith(ctx, a.client)
	if err != nil {
		return errors.Wrap(errors.ErrCodeKafkaTransport, "failed to create topic "+spec.Name, err)
	}

	for _, t := range resp.Topics {
		if err := kerr.ErrorForCode(t.ErrorCode); err != nil {
			return errors.Wrap(errors.ErrCodeTopicCreate, brokerMessage("failed to create topic "+t.Topic, t.ErrorMessage), err)
		}
	}

	logger.Info("topic created",
		zap.String("topic", spec.Name),
		zap.Int32("partitions", rt.NumPartitions),
		zap.Int16("replication_factor", rt.ReplicationFactor),
	)
	return nil
}

// DeleteTopics 删除topic
func (a *Admin) DeleteTopics(ctx context.Context, topics []string) (err error) {
	defer observe("delete_topics", &err)

	if len(topics) == 0 {
		return errors.New(errors.ErrCodeBadRequest, "at least one topic is required")
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout())
	defer cancel()

	req := kmsg.NewPtrDeleteTopicsRequest()
	req.TimeoutMillis = int32(a.cfg.DeleteTopicsTimeoutMs)
	req.TopicNames = topics
	for _, name := range topics {
		rt := kmsg.NewDeleteTopicsRequestTopic()
		rt.Topic = kmsg.StringPtr(name)
		req.Topics = append(req.Topics, rt)
	}

	resp, err := req.RequestWith(ctx, a.client)
	if err != nil {
		return errors.Wrap(errors.ErrCodeKafkaTransport, "failed to delete topics", err)
	}

	for _, t := range resp.Topics {
		if err := kerr.ErrorForCode(t.ErrorCode); err != nil {
			name := utils.StringOr(t.Topic, "")
			return errors.Wrap(errors.ErrCodeTopicDelete, brokerMessage("failed to delete topic "+name, t.ErrorMessage), err)
		}
	}

	logger.Info("topics deleted", zap.Strings("topics", topics))
	return nil
}

// ListGroups 列出订阅了指定topic的消费组
func (a *Admin) ListGroups(ctx context.Context, topic string) (groups []GroupDescription, err error) {
	defer observe("list_groups", &err)

	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout())
	defer cancel()

	listResp, err := kmsg.NewPtrListGroupsRequest().RequestWith(ctx, a.client)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeKafkaTransport, "failed to list groups", err)
	}
	if err := kerr.ErrorForCode(listResp.ErrorCode); err != nil {
		return nil, errors.Wrap(errors.ErrCodeGroupDescribe, "failed to list groups", err)
	}

	groups = []GroupDescription{}
	if len(listResp.Groups) == 0 {
		return groups, nil
	}

	describe := kmsg.NewPtrDescribeGroupsRequest()
	for _, g := range listResp.Groups {
		describe.Groups = append(describe.Groups, g.Group)
	}

	descResp, err := describe.RequestWith(ctx, a.client)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeKafkaTransport, "failed to describe groups", err)
	}

	for _, g := range descResp.Groups {
		if err := kerr.ErrorForCode(g.ErrorCode); err != nil {
			return nil, errors.Wrap(errors.ErrCodeGroupDescribe, "failed to describe group "+g.Group, err)
		}
		if !subscribesTo(g, topic) {
			continue
		}
		desc := GroupDescription{
			GroupID:      g.Group,
			Protocol:     g.Protocol,
			ProtocolType: g.ProtocolType,
			State:        g.State,
			Members:      make([]GroupMember, 0, len(g.Members)),
		}
		for _, m := range g.Members {
			desc.Members = append(desc.Members, GroupMember{ClientID: m.ClientID, Host: m.ClientHost})
		}
		groups = append(groups, desc)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].GroupID < groups[j].GroupID })
	return groups, nil
}

// subscribesTo 判断消费组是否有成员订阅了topic
func subscribesTo(g kmsg.DescribeGroupsResponseGroup, topic string) bool {
	if g.ProtocolType != consumerProtocolType {
		return false
	}
	for _, m := range g.Members {
		var meta kmsg.ConsumerMemberMetadata
		if err := meta.ReadFrom(m.ProtocolMetadata); err != nil {
			logger.Debug("skip undecodable member metadata",
				zap.String("group", g.Group),
				zap.String("member", m.MemberID),
				zap.Error(err),
			)
			continue
		}
		for _, t := range meta.Topics {
			if t == topic {
				return true
			}
		}
	}
	return false
}

// metadata 请求元数据，topics为nil时返回全部topic
func (a *Admin) metadata(ctx context.Context, topics []string) (*kmsg.MetadataResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout())
	defer cancel()

	req := kmsg.NewPtrMetadataRequest()
	req.AllowAutoTopicCreation = false
	for _, name := range topics {
		rt := kmsg.NewMetadataRequestTopic()
		rt.Topic = kmsg.StringPtr(name)
		req.Topics = append(req.Topics, rt)
	}

	resp, err := req.RequestWith(ctx, a.client)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeKafkaTransport, "failed to fetch metadata", err)
	}
	return resp, nil
}

// listOffsets 按时间戳查询分区offset，-1为最新，-2为最早
func (a *Admin) listOffsets(ctx context.Context, topic string, partitions []int32, timestamp int64) (map[int32]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout())
	defer cancel()

	req := kmsg.NewPtrListOffsetsRequest()
	req.ReplicaID = -1
	req.IsolationLevel = isolationReadCommitted
	rt := kmsg.NewListOffsetsRequestTopic()
	rt.Topic = topic
	for _, p := range partitions {
		rp := kmsg.NewListOffsetsRequestTopicPartition()
		rp.Partition = p
		rp.Timestamp = timestamp
		rt.Partitions = append(rt.Partitions, rp)
	}
	req.Topics = append(req.Topics, rt)

	resp, err := req.RequestWith(ctx, a.client)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeKafkaTransport, "failed to list offsets of topic "+topic, err)
	}

	offsets := make(map[int32]int64, len(partitions))
	for _, t := range resp.Topics {
		if t.Topic != topic {
			continue
		}
		for _, p := range t.Partitions {
			if err := kerr.ErrorForCode(p.ErrorCode); err != nil {
				return nil, errors.Wrap(errors.ErrCodeKafkaTransport, "failed to list offsets of topic "+topic, err)
			}
			offsets[p.Partition] = p.Offset
		}
	}

	for _, p := range partitions {
		if _, ok := offsets[p]; !ok {
			return nil, errors.Newf(errors.ErrCodeKafkaTransport, "no offset returned for %s[%d]", topic, p)
		}
	}
	return offsets, nil
}

// brokerMessage 拼接broker返回的错误描述
func brokerMessage(msg string, detail *string) string {
	if detail == nil || *detail == "" {
		return msg
	}
	return msg + " (" + *detail + ")"
}

// observe 记录admin请求指标
func observe(op string, err *error) {
	status := "success"
	if *err != nil {
		status = "error"
	}
	metrics.AdminRequests.WithLabelValues(op, status).Inc()
}
