package broker

// PartitionOffsets 分区的起始offset与高水位
type PartitionOffsets struct {
	Partition int32
	// Start 最早保留的offset
	Start int64
	// End 高水位，已提交日志的开区间上界
	End int64
}

// PartitionDetails 分区元数据
type PartitionDetails struct {
	PartitionErrorCode int16   `json:"partitionErrorCode"`
	PartitionID        int32   `json:"partitionId"`
	Leader             int32   `json:"leader"`
	Replicas           []int32 `json:"replicas"`
	ISR                []int32 `json:"isr"`
	OfflineReplicas    []int32 `json:"offlineReplicas,omitempty"`
}

// TopicDetails topic元数据
type TopicDetails struct {
	Partitions []PartitionDetails `json:"partitions"`
}

// BrokerInfo broker节点信息
type BrokerInfo struct {
	NodeID int32  `json:"nodeId"`
	Host   string `json:"host"`
	Port   int32  `json:"port"`
}

// ClusterInfo 集群信息
type ClusterInfo struct {
	Brokers    []BrokerInfo `json:"brokers"`
	Controller int32        `json:"controller"`
	ClusterID  string       `json:"clusterId"`
}

// InstanceInfo 集群全部topic与集群信息
type InstanceInfo struct {
	Topics      map[string]TopicDetails `json:"topics"`
	ClusterInfo ClusterInfo             `json:"clusterInfo"`
}

// TopicSpec 创建topic参数，nil表示使用broker默认值
type TopicSpec struct {
	Name              string `json:"name"`
	Partitions        *int32 `json:"partitions,omitempty"`
	ReplicationFactor *int16 `json:"replicationFactor,omitempty"`
}

// GroupMember 消费组成员
type GroupMember struct {
	ClientID string `json:"clientId"`
	Host     string `json:"host"`
}

// GroupDescription 消费组描述
type GroupDescription struct {
	GroupID      string        `json:"groupId"`
	Protocol     string        `json:"protocol"`
	ProtocolType string        `json:"protocolType"`
	State        string        `json:"state"`
	Members      []GroupMember `json:"members"`
}
