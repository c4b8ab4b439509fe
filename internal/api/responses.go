package api

import (
	"github.com/kavka/kavka/internal/broker"
	"github.com/kavka/kavka/internal/config"
	"github.com/kavka/kavka/internal/consumer"
	"github.com/kavka/kavka/pkg/errors"
	"github.com/kavka/kavka/pkg/utils"
)

// 响应结果
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// ErrorResponse 错误响应
type ErrorResponse struct {
	Result  string `json:"result"`
	Message string `json:"message"`
}

// SuccessResponse 无数据的成功响应
type SuccessResponse struct {
	Result string `json:"result"`
}

// ConfigurationResponse 连接配置，敏感字段不输出
type ConfigurationResponse struct {
	Connections []config.ConnectionConfig `json:"connections"`
}

// ListTopicsResponse topic列表
type ListTopicsResponse struct {
	Result string   `json:"result"`
	Topics []string `json:"topics"`
}

// InstanceInfoResponse 集群信息
type InstanceInfoResponse struct {
	Result      string                         `json:"result"`
	Topics      map[string]broker.TopicDetails `json:"topics"`
	ClusterInfo broker.ClusterInfo             `json:"clusterInfo"`
}

// ListGroupsResponse 订阅了topic的消费组
type ListGroupsResponse struct {
	Result string                    `json:"result"`
	Groups []broker.GroupDescription `json:"groups"`
}

// MessageView 展示层消息，key/value为UTF-8字符串，不存在时为null
type MessageView struct {
	Offset    int64   `json:"offset"`
	Partition int32   `json:"partition"`
	Key       *string `json:"key"`
	Value     *string `json:"value"`
}

// StartConsumptionResponse 快照消费结果
type StartConsumptionResponse struct {
	Result   string        `json:"result"`
	Outcome  string        `json:"outcome,omitempty"`
	Messages []MessageView `json:"messages"`
}

// NewErrorResponse 将错误转换为错误响应
func NewErrorResponse(err error) ErrorResponse {
	return ErrorResponse{Result: ResultError, Message: ErrorMessage(err)}
}

// ErrorMessage 返回展示给用户的错误信息，传输层错误原样透出
func ErrorMessage(err error) string {
	return errors.Cause(err)
}

// toMessageViews 转换为展示层消息
func toMessageViews(messages []consumer.Message) []MessageView {
	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, MessageView{
			Offset:    m.Offset,
			Partition: m.Partition,
			Key:       utils.BytesToString(m.Key),
			Value:     utils.BytesToString(m.Value),
		})
	}
	return views
}
