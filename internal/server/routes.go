package server

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/kavka/kavka/internal/api"
	"github.com/kavka/kavka/internal/broker"
	"github.com/kavka/kavka/internal/metrics"
	"github.com/kavka/kavka/pkg/errors"
	"github.com/kavka/kavka/pkg/logger"
	"github.com/kavka/kavka/pkg/pool"
)

const maxBodySize = 1 << 20

// handlerFunc 返回成功响应或错误，由wrap统一编码
type handlerFunc func(r *http.Request, ps httprouter.Params) (interface{}, error)

// NewRouter 注册API路由
func NewRouter(svc *api.Service) http.Handler {
	router := httprouter.New()

	router.GET("/api/configuration", wrap("configuration", func(r *http.Request, _ httprouter.Params) (interface{}, error) {
		return svc.GetConfiguration(), nil
	}))

	router.GET("/api/connections/:connection/info", wrap("instance_info", func(r *http.Request, ps httprouter.Params) (interface{}, error) {
		return svc.FetchInstanceInfo(r.Context(), ps.ByName("connection"))
	}))

	router.GET("/api/connections/:connection/topics", wrap("list_topics", func(r *http.Request, ps httprouter.Params) (interface{}, error) {
		return svc.ListTopics(r.Context(), ps.ByName("connection"))
	}))

	router.POST("/api/connections/:connection/topics", wrap("create_topic", func(r *http.Request, ps httprouter.Params) (interface{}, error) {
		var spec broker.TopicSpec
		if err := decodeBody(r, &spec); err != nil {
			return nil, err
		}
		return svc.CreateTopic(r.Context(), ps.ByName("connection"), spec)
	}))

	router.DELETE("/api/connections/:connection/topics", wrap("remove_topics", func(r *http.Request, ps httprouter.Params) (interface{}, error) {
		return svc.RemoveTopics(r.Context(), ps.ByName("connection"), r.URL.Query()["topic"])
	}))

	router.GET("/api/connections/:connection/topics/:topic/groups", wrap("list_groups", func(r *http.Request, ps httprouter.Params) (interface{}, error) {
		return svc.ListGroups(r.Context(), ps.ByName("connection"), ps.ByName("topic"))
	}))

	router.POST("/api/connections/:connection/topics/:topic/consume", wrap("start_consumption", func(r *http.Request, ps httprouter.Params) (interface{}, error) {
		return svc.StartConsumption(r.Context(), ps.ByName("connection"), ps.ByName("topic"))
	}))

	return router
}

// wrap 统一编码响应并记录请求耗时
func wrap(route string, h handlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		start := time.Now()

		resp, err := h(r, ps)
		status := http.StatusOK
		result := api.ResultSuccess
		if err != nil {
			status = statusFor(err)
			result = api.ResultError
			resp = api.NewErrorResponse(err)
			logger.Warn("api request failed",
				zap.String("route", route),
				zap.String("path", r.URL.Path),
				zap.Int("code", int(errors.CodeOf(err))),
				zap.Error(err),
			)
		}

		writeJSON(w, status, resp)
		metrics.APIRequestDuration.WithLabelValues(route, result).Observe(time.Since(start).Seconds())
	}
}

// statusFor 错误码映射到HTTP状态码，按错误链上出现的错误码依次判断
func statusFor(err error) int {
	switch {
	case errors.HasCode(err, errors.ErrCodeConnectionNotFound):
		return http.StatusNotFound
	case errors.HasCode(err, errors.ErrCodeBadRequest):
		return http.StatusBadRequest
	case errors.HasCode(err, errors.ErrCodeTopicCreate),
		errors.HasCode(err, errors.ErrCodeTopicDelete),
		errors.HasCode(err, errors.ErrCodeGroupDescribe):
		return http.StatusConflict
	case errors.HasCode(err, errors.ErrCodeKafkaTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON 在池化buffer中完成编码后再写出，编码失败时仍可返回500
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	if err := sonic.ConfigDefault.NewEncoder(buf).Encode(v); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
		http.Error(w, `{"result":"error","message":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// decodeBody 解析请求体
func decodeBody(r *http.Request, v interface{}) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return errors.Wrap(errors.ErrCodeBadRequest, "failed to read request body", err)
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		return errors.Wrap(errors.ErrCodeBadRequest, "invalid request body", err)
	}
	return nil
}
