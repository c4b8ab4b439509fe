package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode 错误码类型
type ErrorCode int

const (
	// Kafka相关错误 1xxx
	ErrCodeKafkaTransport ErrorCode = 1001
	ErrCodeTopicCreate    ErrorCode = 1002
	ErrCodeTopicDelete    ErrorCode = 1003
	ErrCodeGroupDescribe  ErrorCode = 1004

	// API相关错误 2xxx
	ErrCodeConnectionNotFound ErrorCode = 2001
	ErrCodeBadRequest         ErrorCode = 2002

	// 配置相关错误 5xxx
	ErrCodeConfigLoad     ErrorCode = 5001
	ErrCodeConfigValidate ErrorCode = 5002
)

// KavkaError 自定义错误类型
type KavkaError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *KavkaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *KavkaError) Unwrap() error {
	return e.Err
}

// New 创建新错误
func New(code ErrorCode, message string) *KavkaError {
	return &KavkaError{
		Code:    code,
		Message: message,
	}
}

// Newf 创建带格式化信息的错误
func Newf(code ErrorCode, format string, args ...interface{}) *KavkaError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 包装错误
func Wrap(code ErrorCode, message string, err error) *KavkaError {
	return &KavkaError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf 返回错误链上第一个KavkaError的错误码，没有则返回0
func CodeOf(err error) ErrorCode {
	var ke *KavkaError
	if stderrors.As(err, &ke) {
		return ke.Code
	}
	return 0
}

// HasCode 判断错误链上是否包含指定错误码
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if ke, ok := err.(*KavkaError); ok && ke.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Cause 返回最底层的错误信息，用于原样展示传输层错误
// 最底层为KavkaError时只返回Message，不带错误码
func Cause(err error) string {
	if err == nil {
		return ""
	}
	for {
		next := stderrors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	if ke, ok := err.(*KavkaError); ok {
		return ke.Message
	}
	return err.Error()
}
