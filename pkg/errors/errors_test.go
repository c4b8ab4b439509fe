package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKavkaErrorFormat(t *testing.T) {
	err := New(ErrCodeConfigValidate, "connections is required")
	require.Equal(t, "[5002] connections is required", err.Error())

	cause := stderrors.New("dial tcp 127.0.0.1:9092: connection refused")
	wrapped := Wrap(ErrCodeKafkaTransport, "failed to fetch topic offsets", cause)
	require.Equal(t, "[1001] failed to fetch topic offsets: dial tcp 127.0.0.1:9092: connection refused", wrapped.Error())
	require.ErrorIs(t, wrapped, cause)
}

func TestCodeOf(t *testing.T) {
	require.Equal(t, ErrorCode(0), CodeOf(nil))
	require.Equal(t, ErrorCode(0), CodeOf(stderrors.New("plain")))

	inner := New(ErrCodeConnectionNotFound, "connection 'x' not found")
	outer := fmt.Errorf("handler: %w", inner)
	require.Equal(t, ErrCodeConnectionNotFound, CodeOf(outer))
}

func TestHasCode(t *testing.T) {
	inner := New(ErrCodeKafkaTransport, "broker unreachable")
	outer := Wrap(ErrCodeTopicCreate, "failed to create topic", inner)

	require.True(t, HasCode(outer, ErrCodeTopicCreate))
	require.True(t, HasCode(outer, ErrCodeKafkaTransport))
	require.False(t, HasCode(outer, ErrCodeConfigLoad))
	require.False(t, HasCode(nil, ErrCodeConfigLoad))
}

func TestCause(t *testing.T) {
	require.Equal(t, "", Cause(nil))

	cause := stderrors.New("SASL authentication failed")
	err := Wrap(ErrCodeKafkaTransport, "failed to subscribe", Wrap(ErrCodeKafkaTransport, "consumer error", cause))
	require.Equal(t, "SASL authentication failed", Cause(err))

	require.Equal(t, "bad", Cause(New(ErrCodeBadRequest, "bad")))

	inner := Newf(ErrCodeKafkaTransport, "unsupported sasl mechanism %q", "GSSAPI")
	require.Equal(t, `unsupported sasl mechanism "GSSAPI"`, Cause(Wrap(ErrCodeKafkaTransport, "failed to subscribe", inner)))
}
