package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesToString(t *testing.T) {
	require.Nil(t, BytesToString(nil))

	empty := BytesToString([]byte{})
	require.NotNil(t, empty)
	require.Equal(t, "", *empty)

	s := BytesToString([]byte("héllo"))
	require.Equal(t, "héllo", *s)

	bad := BytesToString([]byte{'a', 0xff, 'b'})
	require.Equal(t, "a�b", *bad)
}

func TestPointerDefaults(t *testing.T) {
	v := int32(3)
	require.Equal(t, int32(3), Int32Or(&v, -1))
	require.Equal(t, int32(-1), Int32Or(nil, -1))

	name := "orders"
	require.Equal(t, "orders", StringOr(&name, ""))
	require.Equal(t, "", StringOr(nil, ""))
}
