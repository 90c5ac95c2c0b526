package dao

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	t.Parallel()

	j, err := NewJSON(map[string]string{"orderId": "ORD-1"})
	require.NoError(t, err)

	v, err := j.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"orderId":"ORD-1"}`, v)

	var scanned JSON
	require.NoError(t, scanned.Scan([]byte(`{"orderId":"ORD-2"}`)))
	var m map[string]string
	require.NoError(t, scanned.Decode(&m))
	assert.Equal(t, "ORD-2", m["orderId"])

	var empty JSON
	v, err = empty.Value()
	require.NoError(t, err)
	assert.Equal(t, "null", v)
	assert.NoError(t, empty.Decode(&m))
	assert.Error(t, empty.Scan(12))
}
