package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutAndGet(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "datasets/r1/a.csv", "text/csv", bytes.NewReader([]byte("content")))
	require.NoError(t, err)
	assert.Equal(t, "memory://datasets/r1/a.csv", uri)

	obj, ok := store.Get("datasets/r1/a.csv")
	require.True(t, ok)
	assert.Equal(t, "text/csv", obj.ContentType)
	assert.Equal(t, "content", string(obj.Data))

	obj.Data[0] = 'C'
	again, _ := store.Get("datasets/r1/a.csv")
	assert.Equal(t, "content", string(again.Data), "stored copy must not be shared")

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestBlobStorePaths(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	for _, p := range []string{"b", "a", "c"} {
		_, err := store.PutObject(context.Background(), p, "", bytes.NewReader(nil))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a", "b", "c"}, store.Paths())
}
