package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("<html></html>")
	uri, err := store.PutObject(context.Background(), "run/page-0001.html", "text/html", payload)
	require.NoError(t, err)
	require.Equal(t, "memory://run/page-0001.html", uri)

	payload[0] = 'X'
	stored, ok := store.Object("run/page-0001.html")
	require.True(t, ok)
	require.Equal(t, "<html></html>", string(stored))
	require.Equal(t, []string{"run/page-0001.html"}, store.Paths())
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().PutObject(context.Background(), " ", "text/html", nil)
	require.Error(t, err)
}
