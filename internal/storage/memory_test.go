package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutDelete(t *testing.T) {
	store := NewMemoryStore("https://certs.example.com/")
	ctx := context.Background()

	url, err := store.Put(ctx, "AbC123xYz9", strings.NewReader("%PDF-"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://certs.example.com/AbC123xYz9", url)
	assert.Equal(t, url, store.URL("AbC123xYz9"))

	obj, ok := store.Object("AbC123xYz9")
	require.True(t, ok)
	assert.Equal(t, "application/pdf", obj.ContentType)
	assert.Equal(t, []byte("%PDF-"), obj.Data)

	require.NoError(t, store.Delete(ctx, "AbC123xYz9"))
	assert.Equal(t, 0, store.Len())
	assert.ErrorIs(t, store.Delete(ctx, "AbC123xYz9"), ErrObjectNotFound)
}

func TestMemoryStore_InjectedFailure(t *testing.T) {
	store := NewMemoryStore("https://certs.example.com")
	store.PutErr = errors.New("bucket down")

	_, err := store.Put(context.Background(), "k", strings.NewReader("x"), "text/plain")
	assert.Error(t, err)
	assert.Equal(t, 1, store.PutCalls())
	assert.Equal(t, 0, store.Len())
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://storage.googleapis.com/b/k", joinURL("https://storage.googleapis.com/b", "k"))
	assert.Equal(t, "https://x/k", joinURL("https://x//", "/k"))
}
