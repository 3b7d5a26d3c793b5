package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notegraph/notegraph/internal/taskerr"
)

func TestLocalFileStoreRoundTrip(t *testing.T) {
	s, err := NewLocalFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put("doc-1", "notes.md", []byte("# hello")))

	name, data, err := s.Fetch(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1.md", name)
	assert.Equal(t, []byte("# hello"), data)
}

func TestLocalFileStoreReplaceChangesExtension(t *testing.T) {
	s, err := NewLocalFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put("doc-1", "notes.md", []byte("markdown")))
	require.NoError(t, s.Put("doc-1", "notes.txt", []byte("plain")))

	name, data, err := s.Fetch(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1.txt", name)
	assert.Equal(t, []byte("plain"), data)
}

func TestLocalFileStoreMissingDocument(t *testing.T) {
	s, err := NewLocalFileStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = s.Fetch(context.Background(), "nope")
	assert.True(t, errors.Is(err, taskerr.ErrDocumentNotFound))
}

func TestLocalFileStorePutValidation(t *testing.T) {
	s, err := NewLocalFileStore(t.TempDir())
	require.NoError(t, err)

	err = s.Put("../escape", "notes.md", []byte("x"))
	assert.Equal(t, taskerr.KindValidation, taskerr.KindOf(err))

	err = s.Put("doc-1", "no-extension", []byte("x"))
	assert.Equal(t, taskerr.KindValidation, taskerr.KindOf(err))
}
