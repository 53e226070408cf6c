package storage

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log.WithField("component", "storage-test")
}

// exerciseStore runs the CrawlStore contract against any implementation.
func exerciseStore(t *testing.T, store CrawlStore) {
	t.Helper()

	added, err := store.MarkPageVisited("https://example.com/")
	require.NoError(t, err)
	assert.True(t, added, "first visit is new")

	added, err = store.MarkPageVisited("https://example.com/")
	require.NoError(t, err)
	assert.False(t, added, "second visit is a duplicate")

	added, err = store.MarkImageSeen("https://example.com/a.jpg")
	require.NoError(t, err)
	assert.True(t, added)

	// Same URL as image and page do not collide
	added, err = store.MarkPageVisited("https://example.com/a.jpg")
	require.NoError(t, err)
	assert.True(t, added)

	count, err := store.VisitedCount()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	exerciseStore(t, store)
	assert.NoError(t, store.Close())
}

func TestBadgerStore(t *testing.T) {
	stateDir := t.TempDir()
	store, err := NewBadgerStore(stateDir, "example.com", testEntry())
	require.NoError(t, err)

	exerciseStore(t, store)
	require.NoError(t, store.Close())
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	stateDir := t.TempDir()

	store, err := NewBadgerStore(stateDir, "example.com", testEntry())
	require.NoError(t, err)
	_, err = store.MarkPageVisited("https://example.com/page")
	require.NoError(t, err)
	_, err = store.MarkImageSeen("https://example.com/img.png")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewBadgerStore(stateDir, "example.com", testEntry())
	require.NoError(t, err)
	defer reopened.Close()

	added, err := reopened.MarkPageVisited("https://example.com/page")
	require.NoError(t, err)
	assert.False(t, added, "previously visited page survives restart")

	count, err := reopened.VisitedCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
