package watch

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndex_UnknownPathNeedsSubmit(t *testing.T) {
	idx := openTestIndex(t)

	needed, err := idx.NeedsSubmit("/photos/a.jpg", 100)
	require.NoError(t, err)
	assert.True(t, needed)
}

func TestIndex_RecordedOKSkipsResubmit(t *testing.T) {
	idx := openTestIndex(t)

	require.NoError(t, idx.Record("/photos/a.jpg", 100, "deadbeef", "ok"))

	needed, err := idx.NeedsSubmit("/photos/a.jpg", 100)
	require.NoError(t, err)
	assert.False(t, needed)
}

func TestIndex_ModifiedFileNeedsResubmit(t *testing.T) {
	idx := openTestIndex(t)

	require.NoError(t, idx.Record("/photos/a.jpg", 100, "deadbeef", "ok"))

	needed, err := idx.NeedsSubmit("/photos/a.jpg", 200)
	require.NoError(t, err)
	assert.True(t, needed)
}

func TestIndex_RejectedOutcomeRetries(t *testing.T) {
	idx := openTestIndex(t)

	require.NoError(t, idx.Record("/photos/a.jpg", 100, "deadbeef", "rejected"))

	needed, err := idx.NeedsSubmit("/photos/a.jpg", 100)
	require.NoError(t, err)
	assert.True(t, needed)
}

func TestIndex_UpsertReplacesRow(t *testing.T) {
	idx := openTestIndex(t)

	require.NoError(t, idx.Record("/photos/a.jpg", 100, "aaaa", "rejected"))
	require.NoError(t, idx.Record("/photos/a.jpg", 100, "aaaa", "ok"))

	needed, err := idx.NeedsSubmit("/photos/a.jpg", 100)
	require.NoError(t, err)
	assert.False(t, needed)
}
