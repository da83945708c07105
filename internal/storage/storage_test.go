package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	store, err := New(t.TempDir(), logger)
	require.NoError(t, err)
	return store
}

func TestValidateSessionID(t *testing.T) {
	for _, id := range []string{"abc", "sess_01-x", "A1"} {
		assert.NoError(t, ValidateSessionID(id), id)
	}
	for _, id := range []string{"", "../etc", "a/b", "a b", "sess.1"} {
		assert.Error(t, ValidateSessionID(id), id)
	}
}

func TestStore_ResultRoundTrip(t *testing.T) {
	store := newTestStore(t)

	type payload struct {
		Query string   `json:"query"`
		URLs  []string `json:"urls"`
	}
	in := payload{Query: "doces", URLs: []string{"https://a.example"}}
	require.NoError(t, store.SaveResult("s1", in))

	dir, err := store.SessionDir("s1")
	require.NoError(t, err)
	info, err := os.Stat(filepath.Join(dir, resultFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	var out payload
	require.NoError(t, store.LoadResult("s1", &out))
	assert.Equal(t, in, out)
}

func TestStore_LoadMissing(t *testing.T) {
	store := newTestStore(t)

	var v map[string]any
	assert.ErrorIs(t, store.LoadResult("nope", &v), ErrNotFound)

	require.NoError(t, store.UpdateProgress("s2", 1, 4, "start"))
	assert.ErrorIs(t, store.LoadResult("s2", &v), ErrNotFound)
}

func TestStore_RejectsTraversal(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.SaveResult("../escape", map[string]string{}))
	_, err := store.Progress("../escape")
	assert.Error(t, err)
}

func TestStore_Progress(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpdateProgress("s3", 1, 4, "searching"))
	require.NoError(t, store.UpdateProgress("s3", 2, 4, "navigating"))

	p, err := store.Progress("s3")
	require.NoError(t, err)
	assert.Equal(t, "s3", p.SessionID)
	assert.Equal(t, 2, p.Step)
	assert.Equal(t, 4, p.TotalSteps)
	assert.Equal(t, "navigating", p.Message)
	assert.InDelta(t, 50.0, p.Percentage, 0.001)
	assert.False(t, p.UpdatedAt.IsZero())
}

func TestStore_ProgressZeroTotal(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.UpdateProgress("s4", 0, 0, "idle"))
	p, err := store.Progress("s4")
	require.NoError(t, err)
	assert.Zero(t, p.Percentage)
}
