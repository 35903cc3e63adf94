package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/garethgeorge/goftl/internal/ftl"
	"github.com/garethgeorge/goftl/internal/workload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Finish(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.zst")
	rec, err := createRecorder(path, 100)
	require.NoError(t, err)
	for _, lba := range []ftl.LBA{3, 99, 0} {
		require.NoError(t, rec.append(lba))
	}
	require.NoError(t, rec.finish())
	assert.Equal(t, int64(3), rec.count())

	// abort after finish leaves the trace intact
	rec.abort()
	require.NoError(t, rec.finish())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	tr, err := workload.NewTraceReader(f)
	require.NoError(t, err)
	defer tr.Close()
	replay, err := workload.LoadReplay(tr)
	require.NoError(t, err)
	assert.Equal(t, 3, replay.Len())
}

func TestRecorder_AbortReleases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.zst")
	rec, err := createRecorder(path, 100)
	require.NoError(t, err)
	assert.Error(t, rec.append(-1))
	rec.abort()

	assert.True(t, rec.done)
	// the file handle is closed, so further writes through it fail
	_, err = rec.f.Write([]byte{0})
	assert.ErrorIs(t, err, os.ErrClosed)
	require.NoError(t, rec.finish())
}

func TestCreateRecorder_BadPath(t *testing.T) {
	_, err := createRecorder(filepath.Join(t.TempDir(), "missing", "trace.zst"), 100)
	assert.Error(t, err)
}
