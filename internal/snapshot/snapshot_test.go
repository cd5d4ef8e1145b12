package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoIngest/internal/dataset"
	"CryptoIngest/internal/model"
)

func sample() []model.Record {
	return []model.Record{
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Coin: "BTC", Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Coin: "BTC", Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 200},
	}
}

func readRecords(t *testing.T, path string) []model.Record {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := dataset.ReadCSV(f)
	require.NoError(t, err)
	return records
}

func TestWriteAll_CreatesDirsAndFiles(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "data", "raw", "raw_data.csv")
	processed := filepath.Join(dir, "data", "processed", "processed_data.csv")

	err := WriteAll(context.Background(),
		Target{Path: raw, Records: sample()},
		Target{Path: processed, Records: sample()[:1]},
	)
	require.NoError(t, err)

	assert.Equal(t, sample(), readRecords(t, raw))
	assert.Equal(t, sample()[:1], readRecords(t, processed))

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(raw))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteAll_ReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	require.NoError(t, WriteAll(context.Background(), Target{Path: path, Records: sample()}))
	assert.Equal(t, sample(), readRecords(t, path))
}

func TestWriteAll_CancelledLeavesFilesUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WriteAll(ctx, Target{Path: path, Records: sample()})
	require.ErrorIs(t, err, context.Canceled)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteAll_StageFailureKeepsOtherDestination(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.csv")
	require.NoError(t, os.WriteFile(good, []byte("old"), 0644))

	// a regular file where a directory is expected
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	bad := filepath.Join(blocker, "bad.csv")

	err := WriteAll(context.Background(),
		Target{Path: good, Records: sample()},
		Target{Path: bad, Records: sample()},
	)
	var we *WriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, bad, we.Path)

	got, err := os.ReadFile(good)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2) // good.csv and blocker
}

func TestWriteAll_CommitFailureAfterEarlierRename(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.csv")
	require.NoError(t, os.WriteFile(first, []byte("old"), 0644))

	// a non-empty directory at the destination makes the rename fail
	second := filepath.Join(dir, "second.csv")
	require.NoError(t, os.MkdirAll(filepath.Join(second, "keep"), 0755))

	err := WriteAll(context.Background(),
		Target{Path: first, Records: sample()},
		Target{Path: second, Records: sample()},
	)
	var we *WriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, second, we.Path)

	assert.Equal(t, sample(), readRecords(t, first))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2) // first.csv and second.csv, no temp files
}

func TestStaged_DiscardAfterCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s, err := Stage(path, sample())
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, s.Commit())
	s.Discard()
	assert.Error(t, s.Commit())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
