package pcrindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteIndexRoundTrip(t *testing.T) {
	records := []PcrPosition{
		{ByteOffset: 0, PID: 0x31, PCR: 0},
		{ByteOffset: 188, PID: 0x31, PCR: 1_080_000},
		{ByteOffset: 376, PID: 0x31, PCR: 2_160_000},
	}

	path := filepath.Join(t.TempDir(), "index.sqlite")
	db, err := OpenSQLiteIndex(path)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, WriteSQLiteIndex(db, records))

	got, ok, err := LookupGESQLite(db, 1_000_000)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1_080_000), got.PCR)

	_, ok, err = LookupGESQLite(db, 10_000_000)
	require.NoError(t, err)
	assert.False(t, ok)
}
