// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

package dirtymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoundsChunksUp(t *testing.T) {
	m := New(10, 4)

	assert.Len(t, m.Chunks, 3)
	assert.Equal(t, int64(0), m.DirtyChunks())
	assert.Empty(t, m.Extents())
}

func TestNewZeroSize(t *testing.T) {
	m := New(0, 4)

	assert.Empty(t, m.Chunks)
	assert.Empty(t, m.Extents())
}

func TestNewPanicsOnBadChunkSize(t *testing.T) {
	assert.Panics(t, func() { New(10, 0) })
}

func TestUpdateMarksTouchedChunks(t *testing.T) {
	m := New(64, 8)

	// Bytes 6..9 touch chunks 0 and 1.
	m.Update(6, 4, 1)

	assert.Equal(t, []int64{1, 1, 0, 0, 0, 0, 0, 0}, m.Chunks)
	assert.Equal(t, int64(2), m.DirtyChunks())
}

func TestUpdateIgnoresEmptyRange(t *testing.T) {
	m := New(64, 8)

	m.Update(8, 0, 1)

	assert.Equal(t, int64(0), m.DirtyChunks())
}

func TestUpdateKeepsHighestGeneration(t *testing.T) {
	m := New(16, 8)

	m.Update(0, 1, 5)
	m.Update(0, 1, 3)

	assert.Equal(t, int64(5), m.Chunks[0])
	assert.Equal(t, int64(1), m.DirtyChunks())
}

func TestExtentsCoalesceNeighbours(t *testing.T) {
	m := New(64, 8)

	m.Update(0, 8, 1)
	m.Update(8, 8, 4)
	m.Update(40, 1, 2)

	extents := m.Extents()
	require.Len(t, extents, 2)

	assert.Equal(t, Extent{Offset: 0, Length: 16, SeqNo: 4}, extents[0])
	assert.Equal(t, Extent{Offset: 40, Length: 8, SeqNo: 2}, extents[1])
}

func TestExtentsClipLastChunk(t *testing.T) {
	m := New(10, 4)

	m.Update(9, 1, 1)

	assert.Equal(t, []Extent{{Offset: 8, Length: 2, SeqNo: 1}}, m.Extents())
}

func TestLookupLimitsToRange(t *testing.T) {
	m := New(64, 8)

	m.Update(0, 64, 1)

	extents := m.Lookup(20, 10)
	assert.Equal(t, []Extent{{Offset: 16, Length: 16, SeqNo: 1}}, extents)
}

func TestLookupOutsideMap(t *testing.T) {
	m := New(64, 8)
	m.Update(0, 64, 1)

	assert.Empty(t, m.Lookup(64, 8))
	assert.Empty(t, m.Lookup(0, 0))
}
