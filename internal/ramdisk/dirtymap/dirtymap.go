// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

// Dirtymap package keeps track of which parts of the volume were ever written.
// The volume is split into equally sized chunks and for every chunk the
// generation of the last write touching it is stored. More details are in the
// DirtyMap struct description.
package dirtymap

const (
	// How many extents is the typical result for one lookup. This is just
	// for initial allocation of the returned array. In the worst case
	// reallocation happens.
	typicalExtentsPerLookup = 64

	// Generation of a chunk which was never written.
	clean = 0
)

// Extent of dirty data in bytes. Extents are always aligned to the chunk size
// except the very last one which is clipped by the volume size.
type Extent struct {
	// First byte of the extent.
	Offset int64

	// Length of the extent. Extent is continuous.
	Length int64

	// Highest write generation of all chunks covered by the extent.
	SeqNo int64
}

// Chunk granular map of written data. Every chunk is represented just by the
// generation of its last write stored in a continuous array, hence lookups
// are just linear scans. For 100MB volume and 1MB chunks the whole map is 100
// integers.
//
// The map does not support concurrent access. The owner of the map has to
// serialize updates with lookups.
type DirtyMap struct {
	Chunks    []int64
	ChunkSize int64
	Size      int64

	// Number of chunks with non-clean generation.
	dirty int64
}

// Returns new map covering size bytes with chunkSize granularity.
func New(size, chunkSize int64) *DirtyMap {
	if chunkSize <= 0 {
		panic("dirtymap: chunk size has to be positive")
	}

	chunks := (size + chunkSize - 1) / chunkSize

	m := DirtyMap{
		Chunks:    make([]int64, chunks),
		ChunkSize: chunkSize,
		Size:      size,
	}

	return &m
}

// Marks all chunks touched by the byte range starting at offset with length
// length as written by generation seqNo. The range has to be within the map.
func (m *DirtyMap) Update(offset, length, seqNo int64) {
	if length <= 0 {
		return
	}

	first := offset / m.ChunkSize
	last := (offset + length - 1) / m.ChunkSize

	for i := first; i <= last; i++ {
		if m.Chunks[i] == clean {
			m.dirty++
		}
		if m.Chunks[i] < seqNo {
			m.Chunks[i] = seqNo
		}
	}
}

// Returns number of chunks which were written at least once.
func (m *DirtyMap) DirtyChunks() int64 {
	return m.dirty
}

// Returns longest run of dirty chunks starting at chunk first, but not going
// beyond chunk end (exclusive).
func (m *DirtyMap) getExtent(first, end int64) Extent {
	e := Extent{
		Offset: first * m.ChunkSize,
		SeqNo:  m.Chunks[first],
	}

	i := first
	for ; i < end && m.Chunks[i] != clean; i++ {
		if m.Chunks[i] > e.SeqNo {
			e.SeqNo = m.Chunks[i]
		}
	}

	e.Length = i*m.ChunkSize - e.Offset
	if e.Offset+e.Length > m.Size {
		e.Length = m.Size - e.Offset
	}

	return e
}

// Returns all dirty extents intersecting the byte range starting at offset
// with length length. Returned extents are chunk aligned, hence they can
// reach outside of the requested range.
func (m *DirtyMap) Lookup(offset, length int64) []Extent {
	extents := make([]Extent, 0, typicalExtentsPerLookup)
	if length <= 0 || offset >= m.Size {
		return extents
	}

	first := offset / m.ChunkSize
	end := (offset+length-1)/m.ChunkSize + 1
	if end > int64(len(m.Chunks)) {
		end = int64(len(m.Chunks))
	}

	for i := first; i < end; {
		if m.Chunks[i] == clean {
			i++
			continue
		}

		e := m.getExtent(i, end)
		extents = append(extents, e)
		i += (e.Length + m.ChunkSize - 1) / m.ChunkSize
	}

	return extents
}

// Returns all dirty extents of the whole map.
func (m *DirtyMap) Extents() []Extent {
	return m.Lookup(0, m.Size)
}
