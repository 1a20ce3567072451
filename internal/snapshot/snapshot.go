// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

// Package snapshot copies written parts of a ramdisk volume into an object
// store when the device goes away. It is a one way export for inspection or
// archiving, nothing ever reads it back into a volume.
//
// Every dirty extent is split into parts of at most PartSize bytes and each
// part is uploaded as a separate object by a pool of uploaders. A manifest
// describing all parts is uploaded last, hence its presence means the export
// is complete.
package snapshot

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/asch/ramdisk/internal/ramdisk"
	"github.com/asch/ramdisk/internal/ramdisk/dirtymap"
)

const (
	// Format string for the part key. We split the part offset into halves
	// and use the lower half of bits as the first path element and upper
	// half as the second one. This is to prevent s3 rate limiting which is
	// applied to objects with the same prefix.
	keyFmt = "%s/%08x/%08x"

	manifestName = "manifest"

	defaultPrefix    = "ramdisk"
	defaultUploaders = 16
	defaultPartSize  = 4 * 1024 * 1024
)

// Interface for the object store. Anything implementing this interface can
// be used as a snapshot target.
type ObjectUploader interface {
	// Uploads data in buf under the key identifier.
	Upload(key string, buf []byte) error
}

// Options to use in New() function. Zero values select defaults.
type Options struct {
	// Key prefix of all objects of the snapshot.
	Prefix string

	// Number of go routines uploading parts.
	Uploaders int

	// Maximal size of one uploaded object in bytes.
	PartSize int64
}

// Description of one uploaded object.
type Part struct {
	Key    string
	Offset int64
	Length int64
	SeqNo  int64
}

// Manifest is serialized by gobs and uploaded as the last object of the
// snapshot. Parts not listed in it were never written and contain zeroes.
type Manifest struct {
	Size       int64
	Generation int64
	PartSize   int64
	Parts      []Part
	Created    time.Time
}

// Snapshot implements ramdisk.Exporter.
type Snapshot struct {
	Instance ObjectUploader

	prefix    string
	uploaders int
	partSize  int64
}

// Request is internal structure for wrapping the communication into channels.
type request struct {
	key  string
	data []byte
}

var _ ramdisk.Exporter = (*Snapshot)(nil)

// Returns exporter uploading through instance.
func New(instance ObjectUploader, o Options) *Snapshot {
	s := Snapshot{
		Instance:  instance,
		prefix:    o.Prefix,
		uploaders: o.Uploaders,
		partSize:  o.PartSize,
	}

	if s.prefix == "" {
		s.prefix = defaultPrefix
	}

	if s.uploaders <= 0 {
		s.uploaders = defaultUploaders
	}

	if s.partSize <= 0 {
		s.partSize = defaultPartSize
	}

	return &s
}

// Returns key of the part starting at offset.
func (s *Snapshot) encode(offset int64) string {
	left := (offset >> 32) & 0xffffffff
	right := offset & 0xffffffff

	return fmt.Sprintf(keyFmt, s.prefix, right, left)
}

// Splits dirty extents into parts no larger than partSize. Parts never cross
// partSize boundary.
func (s *Snapshot) split(extents []dirtymap.Extent) []Part {
	parts := make([]Part, 0, len(extents))

	for _, e := range extents {
		for off := e.Offset; off < e.Offset+e.Length; {
			n := s.partSize - off%s.partSize
			if rest := e.Offset + e.Length - off; n > rest {
				n = rest
			}

			parts = append(parts, Part{
				Key:    s.encode(off),
				Offset: off,
				Length: n,
				SeqNo:  e.SeqNo,
			})
			off += n
		}
	}

	return parts
}

// Upload worker just calls Upload() on the instance provided in New().
func (s *Snapshot) uploadWorker(requests <-chan request, errs chan<- error, wg *sync.WaitGroup) {
	defer wg.Done()

	for r := range requests {
		if err := s.Instance.Upload(r.key, r.data); err != nil {
			errs <- fmt.Errorf("upload %s: %w", r.key, err)
		}
	}
}

// Uploads all parts of the volume which were ever written followed by the
// manifest. Manifest is not uploaded when any part fails.
func (s *Snapshot) Export(v *ramdisk.Volume) error {
	start := time.Now()
	parts := s.split(v.DirtyExtents())

	requests := make(chan request)
	errs := make(chan error, len(parts)+1)

	var wg sync.WaitGroup
	for i := 0; i < s.uploaders; i++ {
		wg.Add(1)
		go s.uploadWorker(requests, errs, &wg)
	}

	var uploaded int64
	for _, p := range parts {
		buf := make([]byte, p.Length)
		if err := v.ReadAt(buf, uint64(p.Offset)); err != nil {
			errs <- err
			break
		}

		requests <- request{key: p.Key, data: buf}
		uploaded += p.Length
	}

	close(requests)
	wg.Wait()
	close(errs)

	var all []error
	for err := range errs {
		all = append(all, err)
	}
	if err := errors.Join(all...); err != nil {
		return err
	}

	manifest := Manifest{
		Size:       v.Size(),
		Generation: v.Generation(),
		PartSize:   s.partSize,
		Parts:      parts,
		Created:    time.Now().UTC(),
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&manifest); err != nil {
		return err
	}

	if err := s.Instance.Upload(s.prefix+"/"+manifestName, buf.Bytes()); err != nil {
		return fmt.Errorf("upload manifest: %w", err)
	}

	log.Info().Int("parts", len(parts)).Int64("bytes", uploaded).
		Dur("took", time.Since(start)).Str("prefix", s.prefix).Msg("Snapshot exported")

	return nil
}
