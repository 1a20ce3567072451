// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

// Package plugin defines the contract between a block device host and the
// storage backend serving it. The host drives every backend through the same
// sequence: Config for each user supplied key=value pair, GetReady once all
// configuration is done, and then any number of Open calls, one per client
// connection. All I/O goes through the returned Handle. Unload finishes the
// lifecycle.
package plugin

// Thread model declared by the backend. It tells the host how much
// serialization it has to do on its side before calling into the backend.
type ThreadModel int

const (
	// Host has to serialize all calls into the backend.
	SerializeAllRequests ThreadModel = iota

	// Host may run calls for different connections in parallel but calls on
	// one connection are serialized.
	SerializeRequests

	// Backend does all the serialization itself and the host may call into it
	// from any number of threads at once.
	Parallel
)

func (m ThreadModel) String() string {
	switch m {
	case SerializeAllRequests:
		return "serialize_all_requests"
	case SerializeRequests:
		return "serialize_requests"
	case Parallel:
		return "parallel"
	}

	return "unknown"
}

// Flags passed along with write requests.
type Flags uint32

const (
	// Force unit access. Reserved, backends are free to ignore it.
	FlagFUA Flags = 1 << iota
)

// Plugin is implemented by every backend. Configuration calls are done by a
// single thread before GetReady and never overlap with serving.
type Plugin interface {
	// Name of the backend used in logs and in the plugin dump.
	Name() string

	// Handles one key=value configuration pair. Unknown keys have to be
	// rejected with ErrUnknownParameter.
	Config(key, value string) error

	// Called exactly once after the last Config and before the first Open.
	GetReady() error

	// Returns a new handle for the client connection.
	Open(readonly bool) (Handle, error)

	// Static declaration of supported concurrency.
	ThreadModel() ThreadModel

	// Called once when the host removes the device. No handle is used
	// afterwards.
	Unload()
}

// Handle is a per connection view of the backend. All requests coming from
// one client are dispatched through its handle.
type Handle interface {
	// Size of the exported device in bytes.
	GetSize() (int64, error)

	// Fills the whole buf with data starting at offset.
	ReadAt(buf []byte, offset uint64) error

	// Writes the whole buf starting at offset. Writes are never partially
	// applied.
	WriteAt(buf []byte, offset uint64, flags Flags) error

	// Releases the handle.
	Close() error
}
