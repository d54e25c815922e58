package audio

// Asset is an opaque handle to a decoded sound owned by a backend.
type Asset interface {
	// Name returns the source filename the asset was decoded from.
	Name() string
}

// Channel is one playback slot from a backend's fixed pool. At most one
// stream may own a channel at a time; the owner must Stop the channel
// before discarding its handle.
type Channel interface {
	// SetGain sets the channel gain as a percentage (0-100).
	SetGain(percent int)

	// Gain returns the gain most recently applied to the channel.
	Gain() int

	// PlayLoop starts looped playback of the asset. The loop runs until
	// Stop is called.
	PlayLoop(asset Asset) error

	// Stop halts playback and returns the channel to the pool.
	Stop() error

	// Busy reports whether the channel currently holds an active stream.
	Busy() bool
}

// Backend abstracts the audio subsystem so the Coordinator can run against
// real hardware or an in-memory simulation, chosen once at construction.
type Backend interface {
	// Open initializes the audio subsystem.
	Open() error

	// Close stops all playback and releases the audio subsystem. Safe to
	// call multiple times and without a prior successful Open.
	Close()

	// FreeChannel returns an idle channel from the pool. Pool exhaustion
	// is a normal condition reported as ok == false, not an error.
	FreeChannel() (Channel, bool)

	// Decode loads the sound file at path into an Asset.
	Decode(path string) (Asset, error)
}
