package ports

import "io"

// SoundSource is one named sound clip in a library.
type SoundSource interface {
	// Name returns the token the clip is looked up by.
	Name() string

	// Open returns a reader over the stored clip data. The caller closes it.
	Open() (io.ReadCloser, error)
}

// SoundLibrary resolves sound tokens to stored clips.
type SoundLibrary interface {
	// Resolve returns the clip registered under the given name, or false
	// when no such clip exists.
	Resolve(name string) (SoundSource, bool)

	// Names lists all registered clip names in sorted order.
	Names() []string
}
