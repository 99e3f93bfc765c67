package infrastructure

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/enderliker/wawawa/internal/modules/narrator/application/ports"
)

// soundFileExtension is the extension of stored sound clips: opus frames
// with little-endian uint16 length prefixes.
const soundFileExtension = ".dca"

// DiskSoundLibrary serves pre-encoded sound clips from a directory. The
// file name without extension, lowercased, is the trigger token; lookups
// are case-insensitive.
type DiskSoundLibrary struct {
	sounds map[string]string // token -> file path
}

// NewDiskSoundLibrary scans the directory once and indexes every clip.
func NewDiskSoundLibrary(dir string) (*DiskSoundLibrary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sounds directory: %w", err)
	}

	sounds := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if !strings.EqualFold(ext, soundFileExtension) {
			continue
		}
		token := strings.ToLower(strings.TrimSuffix(name, ext))
		if token == "" {
			continue
		}
		sounds[token] = filepath.Join(dir, name)
	}

	slog.Info("loaded sound library", "dir", dir, "sounds", len(sounds))

	return &DiskSoundLibrary{sounds: sounds}, nil
}

// Resolve returns the clip registered under the given name.
func (l *DiskSoundLibrary) Resolve(name string) (ports.SoundSource, bool) {
	token := strings.ToLower(name)
	path, ok := l.sounds[token]
	if !ok {
		return nil, false
	}
	return &diskSoundSource{name: token, path: path}, true
}

// Names lists all registered clip names in sorted order.
func (l *DiskSoundLibrary) Names() []string {
	names := make([]string, 0, len(l.sounds))
	for name := range l.sounds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// diskSoundSource is one clip file on disk.
type diskSoundSource struct {
	name string
	path string
}

// Name returns the token the clip is looked up by.
func (s *diskSoundSource) Name() string {
	return s.name
}

// Open returns a reader over the stored clip data.
func (s *diskSoundSource) Open() (io.ReadCloser, error) {
	return os.Open(s.path)
}

// NullSoundLibrary is an empty library, used when no sounds directory is
// configured. Every text token then narrates as speech.
type NullSoundLibrary struct{}

// Resolve never finds a clip.
func (NullSoundLibrary) Resolve(string) (ports.SoundSource, bool) {
	return nil, false
}

// Names returns no names.
func (NullSoundLibrary) Names() []string {
	return nil
}

// Ensure the libraries implement the port interface.
var (
	_ ports.SoundLibrary = (*DiskSoundLibrary)(nil)
	_ ports.SoundLibrary = NullSoundLibrary{}
)
