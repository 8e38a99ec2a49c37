package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/goccy/go-json"

	"reccal/internal/atomicfile"
	appLog "reccal/internal/log"
	"reccal/internal/model"
)

const fileFormatVersion = 1

type fileSnapshot struct {
	Version int           `json:"version"`
	Events  []model.Event `json:"events"`
}

// File is a Memory store whose every mutation is written through to a JSON
// file before it becomes visible. A failed write leaves the store unchanged.
type File struct {
	*Memory
	path string
}

var _ Store = (*File)(nil)

// OpenFile loads path, or starts empty when it does not exist yet. The file
// is first written on the first mutation.
func OpenFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("store path is empty")
	}

	f := &File{Memory: NewMemory(), path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		appLog.Info("store: starting empty", "path", path)
	case err != nil:
		return nil, err
	default:
		var snap fileSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if snap.Version != fileFormatVersion {
			return nil, fmt.Errorf("decode %s: unsupported version %d", path, snap.Version)
		}
		f.events = snap.Events
		appLog.Info("store: loaded", "path", path, "events", len(snap.Events))
	}

	f.persist = f.save
	return f, nil
}

func (f *File) Path() string { return f.path }

func (f *File) save(events []model.Event) error {
	if events == nil {
		events = []model.Event{}
	}
	data, err := json.MarshalIndent(fileSnapshot{Version: fileFormatVersion, Events: events}, "", "  ")
	if err != nil {
		return err
	}
	return atomicfile.Write(f.path, data, 0o600)
}
