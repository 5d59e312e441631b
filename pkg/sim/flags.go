package sim

import (
	"os"
	"path/filepath"
)

// updateFlagName matches the marker file the boot loader looks for.
const updateFlagName = ".USOTA"

// FlagStore keeps boot flags in a directory, surviving node reboots the
// way the real flash filesystem does.
type FlagStore struct {
	dir string
}

// NewFlagStore returns a store rooted at dir.
func NewFlagStore(dir string) *FlagStore {
	return &FlagStore{dir: dir}
}

func (f *FlagStore) SetUpdateFlag() error {
	return os.WriteFile(f.path(), nil, 0o644)
}

// UpdatePending reports whether the update marker is present.
func (f *FlagStore) UpdatePending() bool {
	_, err := os.Stat(f.path())
	return err == nil
}

// ClearUpdateFlag removes the marker; clearing an absent marker is not
// an error.
func (f *FlagStore) ClearUpdateFlag() error {
	err := os.Remove(f.path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (f *FlagStore) path() string {
	return filepath.Join(f.dir, updateFlagName)
}
