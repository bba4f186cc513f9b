package image

import (
	"fmt"
	"io"
	"os"

	"github.com/BertoldVdb/spinor/memory"
)

// Snapshot captures the contents of a store.
func Snapshot(store memory.Store) ([]byte, error) {
	content := make([]byte, store.Size())
	if _, err := store.ReadAt(content, 0); err != nil && err != io.EOF {
		return nil, err
	}

	return Build(content, store.ErasedValue()), nil
}

// Restore loads a snapshot into a store of the same size.
func Restore(store memory.Store, img []byte) error {
	content, erased, err := Extract(img)
	if err != nil {
		return err
	}

	if int64(len(content)) != store.Size() {
		return fmt.Errorf("snapshot holds %d bytes, store has %d: %w", len(content), store.Size(), memory.ErrorSizeMismatch)
	}

	store.SetErasedValue(erased)
	_, err = store.WriteAt(content, 0)
	return err
}

func SaveFile(path string, store memory.Store) error {
	img, err := Snapshot(store)
	if err != nil {
		return err
	}
	return os.WriteFile(path, img, 0644)
}

func LoadFile(path string, store memory.Store) error {
	img, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := Restore(store, img); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
