package cerr

import (
	"errors"
	"fmt"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/storage"
)

// WrapStorageReadError translates a storage read failure into a coded
// error: missing objects become NotFound, everything else is Internal.
func WrapStorageReadError(target string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(NotFound, fmt.Sprintf("%s not found", target), err)
	}
	return NewError(Internal, "server error", fmt.Errorf("failed to read %s: %w", target, err))
}

// WrapStorageWriteError translates a storage write failure. Writes have no
// not-found case; any failure is a server fault.
func WrapStorageWriteError(target string, err error) error {
	return NewError(Internal, "server error", fmt.Errorf("failed to write %s: %w", target, err))
}

// WrapStorageDeleteError translates a storage delete failure the same way
// reads are translated.
func WrapStorageDeleteError(target string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(NotFound, fmt.Sprintf("%s not found", target), err)
	}
	return NewError(Internal, "server error", fmt.Errorf("failed to delete %s: %w", target, err))
}
