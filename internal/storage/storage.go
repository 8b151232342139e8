package storage

import (
	"context"
	"errors"
)

// ErrNotExist is returned by Get when nothing is stored at the given location.
var ErrNotExist = errors.New("object does not exist")

// ErrInvalidLocation is returned when a location cannot be served by the backend,
// for example a file path that leaves the storage directory.
var ErrInvalidLocation = errors.New("invalid storage location")

type Storage interface {
	// Put stores data at the given location and returns the resolved storage URL
	Put(ctx context.Context, location string, data []byte) (string, error)
	// Get retrieves data from the given storage location
	Get(ctx context.Context, location string) ([]byte, error)
	// Exists reports whether something is stored at the given location
	Exists(ctx context.Context, location string) (bool, error)
	// Validate reports whether location may be used with this backend
	Validate(location string) error
}
