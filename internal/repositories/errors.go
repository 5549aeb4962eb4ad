package repositories

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrNotFound indicates the requested document does not exist or the id is malformed.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write hit a unique index.
	ErrConflict = errors.New("record conflict")
)

// translateWriteError maps driver errors onto the package sentinels and wraps the rest
// with the failing operation.
func translateWriteError(err error, op string) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrConflict
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
