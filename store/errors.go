package store

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound           = errors.New("store: document not found")
	ErrDuplicate          = errors.New("store: duplicate key")
	ErrPreconditionFailed = errors.New("store: precondition failed")
)

// translate maps driver errors onto the store sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return errors.Join(ErrDuplicate, err)
	default:
		return err
	}
}
