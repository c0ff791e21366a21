// Package docstore is the transactional document store used by the game
// service. Documents are addressed by (collection, id) and encoded from Go
// structs; every implementation offers optimistic multi-document
// read-then-write transactions that either commit all writes or none.
package docstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when no document exists for the id.
	ErrNotFound = errors.New("docstore: document not found")

	// ErrConflict is returned when a transaction could not commit because
	// documents it depends on changed, after the retry budget is spent.
	// Transaction bodies may also return it to request a retry.
	ErrConflict = errors.New("docstore: transaction conflict")
)

// Filter is an equality match on top-level document fields. Field names are
// the encoded names (json/bson tags), e.g. Filter{"gameId": id, "isAlive": true}.
type Filter map[string]any

// Reader reads documents. out must be a pointer to a struct for Get and a
// pointer to a slice of structs for Query.
type Reader interface {
	Get(ctx context.Context, collection, id string, out any) error
	Query(ctx context.Context, collection string, filter Filter, out any) error
}

// Tx is a single transaction attempt. Reads inside a Tx observe the writes
// already staged by the same Tx.
type Tx interface {
	Reader
	Set(ctx context.Context, collection, id string, doc any) error
	Delete(ctx context.Context, collection, id string) error
}

// TxFunc is a transaction body. It may be invoked several times, so it must
// not perform side effects outside of tx.
type TxFunc func(ctx context.Context, tx Tx) error

type Store interface {
	Reader
	Set(ctx context.Context, collection, id string, doc any) error
	Delete(ctx context.Context, collection, id string) error

	// RunTransaction runs fn until it commits, fn returns an error that is
	// not a conflict, or the retry policy gives up (ErrConflict).
	RunTransaction(ctx context.Context, fn TxFunc) error

	Close(ctx context.Context) error
}
